package ports

import (
	"context"
	"time"

	"github.com/healthvault/auth-service/internal/core/domain"
)

// UserRepository defines persistence operations for portal accounts.
type UserRepository interface {
	// Create inserts an unverified user and returns it with its assigned ID.
	// Returns domain.ErrDuplicateEmail when the email is already taken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// MarkVerified sets is_verified and last_login. Verification is one-way.
	MarkVerified(ctx context.Context, id string, at time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UpdateProfile(ctx context.Context, id string, profile domain.Profile, at time.Time) error
}
