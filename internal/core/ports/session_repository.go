package ports

import (
	"context"
	"time"

	"github.com/healthvault/auth-service/internal/core/domain"
)

// SessionRepository stores server-side sessions, at most one per user.
type SessionRepository interface {
	// ReplaceForUser stores s, removing any earlier session of s.UserID.
	ReplaceForUser(ctx context.Context, s *domain.Session) error
	// FindByTokenHash returns domain.ErrSessionNotFound when absent.
	FindByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	// DeleteByTokenHash is idempotent: deleting a missing session is not an error.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
