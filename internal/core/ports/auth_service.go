package ports

import (
	"context"

	"github.com/healthvault/auth-service/internal/core/domain"
)

// RegisterInput carries a new account's details. Profile is optional; when
// nil an empty profile for Role is created with FullName.
type RegisterInput struct {
	Email    string
	FullName string
	Role     domain.Role
	Profile  domain.Profile
}

// AuthResult is returned by the verification flows.
type AuthResult struct {
	User  *domain.Identity
	Token string
}

// CleanupReport counts rows removed by a cleanup pass.
type CleanupReport struct {
	OTPs     int64
	Sessions int64
}

// AuthService defines the account and session use cases.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) error
	ResendRegistration(ctx context.Context, email string) error
	VerifyRegistration(ctx context.Context, email, code string) (*AuthResult, error)
	RequestLogin(ctx context.Context, email string) error
	VerifyLogin(ctx context.Context, email, code string) (*AuthResult, error)
	CurrentUser(ctx context.Context, token string) (*domain.Identity, error)
	Logout(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, userID string, patch domain.ProfilePatch) error
	Cleanup(ctx context.Context) (CleanupReport, error)
}
