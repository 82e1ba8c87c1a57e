package ports

import (
	"context"

	"github.com/healthvault/auth-service/internal/core/domain"
)

// IssueLimiter caps how many passcodes may be issued for one address.
type IssueLimiter interface {
	// Allow records an issuance and returns domain.ErrRateLimited once the
	// budget for the current window is spent.
	Allow(ctx context.Context, email string, purpose domain.Purpose) error
}
