package ports

import (
	"context"
	"time"

	"github.com/healthvault/auth-service/internal/core/domain"
)

// OTPRepository stores one-time passcodes, at most one per (email, purpose).
type OTPRepository interface {
	// Replace stores rec, superseding any record for the same email and purpose.
	Replace(ctx context.Context, rec *domain.OTPRecord) error
	// Find returns the record for (email, purpose) regardless of expiry.
	// Returns domain.ErrOTPNotFound when none exists.
	Find(ctx context.Context, email string, purpose domain.Purpose) (*domain.OTPRecord, error)
	// IncrementAttempts bumps the attempt counter of the record with the
	// given ID and returns the new value. Returns domain.ErrOTPNotFound if
	// the record is gone (consumed or superseded).
	IncrementAttempts(ctx context.Context, id string) (int, error)
	// Delete removes the record with the given ID and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// DeleteExpired removes every record whose expiry is before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
