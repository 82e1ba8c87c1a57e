package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrDuplicateEmail  = errors.New("user with this email already exists")
	ErrNoSuchAccount   = errors.New("no account found with this email address")
	ErrNotVerified     = errors.New("email address not verified")
	ErrAlreadyVerified = errors.New("email address already verified")
	ErrUserNotFound    = errors.New("user not found")

	ErrInvalidCode     = errors.New("invalid or expired code")
	ErrTooManyAttempts = errors.New("too many attempts")
	ErrRateLimited     = errors.New("too many codes requested")
	ErrDeliveryFailed  = errors.New("failed to deliver code")

	ErrInvalidSession = errors.New("session invalid")

	ErrOTPNotFound     = errors.New("otp record not found")
	ErrSessionNotFound = errors.New("session not found")
)

// ValidationError is a rejected input. Its message is safe to show to the
// caller verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
