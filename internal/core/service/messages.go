package service

import (
	"errors"

	"github.com/healthvault/auth-service/internal/core/domain"
)

const (
	MsgRegistered         = "Registration successful! Please check your email for verification code."
	MsgRegistrationResent = "A new verification code has been sent to your email."
	MsgWelcome            = "Registration successful! Welcome to HealthVault."
	MsgLoginCodeSent      = "Login code sent to your email"
	MsgLoggedIn           = "Login successful!"
	MsgLoggedOut          = "Logged out successfully"
	MsgProfileUpdated     = "Profile updated successfully"
)

const msgGeneric = "Something went wrong. Please try again."

// Failure pairs a classified error with the message shown to the caller.
// errors.Is sees through it to Err.
type Failure struct {
	Err   error
	Msg   string
	Cause error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return f.Err.Error() + ": " + f.Cause.Error()
	}
	return f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(err error, msg string) error {
	return &Failure{Err: err, Msg: msg}
}

func failCause(err error, msg string, cause error) error {
	return &Failure{Err: err, Msg: msg, Cause: cause}
}

// Message returns the text to show a caller for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Msg
	}
	var v *domain.ValidationError
	if errors.As(err, &v) {
		return v.Msg
	}
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		return "User with this email already exists"
	case errors.Is(err, domain.ErrNoSuchAccount):
		return "No account found with this email address"
	case errors.Is(err, domain.ErrNotVerified):
		return "Please verify your email address first"
	case errors.Is(err, domain.ErrAlreadyVerified):
		return "This email address is already verified. Please log in."
	case errors.Is(err, domain.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, domain.ErrInvalidCode):
		return "Invalid or expired code"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "Too many failed attempts. Please request a new code."
	case errors.Is(err, domain.ErrRateLimited):
		return "Too many codes requested. Please try again later."
	case errors.Is(err, domain.ErrDeliveryFailed):
		return "Failed to send verification email"
	case errors.Is(err, domain.ErrInvalidSession):
		return "Session invalid, please log in again"
	}
	return msgGeneric
}
