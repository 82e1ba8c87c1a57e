package domain

import "time"

// Purpose scopes a one-time passcode to a single flow.
type Purpose string

const (
	PurposeRegistration Purpose = "registration"
	PurposeLogin        Purpose = "login"
	PurposeReset        Purpose = "reset"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeRegistration, PurposeLogin, PurposeReset:
		return true
	}
	return false
}

const (
	// OTPLength is the number of decimal digits in a passcode.
	OTPLength = 6
	// MaxOTPAttempts is the number of wrong submissions that burns a record.
	MaxOTPAttempts = 3
)

// OTPRecord is a stored passcode. At most one exists per (Email, Purpose);
// only the hash of the code is persisted.
type OTPRecord struct {
	ID        string
	Email     string
	Purpose   Purpose
	CodeHash  string
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record's TTL has elapsed at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Exhausted reports whether the record has used up its attempt budget.
func (r *OTPRecord) Exhausted() bool {
	return r.Attempts >= MaxOTPAttempts
}

// OTPOutcome is the structured result of a verification.
type OTPOutcome int

const (
	OTPVerified OTPOutcome = iota
	OTPNotFound
	OTPExpired
	OTPMismatch
	OTPExhausted
)

func (o OTPOutcome) String() string {
	switch o {
	case OTPVerified:
		return "verified"
	case OTPNotFound:
		return "not_found"
	case OTPExpired:
		return "expired"
	case OTPMismatch:
		return "mismatch"
	case OTPExhausted:
		return "exhausted"
	}
	return "unknown"
}
