package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/healthvault/auth-service/internal/core/domain"
)

// Content is the purpose-specific copy of a passcode email.
type Content struct {
	Subject         string
	Title           string
	Message         string
	Footer          string
	BackgroundColor string
}

const (
	colorBrand  = "#059669"
	colorDanger = "#dc2626"
)

// ContentFor returns the email copy for purpose. ttl is quoted in the footer.
func ContentFor(purpose domain.Purpose, ttl time.Duration) Content {
	expiry := fmt.Sprintf("This code will expire in %d minutes.", int(ttl.Minutes()))

	switch purpose {
	case domain.PurposeRegistration:
		return Content{
			Subject:         "Verify Your HealthVault Account",
			Title:           "Welcome to HealthVault!",
			Message:         "Thank you for registering with HealthVault. To complete your registration and secure your account, please verify your email address using the verification code below:",
			Footer:          expiry,
			BackgroundColor: colorBrand,
		}
	case domain.PurposeLogin:
		return Content{
			Subject:         "Your HealthVault Login Code",
			Title:           "Secure Login Verification",
			Message:         "Someone is trying to sign in to your HealthVault account. If this was you, please use the verification code below to complete the login:",
			Footer:          expiry + " If you did not request this code, please ignore this email.",
			BackgroundColor: colorBrand,
		}
	case domain.PurposeReset:
		return Content{
			Subject:         "Reset Your HealthVault Password",
			Title:           "Password Reset Request",
			Message:         "You requested to reset your HealthVault password. Use the verification code below to proceed with the password reset:",
			Footer:          expiry + " If you did not request this, please ignore this email.",
			BackgroundColor: colorDanger,
		}
	}
	return Content{
		Subject:         "HealthVault Verification Code",
		Title:           "Email Verification",
		Message:         "Your HealthVault verification code is:",
		Footer:          expiry,
		BackgroundColor: colorBrand,
	}
}

// recipientName is the local part of the address.
func recipientName(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
