package handler

import (
	"errors"
	"net/http"

	"github.com/healthvault/auth-service/internal/core/domain"
)

// StatusFor maps an auth error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAlreadyVerified):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoSuchAccount), errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotVerified):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidCode), errors.Is(err, domain.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrTooManyAttempts), errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrDeliveryFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
