package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthvault/auth-service/internal/core/domain"
)

// Context keys set by the session guard.
const (
	CtxIdentity = "identity"
	CtxRole     = "role"
	CtxToken    = "token"
)

// ctxIdentity returns the identity injected by the session guard. A missing
// identity means the route was mounted without the guard.
func ctxIdentity(c echo.Context) (*domain.Identity, error) {
	id, _ := c.Get(CtxIdentity).(*domain.Identity)
	if id == nil || id.ID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return id, nil
}

// SessionCookie carries the session token for browser clients.
const SessionCookie = "healthvault_token"

// TokenFrom reads the session token from the Authorization bearer header,
// falling back to the session cookie.
func TokenFrom(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	if ck, err := c.Cookie(SessionCookie); err == nil {
		return ck.Value
	}
	return ""
}
