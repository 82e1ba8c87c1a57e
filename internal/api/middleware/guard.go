package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthvault/auth-service/internal/api/handler"
	"github.com/healthvault/auth-service/internal/core/domain"
)

const msgSessionInvalid = "session invalid, please log in again"

// SessionResolver turns a session token into the identity behind it.
type SessionResolver interface {
	CurrentUser(ctx context.Context, token string) (*domain.Identity, error)
}

// PublicPaths decides which request paths skip the session check.
type PublicPaths struct {
	Exact    []string
	Prefixes []string
	// Protected lists prefixes that stay guarded even under a public prefix.
	Protected []string
}

// DefaultPublicPaths is the portal's allow-list: the landing page, the auth
// flows (except the caller's own account), probes, metrics and API docs.
var DefaultPublicPaths = PublicPaths{
	Exact:     []string{"/", "/auth", "/health", "/metrics"},
	Prefixes:  []string{"/auth/", "/health/", "/swagger/"},
	Protected: []string{"/auth/me"},
}

// Allows reports whether path may be served without a session.
func (p PublicPaths) Allows(path string) bool {
	for _, prefix := range p.Protected {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return false
		}
	}
	for _, exact := range p.Exact {
		if path == exact {
			return true
		}
	}
	for _, prefix := range p.Prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Guard requires a valid session on every path not allowed by public.
// The resolved identity is stored in the context for handlers and RBAC.
// Browsers are redirected to the landing page; API clients get 401.
func Guard(resolver SessionResolver, public PublicPaths) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if public.Allows(c.Request().URL.Path) {
				return next(c)
			}

			token := handler.TokenFrom(c)
			if token == "" {
				return reject(c)
			}
			id, err := resolver.CurrentUser(c.Request().Context(), token)
			if err != nil || id == nil {
				return reject(c)
			}

			c.Set(handler.CtxIdentity, id)
			c.Set(handler.CtxRole, id.Role)
			c.Set(handler.CtxToken, token)
			return next(c)
		}
	}
}

func reject(c echo.Context) error {
	if wantsHTML(c.Request()) {
		return c.Redirect(http.StatusFound, "/")
	}
	return echo.NewHTTPError(http.StatusUnauthorized, msgSessionInvalid)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}
