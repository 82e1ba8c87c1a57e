package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthvault/auth-service/internal/core/domain"
	"github.com/healthvault/auth-service/internal/core/ports"
	"github.com/healthvault/auth-service/internal/core/service"
)

// CookieConfig controls the session cookie written after a successful login.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

// AuthHandler exposes the account and session flows over HTTP.
type AuthHandler struct {
	auth   ports.AuthService
	cookie CookieConfig
	log    zerolog.Logger
}

func NewAuthHandler(auth ports.AuthService, cookie CookieConfig, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie, log: log}
}

// Register creates an unverified account and mails a verification code.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Account details"
// @Success      201   {object}  flowResponse
// @Failure      400   {object}  flowResponse
// @Failure      409   {object}  flowResponse
// @Failure      502   {object}  flowResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}

	role := domain.Role(req.Role)
	profile, err := decodeProfile(role, req.Profile)
	if err != nil {
		return h.fail(c, err)
	}

	err = h.auth.Register(c.Request().Context(), ports.RegisterInput{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     role,
		Profile:  profile,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusCreated, flowResponse{Success: true, Message: service.MsgRegistered, RequiresOTP: true})
}

// ResendRegistration issues a new verification code for an unverified account.
//
// @Summary      Resend the registration code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  flowResponse
// @Failure      404   {object}  flowResponse
// @Failure      409   {object}  flowResponse
// @Router       /auth/register/resend [post]
func (h *AuthHandler) ResendRegistration(c echo.Context) error {
	var req emailRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	if err := h.auth.ResendRegistration(c.Request().Context(), req.Email); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, flowResponse{Success: true, Message: service.MsgRegistrationResent, RequiresOTP: true})
}

// VerifyRegistration consumes the registration code and starts a session.
//
// @Summary      Verify registration
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      verifyRequest  true  "Email and code"
// @Success      200   {object}  flowResponse
// @Failure      401   {object}  flowResponse
// @Failure      429   {object}  flowResponse
// @Router       /auth/register/verify [post]
func (h *AuthHandler) VerifyRegistration(c echo.Context) error {
	var req verifyRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	res, err := h.auth.VerifyRegistration(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		return h.fail(c, err)
	}
	h.setCookie(c, res.Token)
	return c.JSON(http.StatusOK, flowResponse{Success: true, Message: service.MsgWelcome, User: res.User, Token: res.Token})
}

// RequestLogin mails a login code to a verified account.
//
// @Summary      Request a login code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  flowResponse
// @Failure      403   {object}  flowResponse
// @Failure      404   {object}  flowResponse
// @Failure      429   {object}  flowResponse
// @Router       /auth/otp [post]
func (h *AuthHandler) RequestLogin(c echo.Context) error {
	var req emailRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	if err := h.auth.RequestLogin(c.Request().Context(), req.Email); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, flowResponse{Success: true, Message: service.MsgLoginCodeSent})
}

// VerifyLogin consumes the login code and starts a session.
//
// @Summary      Verify a login code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      verifyRequest  true  "Email and code"
// @Success      200   {object}  flowResponse
// @Failure      401   {object}  flowResponse
// @Failure      429   {object}  flowResponse
// @Router       /auth/login/verify [post]
func (h *AuthHandler) VerifyLogin(c echo.Context) error {
	var req verifyRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	res, err := h.auth.VerifyLogin(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		return h.fail(c, err)
	}
	h.setCookie(c, res.Token)
	return c.JSON(http.StatusOK, flowResponse{Success: true, Message: service.MsgLoggedIn, User: res.User, Token: res.Token})
}

// Logout ends the caller's session, if any, and clears the cookie.
//
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  flowResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.auth.Logout(c.Request().Context(), TokenFrom(c)); err != nil {
		h.log.Warn().Err(err).Msg("logout failed, clearing cookie anyway")
	}
	h.clearCookie(c)
	return c.JSON(http.StatusOK, flowResponse{Success: true, Message: service.MsgLoggedOut})
}

// Me returns the identity behind the current session.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Identity
// @Failure      401  {object}  errorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, id)
}

// UpdateProfile merges the given fields into the caller's profile.
//
// @Summary      Update own profile
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      object  true  "Profile fields to change"
// @Success      200   {object}  flowResponse
// @Failure      400   {object}  flowResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/me/profile [patch]
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return h.fail(c, domain.Invalid("invalid payload"))
	}
	patch, err := decodePatch(id.Role, raw)
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.auth.UpdateProfile(c.Request().Context(), id.ID, patch); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, flowResponse{Success: true, Message: service.MsgProfileUpdated})
}

func (h *AuthHandler) bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.Invalid("invalid payload")
	}
	if n, ok := req.(normalizer); ok {
		n.normalize()
	}
	return c.Validate(req)
}

// fail renders err in the flow envelope. Unclassified errors are logged and
// answered with a generic message.
func (h *AuthHandler) fail(c echo.Context, err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("auth flow failed")
	}
	return c.JSON(status, flowResponse{Success: false, Message: service.Message(err)})
}

func (h *AuthHandler) setCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
