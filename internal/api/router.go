package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/healthvault/auth-service/docs"
	"github.com/healthvault/auth-service/internal/api/handler"
	"github.com/healthvault/auth-service/internal/api/middleware"
	"github.com/healthvault/auth-service/internal/core/domain"
	"github.com/healthvault/auth-service/internal/core/ports"
)

// Deps carries what the HTTP layer needs from the rest of the service.
type Deps struct {
	Auth   ports.AuthService
	Cookie handler.CookieConfig
	Checks map[string]handler.Check
	Log    zerolog.Logger
	// Registry receives the HTTP metrics and backs /metrics. Nil means the
	// process-wide default registry, where the service metrics live.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "healthvault",
		Registerer: registerer,
	}))
	e.Use(middleware.Guard(d.Auth, middleware.DefaultPublicPaths))

	authHandler := handler.NewAuthHandler(d.Auth, d.Cookie, d.Log)
	profileHandler := handler.NewProfileHandler()
	healthHandler := handler.NewHealthHandler(d.Checks)

	// --- Auth flows (public) ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/register/resend", authHandler.ResendRegistration)
	e.POST("/auth/register/verify", authHandler.VerifyRegistration)
	e.POST("/auth/otp", authHandler.RequestLogin)
	e.POST("/auth/login/verify", authHandler.VerifyLogin)
	e.POST("/auth/logout", authHandler.Logout)

	// --- Own account (session) ---
	e.GET("/auth/me", authHandler.Me)
	e.PATCH("/auth/me/profile", authHandler.UpdateProfile)

	// --- Portals (session + role) ---
	e.GET("/patient/profile", profileHandler.Get, middleware.RBAC(domain.RolePatient))
	e.GET("/doctor/profile", profileHandler.Get, middleware.RBAC(domain.RoleDoctor))

	// --- Probes, metrics, docs ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
