// @title        HealthVault Auth API
// @version      1.0
// @description  Passwordless registration, OTP login and sessions for the HealthVault portal.
// @BasePath     /
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/healthvault/auth-service/internal/api"
	"github.com/healthvault/auth-service/internal/api/handler"
	"github.com/healthvault/auth-service/internal/core/ports"
	"github.com/healthvault/auth-service/internal/core/service"
	"github.com/healthvault/auth-service/internal/infrastructure/db/mongo"
	"github.com/healthvault/auth-service/internal/infrastructure/db/redis"
	"github.com/healthvault/auth-service/internal/infrastructure/notify"
	"github.com/healthvault/auth-service/internal/infrastructure/queue"
	"github.com/healthvault/auth-service/internal/pkg/config"
	"github.com/healthvault/auth-service/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "healthvault-auth",
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("service exited with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET not set, using an insecure development secret")
		cfg.JWTSecret = "healthvault-development-secret"
	}

	// --- Storage ---
	store, err := mongo.Open(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("mongo disconnect failed")
		}
	}()
	log.Info().Str("db", cfg.Mongo.Database).Msg("connected to mongodb")

	rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")

	// --- Delivery ---
	dispatcher := queue.NewDispatcher(cfg.Mail.Workers, cfg.Mail.RatePerSec, newTransport(cfg), logger.Component("dispatcher"))
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	dispatcher.Start(dispatchCtx)
	defer dispatcher.Stop()

	// --- Core ---
	limiter := redis.NewIssueLimiter(rdb, cfg.OTP.IssueLimit, cfg.OTP.IssueWindow)
	otp := service.NewOTPEngine(store.OTPs, limiter, cfg.OTP.TTL, cfg.OTP.HashCost, logger.Component("otp"))
	tokens := service.NewTokenIssuer(store.Sessions, store.Users, cfg.JWTSecret, cfg.SessionTTL, logger.Component("tokens"))
	authService := service.NewAuthService(store.Users, store.Sessions, otp, tokens, dispatcher, logger.Component("auth"))

	sweeper := service.NewSweeper(authService, cfg.CleanupInterval, logger.Component("sweeper"))
	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(sweepCtx)
	}()
	defer func() {
		stopSweep()
		<-sweepDone
	}()

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		Auth:   authService,
		Cookie: handler.CookieConfig{Secure: cfg.CookieSecure, MaxAge: cfg.SessionTTL},
		Checks: map[string]handler.Check{
			"mongodb": store.Ping,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
		Log: logger.Component("http"),
	})

	srvErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case err := <-srvErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("server stopped")
	return nil
}

// newTransport builds the email transport chain below the dispatcher.
// Retries run inside the per-address lane, so they delay only that address.
func newTransport(cfg *config.Config) ports.Notifier {
	var transport ports.Notifier
	switch cfg.Mail.Provider {
	case "emailjs":
		transport = notify.NewEmailJS(notify.EmailJSConfig{
			Endpoint:     cfg.EmailJS.Endpoint,
			ServiceID:    cfg.EmailJS.ServiceID,
			TemplateID:   cfg.EmailJS.TemplateID,
			PublicKey:    cfg.EmailJS.PublicKey,
			PrivateKey:   cfg.EmailJS.PrivateKey,
			AppName:      cfg.Branding.AppName,
			AppURL:       cfg.Branding.AppURL,
			SupportEmail: cfg.Branding.SupportEmail,
			CodeTTL:      cfg.OTP.TTL,
		}, &http.Client{Timeout: cfg.Mail.SendTimeout})
	default:
		transport = notify.NewLogSender(logger.Component("mail"))
	}
	return notify.WithRetry(transport, notify.RetryPolicy{
		MaxAttempts: cfg.Mail.MaxAttempts,
		Delay:       cfg.Mail.RetryDelay,
		Timeout:     cfg.Mail.SendTimeout,
	}, logger.Component("mail"))
}
