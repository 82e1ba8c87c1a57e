package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthvault/auth-service/internal/core/ports"
)

// Cleaner is the part of the auth service the sweeper drives.
type Cleaner interface {
	Cleanup(ctx context.Context) (ports.CleanupReport, error)
}

// Sweeper periodically removes expired passcodes and sessions.
type Sweeper struct {
	cleaner  Cleaner
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(cleaner Cleaner, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{cleaner: cleaner, interval: interval, log: log}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("sweeper started")
	defer s.log.Info().Msg("sweeper stopped")

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single cleanup pass. Failures are logged only.
func (s *Sweeper) Sweep(ctx context.Context) {
	report, err := s.cleaner.Cleanup(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("cleanup failed")
	}
	if report.OTPs > 0 || report.Sessions > 0 {
		s.log.Info().Int64("otps", report.OTPs).Int64("sessions", report.Sessions).Msg("expired records removed")
	}
}
