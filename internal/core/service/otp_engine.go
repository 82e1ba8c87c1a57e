package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthvault/auth-service/internal/core/domain"
	"github.com/healthvault/auth-service/internal/core/ports"
	"github.com/healthvault/auth-service/internal/pkg/metrics"
)

const defaultOTPTTL = 10 * time.Minute

var codeSpace = big.NewInt(1_000_000)

// OTPEngine issues and checks one-time passcodes. It keeps no state of its
// own; every record lives in the repository.
type OTPEngine struct {
	repo     ports.OTPRepository
	limiter  ports.IssueLimiter
	ttl      time.Duration
	hashCost int
	now      func() time.Time
	log      zerolog.Logger
}

// NewOTPEngine builds an engine. limiter may be nil to disable issuance
// limits. A non-positive ttl falls back to ten minutes and an out-of-range
// hashCost to bcrypt.DefaultCost.
func NewOTPEngine(repo ports.OTPRepository, limiter ports.IssueLimiter, ttl time.Duration, hashCost int, log zerolog.Logger) *OTPEngine {
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		hashCost = bcrypt.DefaultCost
	}
	return &OTPEngine{
		repo:     repo,
		limiter:  limiter,
		ttl:      ttl,
		hashCost: hashCost,
		now:      time.Now,
		log:      log,
	}
}

// WithClock overrides the internal clock, used in tests.
func (e *OTPEngine) WithClock(clock func() time.Time) *OTPEngine {
	if clock != nil {
		e.now = clock
	}
	return e
}

// TTL returns how long an issued code stays valid.
func (e *OTPEngine) TTL() time.Duration { return e.ttl }

// GenerateCode draws a code uniformly from 000000-999999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", domain.OTPLength, n.Int64()), nil
}

// Issue stores a fresh code for (email, purpose), superseding any earlier
// one, and returns the plain code for delivery.
func (e *OTPEngine) Issue(ctx context.Context, email string, purpose domain.Purpose) (string, *domain.OTPRecord, error) {
	if !purpose.Valid() {
		return "", nil, domain.Invalid("unknown passcode purpose %q", purpose)
	}

	if e.limiter != nil {
		if err := e.limiter.Allow(ctx, email, purpose); err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				metrics.OTPRateLimitedTotal.WithLabelValues(string(purpose)).Inc()
				return "", nil, err
			}
			e.log.Warn().Err(err).Str("purpose", string(purpose)).Msg("issue limiter unavailable, issuing anyway")
		}
	}

	code, err := GenerateCode()
	if err != nil {
		return "", nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), e.hashCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash code: %w", err)
	}

	now := e.now().UTC()
	rec := &domain.OTPRecord{
		ID:        uuid.NewString(),
		Email:     email,
		Purpose:   purpose,
		CodeHash:  string(hash),
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: now.Add(e.ttl),
	}
	if err := e.repo.Replace(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("issue otp: %w", err)
	}

	metrics.OTPIssuedTotal.WithLabelValues(string(purpose)).Inc()
	e.log.Debug().Str("otp_id", rec.ID).Str("purpose", string(purpose)).Time("expires_at", rec.ExpiresAt).Msg("otp issued")
	return code, rec, nil
}

// Verify checks code against the live record for (email, purpose).
// The error return is reserved for store failures; every business result
// is reported through the outcome.
func (e *OTPEngine) Verify(ctx context.Context, email, code string, purpose domain.Purpose) (domain.OTPOutcome, error) {
	outcome, err := e.verify(ctx, email, code, purpose)
	if err != nil {
		return outcome, fmt.Errorf("verify otp: %w", err)
	}
	metrics.OTPVerificationsTotal.WithLabelValues(string(purpose), outcome.String()).Inc()
	return outcome, nil
}

func (e *OTPEngine) verify(ctx context.Context, email, code string, purpose domain.Purpose) (domain.OTPOutcome, error) {
	rec, err := e.repo.Find(ctx, email, purpose)
	if errors.Is(err, domain.ErrOTPNotFound) {
		return domain.OTPNotFound, nil
	}
	if err != nil {
		return domain.OTPNotFound, err
	}

	if rec.Expired(e.now()) {
		return domain.OTPExpired, nil
	}

	if rec.Exhausted() {
		if _, err := e.repo.Delete(ctx, rec.ID); err != nil {
			return domain.OTPExhausted, err
		}
		return domain.OTPExhausted, nil
	}

	if codeMatches(rec.CodeHash, code) {
		deleted, err := e.repo.Delete(ctx, rec.ID)
		if err != nil {
			return domain.OTPNotFound, err
		}
		// Lost the race to a newer issuance or a concurrent consumer.
		if !deleted {
			return domain.OTPNotFound, nil
		}
		return domain.OTPVerified, nil
	}

	attempts, err := e.repo.IncrementAttempts(ctx, rec.ID)
	if errors.Is(err, domain.ErrOTPNotFound) {
		return domain.OTPNotFound, nil
	}
	if err != nil {
		return domain.OTPMismatch, err
	}
	if attempts >= domain.MaxOTPAttempts {
		if _, err := e.repo.Delete(ctx, rec.ID); err != nil {
			return domain.OTPExhausted, err
		}
		return domain.OTPExhausted, nil
	}
	return domain.OTPMismatch, nil
}

// PurgeExpired removes records whose TTL has elapsed.
func (e *OTPEngine) PurgeExpired(ctx context.Context) (int64, error) {
	return e.repo.DeleteExpired(ctx, e.now().UTC())
}

func codeMatches(hash, code string) bool {
	if len(code) != domain.OTPLength {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
