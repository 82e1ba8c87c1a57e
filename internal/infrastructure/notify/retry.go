package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthvault/auth-service/internal/core/ports"
	"github.com/healthvault/auth-service/internal/pkg/metrics"
)

// RetryPolicy bounds delivery attempts. Attempt n (1-based) that fails is
// followed by a pause of n*Delay before attempt n+1.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Timeout     time.Duration
}

// Retrying wraps a transport with bounded, linearly backed-off retries.
type Retrying struct {
	next   ports.Notifier
	policy RetryPolicy
	sleep  func(context.Context, time.Duration) error
	log    zerolog.Logger
}

var _ ports.Notifier = (*Retrying)(nil)

// WithRetry wraps next. MaxAttempts below 1 is treated as 1.
func WithRetry(next ports.Notifier, policy RetryPolicy, log zerolog.Logger) *Retrying {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrying{next: next, policy: policy, sleep: sleepCtx, log: log}
}

func (r *Retrying) Send(ctx context.Context, n ports.Notification) error {
	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		lastErr = r.attempt(ctx, n)
		if lastErr == nil {
			metrics.DeliveryAttemptsTotal.WithLabelValues("ok").Inc()
			metrics.DeliveryDuration.WithLabelValues("sent").Observe(time.Since(start).Seconds())
			return nil
		}
		metrics.DeliveryAttemptsTotal.WithLabelValues("error").Inc()
		r.log.Warn().Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", r.policy.MaxAttempts).
			Str("purpose", string(n.Purpose)).
			Msg("delivery attempt failed")

		if attempt == r.policy.MaxAttempts {
			break
		}
		if err := r.sleep(ctx, time.Duration(attempt)*r.policy.Delay); err != nil {
			lastErr = err
			break
		}
	}
	metrics.DeliveryDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
	return fmt.Errorf("deliver %s code: %w", n.Purpose, lastErr)
}

func (r *Retrying) attempt(ctx context.Context, n ports.Notification) error {
	if r.policy.Timeout <= 0 {
		return r.next.Send(ctx, n)
	}
	ctx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
	defer cancel()
	return r.next.Send(ctx, n)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
