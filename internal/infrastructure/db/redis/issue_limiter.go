package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/healthvault/auth-service/internal/core/domain"
)

// IssueLimiter caps passcode issuance per address and purpose with a fixed
// window counter.
// Key format: otp-issue:<purpose>:<email>
type IssueLimiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

// NewIssueLimiter returns a limiter allowing limit issuances per window.
// A limit of zero or less disables limiting.
func NewIssueLimiter(client redis.Cmdable, limit int, window time.Duration) *IssueLimiter {
	if window <= 0 {
		window = time.Hour
	}
	return &IssueLimiter{client: client, limit: int64(limit), window: window}
}

// Allow counts one issuance and returns domain.ErrRateLimited once the
// window's budget is exceeded. Other errors mean Redis could not be asked.
func (l *IssueLimiter) Allow(ctx context.Context, email string, purpose domain.Purpose) error {
	if l.limit <= 0 {
		return nil
	}

	key := l.key(email, purpose)
	var incr *redis.IntCmd
	// EXPIRE NX also repairs a counter that was left without a TTL.
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("issue limiter: %w", err)
	}
	n := incr.Val()
	if n > l.limit {
		return domain.ErrRateLimited
	}
	return nil
}

func (l *IssueLimiter) key(email string, purpose domain.Purpose) string {
	return fmt.Sprintf("otp-issue:%s:%s", purpose, email)
}
