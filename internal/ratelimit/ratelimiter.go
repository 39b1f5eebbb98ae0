package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a request identified by key may proceed. It
// reports how many requests remain in the window and when the window
// resets; unlimited limiters report remaining -1 and the zero time.
type Limiter interface {
	AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error)
}

var (
	_ Limiter = (*RateLimiter)(nil)
	_ Limiter = (*NoopLimiter)(nil)
)

const defaultWindow = time.Minute

// RateLimiter implements a fixed-window counter backed by Redis. Counters
// live under one key per caller and expire with the window, so state needs
// no cleanup job.
type RateLimiter struct {
	client *redis.Client
	window time.Duration
}

// NewRateLimiter creates a rate limiter with a one-minute window
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{
		client: client,
		window: defaultWindow,
	}
}

func (rl *RateLimiter) redisKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

// AllowWithDetails checks the request against limit and returns whether it
// is allowed, how many requests remain in the window, and when the window
// resets. A limit of 0 or less means unlimited; remaining is then -1 and
// resetAt is the zero time.
func (rl *RateLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	if limit <= 0 {
		return true, -1, time.Time{}, nil
	}

	redisKey := rl.redisKey(key)

	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// First request in the window starts the clock
	if count == 1 {
		if err := rl.client.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			return false, 0, time.Time{}, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	ttl, err := rl.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to read rate limit TTL: %w", err)
	}
	resetAt := time.Now().Add(ttl)

	if count > int64(limit) {
		return false, 0, resetAt, nil
	}

	remaining := limit - int(count)
	return true, remaining, resetAt, nil
}

// GetCurrentUsage returns the number of requests made in the current window.
func (rl *RateLimiter) GetCurrentUsage(ctx context.Context, key string) (int64, error) {
	count, err := rl.client.Get(ctx, rl.redisKey(key)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read rate limit counter: %w", err)
	}
	return count, nil
}

// Reset clears the counter for key, opening a fresh window.
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	if err := rl.client.Del(ctx, rl.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit counter: %w", err)
	}
	return nil
}

// NoopLimiter allows everything. Used when Redis is not configured.
type NoopLimiter struct{}

// NewNoopLimiter creates a limiter that never blocks
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow always returns true
func (nl *NoopLimiter) Allow(ctx context.Context, key string) bool {
	return true
}

// AllowWithDetails always allows, reporting an unlimited window.
func (nl *NoopLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	return true, -1, time.Time{}, nil
}
