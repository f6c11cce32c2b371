package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/petcare-user/internal/domain"
	"github.com/utafrali/petcare-user/pkg/logger"
)

const keyPrefix = "petcare:login_failures:"

// Counter is a windowed counter store.
type Counter interface {
	// Incr adds one to key and returns the new value. The window starts on
	// the first increment.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// Get returns the current value, zero if the key is absent.
	Get(ctx context.Context, key string) (int64, error)
	// Reset removes key.
	Reset(ctx context.Context, key string) error
}

// RedisCounter implements Counter with INCR and EXPIRE.
type RedisCounter struct {
	client redis.Cmdable
}

// NewRedisCounter creates a Redis-backed counter.
func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client}
}

// Incr increments key and sets its expiry on the first hit.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Get reads the counter.
func (c *RedisCounter) Get(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return n, nil
}

// Reset deletes the counter.
func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// LoginThrottle blocks an email after too many failed logins within a
// window. Counter errors never block a login; they are logged and ignored.
type LoginThrottle struct {
	counter     Counter
	maxAttempts int64
	window      time.Duration
	logger      *slog.Logger
}

// NewLoginThrottle creates a throttle allowing maxAttempts failures per window.
func NewLoginThrottle(counter Counter, maxAttempts int, window time.Duration, l *slog.Logger) *LoginThrottle {
	return &LoginThrottle{
		counter:     counter,
		maxAttempts: int64(maxAttempts),
		window:      window,
		logger:      l,
	}
}

// Check returns domain.ErrTooManyLoginAttempts once the email has used up
// its failures for the current window.
func (t *LoginThrottle) Check(ctx context.Context, email string) error {
	n, err := t.counter.Get(ctx, key(email))
	if err != nil {
		t.logger.WarnContext(ctx, "login throttle unavailable",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if n >= t.maxAttempts {
		t.logger.InfoContext(ctx, "login throttled",
			slog.String("email", logger.MaskEmail(email)),
			slog.Int64("failures", n),
		)
		return domain.ErrTooManyLoginAttempts
	}
	return nil
}

// RecordFailure counts one failed attempt.
func (t *LoginThrottle) RecordFailure(ctx context.Context, email string) {
	if _, err := t.counter.Incr(ctx, key(email), t.window); err != nil {
		t.logger.WarnContext(ctx, "failed to record login failure",
			slog.String("error", err.Error()),
		)
	}
}

// Reset clears the failures after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, email string) {
	if err := t.counter.Reset(ctx, key(email)); err != nil {
		t.logger.WarnContext(ctx, "failed to reset login failures",
			slog.String("error", err.Error()),
		)
	}
}

func key(email string) string {
	return keyPrefix + domain.NormalizeEmail(email)
}
