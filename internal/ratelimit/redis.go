package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindow increments the counter of the current window and starts the
// window on the first hit. It runs atomically on the server.
var incrWindow = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter is a fixed-window limiter shared by every process that
// talks to the same Redis.
type RedisLimiter struct {
	client redis.Scripter
	limit  int64
	window time.Duration
	logger *slog.Logger
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter allows limit requests per key in each window.
func NewRedisLimiter(client redis.Scripter, limit int, window time.Duration, logger *slog.Logger) *RedisLimiter {
	limit, window = withDefaults(limit, window)
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		logger: logger.With("component", "redis_rate_limiter"),
	}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	count, err := incrWindow.Run(ctx, l.client, []string{key}, l.window.Milliseconds()).Int64()
	if err != nil {
		l.logger.ErrorContext(ctx, "rate limit check failed", "key", key, "error", err)
		return fmt.Errorf("rate limit check for %s: %w", key, err)
	}
	if count > l.limit {
		l.logger.DebugContext(ctx, "rate limit exceeded", "key", key, "count", count, "limit", l.limit)
		return ErrRateLimited
	}
	return nil
}
