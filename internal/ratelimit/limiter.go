package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter is a Redis-backed fixed-window rate limiter used on the
// unauthenticated auth endpoints. A nil *Limiter allows everything, so the
// backend runs unchanged without Redis.
type Limiter struct {
	client *redis.Client
	logger *zap.Logger
	limit  int
	window time.Duration
}

// NewLimiter creates a limiter allowing limit requests per window per key.
func NewLimiter(client *redis.Client, logger *zap.Logger, limit int, window time.Duration) *Limiter {
	if window == 0 {
		window = time.Minute
	}
	return &Limiter{
		client: client,
		logger: logger,
		limit:  limit,
		window: window,
	}
}

// Allow reports whether the request identified by key is within the limit.
// Redis failures fail open.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}

	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/int64(l.window.Seconds()))

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("Rate limiter unavailable, allowing request", zap.Error(err))
		return true
	}

	return count.Val() <= int64(l.limit)
}
