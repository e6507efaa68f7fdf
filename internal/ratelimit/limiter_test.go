package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestLimiter(t *testing.T, limit int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewLimiter(client, zap.NewNop(), limit, time.Minute), mr
}

func TestLimiterEnforcesLimit(t *testing.T) {
	limiter, _ := setupTestLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(ctx, "token:127.0.0.1"), "request %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow(ctx, "token:127.0.0.1"))

	// Other keys have their own window.
	assert.True(t, limiter.Allow(ctx, "token:10.0.0.1"))
	assert.True(t, limiter.Allow(ctx, "register:127.0.0.1"))
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	limiter, mr := setupTestLimiter(t, 1)
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, "token:127.0.0.1"))
	require.False(t, limiter.Allow(ctx, "token:127.0.0.1"))

	// The counter key expires with the window.
	mr.FastForward(2 * time.Minute)
	keys := mr.Keys()
	assert.Empty(t, keys)
}

func TestLimiterFailsOpenOnRedisError(t *testing.T) {
	limiter, mr := setupTestLimiter(t, 1)
	mr.Close()

	assert.True(t, limiter.Allow(context.Background(), "token:127.0.0.1"))
}

func TestNilLimiterAllows(t *testing.T) {
	var limiter *Limiter
	assert.True(t, limiter.Allow(context.Background(), "token:127.0.0.1"))
}

func TestLimiterWithoutClientAllows(t *testing.T) {
	limiter := NewLimiter(nil, zap.NewNop(), 10, time.Minute)
	assert.True(t, limiter.Allow(context.Background(), "token:127.0.0.1"))
}
