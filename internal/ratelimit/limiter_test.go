package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/subscriber/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func limitConfig(rate float64, burst int) config.Config {
	return config.Config{RateLimit: config.RateLimitConfig{TransferRate: rate, TransferBurst: burst}}
}

func TestTransferLimiterDisabledByDefault(t *testing.T) {
	limiter := NewTransferLimiter(limitConfig(0, 5), nil, zap.NewNop())
	assert.Nil(t, limiter)

	allowed, _, err := limiter.Allow(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTransferLimiterLocalBucket(t *testing.T) {
	ctx := context.Background()
	limiter := NewTransferLimiter(limitConfig(0.001, 2), nil, zap.NewNop())

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "Alice")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Positive(t, retryAfter)

	allowed, _, err = limiter.Allow(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTransferLimiterRedisBucket(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewTransferLimiter(limitConfig(0.001, 2), NewTokenBucket(client), zap.NewNop())

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _, err := limiter.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.True(t, mr.Exists("subscriber:transfers:alice"))
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, errNotConfigured)

	mr := miniredis.RunT(t)
	bucket = NewTokenBucket(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	_, err = bucket.Allow(context.Background(), "", 1, 1)
	assert.ErrorIs(t, err, errEmptyKey)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.ErrorIs(t, err, errInvalidRate)
}
