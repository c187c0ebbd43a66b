package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestRedisLimiter_Allow(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRedisLimiter(client, 5, time.Minute)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			allowed, err := limiter.Allow(ctx, "203.0.113.1")
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRedisLimiter(client, 3, time.Minute)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			allowed, err := limiter.Allow(ctx, "203.0.113.2")
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := limiter.Allow(ctx, "203.0.113.2")
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("keys are independent", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRedisLimiter(client, 1, time.Minute)
		ctx := context.Background()

		allowed, err := limiter.Allow(ctx, "203.0.113.3")
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = limiter.Allow(ctx, "203.0.113.3")
		require.NoError(t, err)
		assert.False(t, allowed)

		// A different caller is unaffected.
		allowed, err = limiter.Allow(ctx, "203.0.113.4")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("window expiry readmits", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRedisLimiter(client, 1, 100*time.Millisecond)
		ctx := context.Background()

		allowed, err := limiter.Allow(ctx, "203.0.113.5")
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = limiter.Allow(ctx, "203.0.113.5")
		require.NoError(t, err)
		assert.False(t, allowed)

		// Entries score by real clock time, so a short real sleep moves
		// them out of the window.
		time.Sleep(150 * time.Millisecond)

		allowed, err = limiter.Allow(ctx, "203.0.113.5")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("unlimited when limit is 0", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRedisLimiter(client, 0, time.Minute)
		ctx := context.Background()

		for i := 0; i < 50; i++ {
			allowed, err := limiter.Allow(ctx, "203.0.113.6")
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	})

	t.Run("redis outage surfaces an error", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer client.Close()

		limiter := NewRedisLimiter(client, 3, time.Minute)
		mr.Close()

		_, err := limiter.Allow(context.Background(), "203.0.113.7")
		assert.Error(t, err)
	})
}

func TestNoopLimiter(t *testing.T) {
	limiter := NewNoopLimiter()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		allowed, err := limiter.Allow(ctx, "any-key")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}
