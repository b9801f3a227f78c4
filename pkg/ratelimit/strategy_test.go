package ratelimit

import (
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRateLimiter_IsLimited_IsPerKey(t *testing.T) {
	limiter := NewInMemoryRateLimiter(1, time.Second)

	limited, err := limiter.IsLimited("client-a")
	require.NoError(t, err)
	assert.False(t, limited, "first request for client-a should not be limited")

	limited, err = limiter.IsLimited("client-a")
	require.NoError(t, err)
	assert.True(t, limited, "second immediate request for client-a should be limited")

	limited, err = limiter.IsLimited("client-b")
	require.NoError(t, err)
	assert.False(t, limited, "client-b has its own bucket")
}

func TestInMemoryRateLimiter_RefillsAfterWindow(t *testing.T) {
	limiter := NewInMemoryRateLimiter(2, time.Minute)
	clock := time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		limited, _ := limiter.IsLimited("203.0.113.7")
		assert.False(t, limited)
	}
	limited, _ := limiter.IsLimited("203.0.113.7")
	assert.True(t, limited)

	clock = clock.Add(time.Minute)
	limited, _ = limiter.IsLimited("203.0.113.7")
	assert.False(t, limited)
}

func TestInMemoryRateLimiter_SweepsIdleKeys(t *testing.T) {
	limiter := NewInMemoryRateLimiter(5, time.Second)
	clock := time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	_, _ = limiter.IsLimited("idle")
	clock = clock.Add(time.Hour)

	for i := 1; i < sweepEvery; i++ {
		_, _ = limiter.IsLimited("busy")
	}

	assert.Equal(t, 1, limiter.Size())
}

func TestNewRateLimiter_SelectsStrategy(t *testing.T) {
	inMemory := NewRateLimiter(&RateLimitConfig{Requests: 30, Window: time.Minute})
	assert.IsType(t, &InMemoryRateLimiter{}, inMemory)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	distributed := NewRateLimiter(&RateLimitConfig{Requests: 30, Window: time.Minute, Redis: client})
	require.IsType(t, &RedisRateLimiter{}, distributed)

	requests, window := distributed.GetLimitDetails()
	assert.Equal(t, 30, requests)
	assert.Equal(t, time.Minute, window)
	assert.Equal(t, DefaultKeyPrefix+"203.0.113.7", distributed.(*RedisRateLimiter).redisKey("203.0.113.7"))
	assert.Equal(t, DefaultKeyPrefix+emptyKey, distributed.(*RedisRateLimiter).redisKey(""))
}

func TestRedisRateLimiter_FailsClosedWhenRedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	limiter := NewRedisRateLimiter(client, 1, time.Minute, nil)

	limited, err := limiter.IsLimited("203.0.113.7")
	assert.Error(t, err)
	assert.False(t, limited)
}
