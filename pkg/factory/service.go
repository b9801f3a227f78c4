// Package factory builds per-route rate limiters, backed by Redis when the
// application cache exposes a client and in memory otherwise.
package factory

import (
	"context"
	"time"

	"github.com/akeren/event-referrals/pkg/ratelimit"
	"github.com/go-redis/redis/v8"
)

type Cache interface {
	Ping(ctx context.Context) error
}

type RedisClientProvider interface {
	GetClient() *redis.Client
}

type RateLimiterFactory interface {
	CreateRateLimiter() ratelimit.RateLimiter
}

type DefaultRateLimiterFactory struct {
	config *ratelimit.RateLimitConfig
}

// NewDefaultRateLimiterFactory allows requests per window for each client.
// cache may be nil.
func NewDefaultRateLimiterFactory(requests int, window time.Duration, cache Cache, logger ratelimit.Logger) *DefaultRateLimiterFactory {
	config := &ratelimit.RateLimitConfig{
		Requests: requests,
		Window:   window,
		Logger:   logger,
	}

	if provider, ok := cache.(RedisClientProvider); ok {
		config.Redis = provider.GetClient()
	}

	return &DefaultRateLimiterFactory{config: config}
}

func (f *DefaultRateLimiterFactory) CreateRateLimiter() ratelimit.RateLimiter {
	return ratelimit.NewRateLimiter(f.config)
}
