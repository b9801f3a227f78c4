package config

import (
	"context"
	"errors"
	"time"

	"github.com/akeren/event-referrals/internal/log"
	pkgredis "github.com/akeren/event-referrals/pkg/redis"
	"github.com/akeren/event-referrals/pkg/utils"
	"github.com/go-redis/redis/v8"
)

var ErrCacheNotConfigured = errors.New("cache host is not configured")

// Cache backs the referral status cache, the Redis rate limiter and the
// referral updates broker.
type Cache interface {
	// Get returns ("", nil) when a key is not found.
	Get(ctx context.Context, key string) (string, error)
	// Set uses ttl=0 for no expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// SetMax writes value only when it exceeds the stored integer.
	SetMax(ctx context.Context, key string, value int, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// RedisClientProvider is implemented by caches that can share their client.
type RedisClientProvider interface {
	GetClient() *redis.Client
}

type CacheConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func NewCacheConfig() *CacheConfig {
	return &CacheConfig{
		Host:     utils.GetEnvUnquoted("REDIS_HOST"),
		Port:     utils.GetEnvUnquotedOrDefault("REDIS_PORT", "6379"),
		Password: utils.GetEnvUnquoted("REDIS_PASSWORD"),
		DB:       int(utils.GetEnvPositiveInt("REDIS_DB", 0)),
	}
}

func (cc *CacheConfig) IsConfigured() bool {
	return cc.Host != ""
}

func (cc *CacheConfig) NewCache(logger *log.Logger) (Cache, error) {
	if !cc.IsConfigured() {
		return nil, ErrCacheNotConfigured
	}

	cache, err := pkgredis.NewRedisCache(&pkgredis.Config{
		Host:     cc.Host,
		Port:     cc.Port,
		Password: cc.Password,
		DB:       cc.DB,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Cache (Redis) connected successfully", "host", cc.Host, "db", cc.DB)
	return cache, nil
}

// NewCacheOrNil returns nil when Redis is absent or unreachable; every
// consumer then falls back to its in-process variant.
func (cc *CacheConfig) NewCacheOrNil(logger *log.Logger) Cache {
	if !cc.IsConfigured() {
		logger.Info("Cache (Redis) is not configured; rate limits, status cache and live updates stay in-process")
		return nil
	}

	cache, err := cc.NewCache(logger)
	if err != nil {
		logger.Error("Failed to create Cache (Redis); continuing without it", "error", err)
		return nil
	}

	return cache
}

func GetRedisClient(cache Cache) *redis.Client {
	if provider, ok := cache.(RedisClientProvider); ok {
		return provider.GetClient()
	}
	return nil
}

func CloseCache(cache Cache, logger *log.Logger) error {
	if cache == nil {
		return nil
	}

	if err := cache.Close(); err != nil {
		logger.Error("Failed to close cache", "error", err)
		return err
	}

	logger.Info("Cache connection closed")
	return nil
}
