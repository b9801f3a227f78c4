package config

import (
	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/pkg/pubsub"
)

// NewBroker shares the cache's Redis client for live updates so every instance
// sees every referral credit; without Redis updates stay in-process.
func NewBroker(cache Cache, logger *log.Logger) pubsub.Broker {
	redisClient := GetRedisClient(cache)

	broker := pubsub.NewBroker(&pubsub.Config{
		Redis:  redisClient,
		Logger: logger,
	})

	if redisClient != nil {
		logger.Info("Referral updates broker initialized with Redis")
	} else {
		logger.Info("Referral updates broker initialized in-memory")
	}

	return broker
}
