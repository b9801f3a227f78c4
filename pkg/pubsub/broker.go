// Package pubsub fans referral count updates out to live status viewers.
package pubsub

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

// Update carries the new referral count of the registration owning Code.
type Update struct {
	Code          string `json:"referral_code"`
	ReferralCount int    `json:"referral_count"`
}

// Subscription is a live feed of updates for one referral code. Callers must
// Close it when the viewer goes away.
type Subscription interface {
	Updates() <-chan Update
	Close() error
}

// Broker defines the strategy interface for update delivery.
type Broker interface {
	Publish(ctx context.Context, update Update) error
	Subscribe(ctx context.Context, code string) (Subscription, error)
	Ping(ctx context.Context) error
	Close() error
}

type Logger interface {
	Error(msg string, args ...any)
}

var ErrBrokerClosed = errors.New("pubsub: broker is closed")

const subscriptionBuffer = 4

type Config struct {
	Redis  *redis.Client // Optional, if nil uses in-memory
	Logger Logger
}

// NewBroker picks the Redis strategy when a client is available so updates
// reach viewers connected to any instance; otherwise delivery is process-local.
func NewBroker(config *Config) Broker {
	if config != nil && config.Redis != nil {
		return NewRedisBroker(config.Redis, config.Logger)
	}
	return NewInMemoryBroker()
}

// offerLatest delivers update without blocking. When the buffer is full the
// oldest pending value is dropped; only the newest count matters to a viewer.
func offerLatest(ch chan Update, update Update) {
	for {
		select {
		case ch <- update:
			return
		default:
		}

		select {
		case <-ch:
		default:
		}
	}
}
