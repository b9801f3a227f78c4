package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

const redisChannelPrefix = "referral:updates:"

// RedisBroker relays updates through Redis PUBLISH/SUBSCRIBE so every
// instance behind the load balancer sees them.
type RedisBroker struct {
	client *redis.Client
	logger Logger
}

func NewRedisBroker(client *redis.Client, logger Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: logger}
}

func (b *RedisBroker) channel(code string) string {
	return redisChannelPrefix + code
}

func (b *RedisBroker) Publish(ctx context.Context, update Update) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("pubsub: marshal update: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel(update.Code), payload).Err(); err != nil {
		return fmt.Errorf("pubsub: publish: %w", err)
	}

	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, code string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel(code))

	// Wait for the subscription confirmation so no update published after
	// Subscribe returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("pubsub: subscribe: %w", err)
	}

	sub := &redisSubscription{
		ps:      ps,
		updates: make(chan Update, subscriptionBuffer),
		logger:  b.logger,
	}
	go sub.forward()

	return sub, nil
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// The Redis client is owned by the ApplicationConfig and closed there
func (b *RedisBroker) Close() error {
	return nil
}

type redisSubscription struct {
	ps        *redis.PubSub
	updates   chan Update
	logger    Logger
	closeOnce sync.Once
}

func (s *redisSubscription) forward() {
	defer close(s.updates)

	for msg := range s.ps.Channel() {
		var update Update
		if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
			if s.logger != nil {
				s.logger.Error("Discarding malformed referral update", "channel", msg.Channel, "error", err)
			}
			continue
		}
		offerLatest(s.updates, update)
	}
}

func (s *redisSubscription) Updates() <-chan Update {
	return s.updates
}

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.ps.Close()
	})
	return err
}
