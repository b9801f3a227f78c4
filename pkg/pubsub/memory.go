package pubsub

import (
	"context"
	"sync"
)

// InMemoryBroker delivers updates to subscribers of the same process.
type InMemoryBroker struct {
	mu          sync.Mutex
	subscribers map[string]map[*memorySubscription]struct{}
	closed      bool
}

func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		subscribers: make(map[string]map[*memorySubscription]struct{}),
	}
}

func (b *InMemoryBroker) Publish(_ context.Context, update Update) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}

	for sub := range b.subscribers[update.Code] {
		offerLatest(sub.updates, update)
	}

	return nil
}

func (b *InMemoryBroker) Subscribe(ctx context.Context, code string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	sub := &memorySubscription{
		broker:  b,
		code:    code,
		updates: make(chan Update, subscriptionBuffer),
	}

	if b.subscribers[code] == nil {
		b.subscribers[code] = make(map[*memorySubscription]struct{})
	}
	b.subscribers[code][sub] = struct{}{}

	return sub, nil
}

func (b *InMemoryBroker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	return nil
}

func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for code, subs := range b.subscribers {
		for sub := range subs {
			sub.closed = true
			close(sub.updates)
		}
		delete(b.subscribers, code)
	}

	return nil
}

// SubscriberCount reports the live subscriptions for code.
func (b *InMemoryBroker) SubscriberCount(code string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subscribers[code])
}

type memorySubscription struct {
	broker  *InMemoryBroker
	code    string
	updates chan Update
	closed  bool // guarded by broker.mu
}

func (s *memorySubscription) Updates() <-chan Update {
	return s.updates
}

func (s *memorySubscription) Close() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if subs, ok := s.broker.subscribers[s.code]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.broker.subscribers, s.code)
		}
	}
	close(s.updates)

	return nil
}
