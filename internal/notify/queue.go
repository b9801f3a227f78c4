package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/akeren/event-referrals/pkg/retry"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultQueueName   = "registration.created"
	defaultDialTimeout = 10 * time.Second
	amqpLocale         = "en_US"
)

// ErrQueueUnavailable is returned by Notify while the broker connection is
// down. The consumer loop owns reconnection; publishers never dial.
var ErrQueueUnavailable = errors.New("notify: broker connection unavailable")

var errDeliveriesClosed = errors.New("notify: deliveries channel closed")

type dialFunc func(url string, config amqp.Config) (*amqp.Connection, error)

type QueueConfig struct {
	URL         string
	QueueName   string
	Logger      Logger
	Retry       *retry.Config
	HandlerWait time.Duration
}

// Queue publishes registration events to a durable RabbitMQ queue and, when
// Run is started, drains that queue into a downstream Notifier.
type Queue struct {
	url         string
	name        string
	logger      Logger
	retry       retry.RetryPolicy
	handlerWait time.Duration
	dial        dialFunc

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// DialQueue connects to the broker, retrying within ctx.
func DialQueue(ctx context.Context, cfg QueueConfig) (*Queue, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("notify: queue URL is required")
	}

	name := strings.TrimSpace(cfg.QueueName)
	if name == "" {
		name = DefaultQueueName
	}

	handlerWait := cfg.HandlerWait
	if handlerWait <= 0 {
		handlerWait = 2 * defaultWebhookTimeout
	}

	q := &Queue{
		url:         cfg.URL,
		name:        name,
		logger:      cfg.Logger,
		retry:       retry.NewExponentialBackoff(cfg.Retry),
		handlerWait: handlerWait,
		dial:        amqp.DialConfig,
	}

	if _, err := q.reconnect(ctx); err != nil {
		return nil, err
	}

	return q, nil
}

// dialTimeout bounds a single dial by the remaining ctx budget.
func dialTimeout(ctx context.Context) time.Duration {
	timeout := defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	return timeout
}

// connect dials the broker and declares the queue without holding q.mu.
func (q *Queue) connect(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection

	err := q.retry.ExecuteContext(ctx, func() error {
		timeout := dialTimeout(ctx)
		if timeout <= 0 {
			return ctx.Err()
		}

		c, err := q.dial(q.url, amqp.Config{Locale: amqpLocale, Dial: amqp.DefaultDial(timeout)})
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("notify: dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("notify: open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(q.name, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("notify: declare queue %s: %w", q.name, err)
	}

	return conn, ch, nil
}

// reconnect returns the live connection, dialing a new one when it is gone.
func (q *Queue) reconnect(ctx context.Context) (*amqp.Connection, error) {
	q.mu.Lock()
	if q.conn != nil && !q.conn.IsClosed() {
		conn := q.conn
		q.mu.Unlock()
		return conn, nil
	}
	q.mu.Unlock()

	conn, ch, err := q.connect(ctx)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn != nil && !q.conn.IsClosed() {
		_ = ch.Close()
		_ = conn.Close()
		return q.conn, nil
	}

	q.conn = conn
	q.channel = ch
	return conn, nil
}

// publishChannel returns the publishing channel, reopening it on a live
// connection. It never dials.
func (q *Queue) publishChannel() (*amqp.Channel, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn == nil || q.conn.IsClosed() {
		return nil, ErrQueueUnavailable
	}

	if q.channel == nil || q.channel.IsClosed() {
		ch, err := q.conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("notify: reopen channel: %w", err)
		}
		q.channel = ch
	}

	return q.channel, nil
}

// Notify enqueues the event as a persistent message. It fails fast with
// ErrQueueUnavailable while the broker is unreachable.
func (q *Queue) Notify(ctx context.Context, event RegistrationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	ch, err := q.publishChannel()
	if err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    event.RegistrationID,
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", q.name, false, false, publishing); err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}

	return nil
}

// Run consumes queued events until ctx is cancelled, reconnecting with a
// capped backoff when the broker drops the connection.
func (q *Queue) Run(ctx context.Context, handler Notifier) error {
	backoff := time.Second

	for {
		err := q.consume(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		q.logError("Notification consumer stopped; reconnecting", "error", err, "retry_in", backoff.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (q *Queue) consume(ctx context.Context, handler Notifier) error {
	conn, err := q.reconnect(ctx)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("notify: consumer channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		q.logError("Failed to set consumer QoS", "error", err)
	}

	deliveries, err := ch.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("notify: consume %s: %w", q.name, err)
	}

	if q.logger != nil {
		q.logger.Info("Notification consumer started", "queue", q.name)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			q.handleDelivery(ctx, delivery, handler)
		}
	}
}

// handleDelivery acks delivered events and rejects the rest without requeue;
// the endpoint has no retry contract and a poison message must not loop.
func (q *Queue) handleDelivery(ctx context.Context, delivery amqp.Delivery, handler Notifier) {
	var event RegistrationEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		q.logError("Rejecting malformed notification message", "error", err)
		_ = delivery.Nack(false, false)
		return
	}

	handlerCtx, cancel := context.WithTimeout(ctx, q.handlerWait)
	defer cancel()

	if err := handler.Notify(handlerCtx, event); err != nil {
		q.logError("Notification delivery failed", "registration_id", event.RegistrationID, "error", err)
		_ = delivery.Nack(false, false)
		return
	}

	_ = delivery.Ack(false)
}

func (q *Queue) Ping(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn == nil || q.conn.IsClosed() {
		return fmt.Errorf("notify: broker connection is closed")
	}
	return nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var errs []error
	if q.channel != nil && !q.channel.IsClosed() {
		errs = append(errs, q.channel.Close())
	}
	if q.conn != nil && !q.conn.IsClosed() {
		errs = append(errs, q.conn.Close())
	}

	return errors.Join(errs...)
}

func (q *Queue) logError(msg string, args ...any) {
	if q.logger != nil {
		q.logger.Error(msg, args...)
	}
}
