package config

import (
	"context"
	"time"

	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/internal/notify"
	"github.com/akeren/event-referrals/pkg/circuitbreaker"
	"github.com/akeren/event-referrals/pkg/retry"
	"github.com/akeren/event-referrals/pkg/utils"
)

const queueStartupTimeout = 30 * time.Second

type NotificationConfig struct {
	WebhookURL     string
	WebhookToken   string
	WebhookTimeout time.Duration
	RabbitMQURL    string
	QueueName      string
}

func NewNotificationConfig() *NotificationConfig {
	return &NotificationConfig{
		WebhookURL:     utils.GetEnvUnquoted("NOTIFY_WEBHOOK_URL"),
		WebhookToken:   utils.GetEnvUnquoted("NOTIFY_WEBHOOK_TOKEN"),
		WebhookTimeout: utils.GetEnvPositiveDuration("NOTIFY_WEBHOOK_TIMEOUT", 5*time.Second),
		RabbitMQURL:    utils.GetEnvUnquoted("RABBITMQ_URL"),
		QueueName:      utils.GetEnvTrimmedOrDefault("NOTIFY_QUEUE_NAME", notify.DefaultQueueName),
	}
}

// Notification is the assembled delivery path. Notifier is what the
// registration flow calls; when a queue is configured it is the queue itself
// and Delivery is the webhook its consumer posts to.
type Notification struct {
	Notifier notify.Notifier
	Queue    *notify.Queue
	Delivery notify.Notifier
}

// NewNotification wires the webhook and, when RABBITMQ_URL is set, the queue in
// front of it. A queue that cannot be reached degrades to direct delivery.
func (nc *NotificationConfig) NewNotification(logger *log.Logger) *Notification {
	if nc.WebhookURL == "" {
		logger.Info("Notification webhook not configured; registration notifications are disabled")
		return &Notification{Notifier: notify.NoopNotifier{}}
	}

	webhook, err := notify.NewWebhookNotifier(notify.WebhookConfig{
		URL:     nc.WebhookURL,
		Token:   nc.WebhookToken,
		Timeout: nc.WebhookTimeout,
		Breaker: &circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 1,
			RecoveryTimeout:  30 * time.Second,
			OnStateChange: func(from, to circuitbreaker.CircuitState) {
				logger.Warn("Notification webhook circuit changed state", "from", from.String(), "to", to.String())
			},
		},
	})
	if err != nil {
		logger.Error("Failed to create notification webhook; notifications are disabled", "error", err)
		return &Notification{Notifier: notify.NoopNotifier{}}
	}

	if nc.RabbitMQURL == "" {
		logger.Info("Notifications delivered directly to webhook")
		return &Notification{Notifier: webhook, Delivery: webhook}
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), queueStartupTimeout)
	defer cancel()

	queue, err := notify.DialQueue(dialCtx, notify.QueueConfig{
		URL:       nc.RabbitMQURL,
		QueueName: nc.QueueName,
		Logger:    logger,
		Retry: &retry.Config{
			MaxAttempts: 5,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    10 * time.Second,
			Multiplier:  2.0,
		},
	})
	if err != nil {
		logger.Error("Failed to connect to notification queue; falling back to direct webhook delivery", "error", err)
		return &Notification{Notifier: webhook, Delivery: webhook}
	}

	logger.Info("Notifications queued through RabbitMQ", "queue", nc.QueueName)
	return &Notification{Notifier: queue, Queue: queue, Delivery: webhook}
}
