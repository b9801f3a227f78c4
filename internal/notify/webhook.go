package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akeren/event-referrals/pkg/circuitbreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/akeren/event-referrals/internal/notify")

const defaultWebhookTimeout = 5 * time.Second

type WebhookConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
	Breaker *circuitbreaker.Config
}

// WebhookNotifier posts registration events to a fixed endpoint authenticated
// with a static bearer token. There is no retry; the circuit breaker only
// stops hammering an endpoint that keeps failing.
type WebhookNotifier struct {
	url     string
	token   string
	client  *http.Client
	breaker circuitbreaker.CircuitBreaker
}

func NewWebhookNotifier(cfg WebhookConfig) (*WebhookNotifier, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("notify: webhook URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	return &WebhookNotifier{
		url:     strings.TrimSpace(cfg.URL),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		breaker: circuitbreaker.NewCircuitBreaker(cfg.Breaker),
	}, nil
}

func (w *WebhookNotifier) Notify(ctx context.Context, event RegistrationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	return w.breaker.Call(func() error {
		return w.post(ctx, body)
	})
}

func (w *WebhookNotifier) post(ctx context.Context, body []byte) (err error) {
	ctx, span := tracer.Start(ctx, "notify.webhook", trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "webhook delivery failed")
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook responded with status %d", resp.StatusCode)
	}

	return nil
}
