package referral

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/pkg/constants"
	apperrors "github.com/akeren/event-referrals/pkg/errors"
	"github.com/akeren/event-referrals/pkg/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=service.go -destination=mock_dependencies.go -package=referral -exclude_interfaces=ReferralService

var tracer = otel.Tracer("github.com/akeren/event-referrals/domain/referral")

type ReferralService interface {
	// GetStatus returns the reward progress for code. An empty or unknown
	// code yields zero progress rather than an error.
	GetStatus(ctx context.Context, code string) (*StatusResponse, error)

	// Watch subscribes to updates for code and then reads the current
	// status, so no update between the two can be missed. The caller owns
	// the returned subscription.
	Watch(ctx context.Context, code string) (*StatusResponse, pubsub.Subscription, error)
}

// Subscriber opens live update feeds.
type Subscriber interface {
	Subscribe(ctx context.Context, code string) (pubsub.Subscription, error)
}

// StatusCache stores referral counts keyed by constants.ReferralStatusCacheKey.
// SetMax never lowers a stored count, so a slow reader cannot overwrite a
// credit that landed after its store read.
type StatusCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetMax(ctx context.Context, key string, value int, ttl time.Duration) (bool, error)
}

type referralService struct {
	logger     *log.Logger
	repository ReferralRepository
	subscriber Subscriber
	cache      StatusCache
	cacheTTL   time.Duration
}

func NewReferralService(logger *log.Logger, repository ReferralRepository, subscriber Subscriber, cache StatusCache) ReferralService {
	return &referralService{
		logger:     logger,
		repository: repository,
		subscriber: subscriber,
		cache:      cache,
		cacheTTL:   constants.ReferralStatusCacheTTL,
	}
}

func (s *referralService) GetStatus(ctx context.Context, code string) (*StatusResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	ctx, span := tracer.Start(ctx, "referral.GetStatus")
	defer span.End()

	code = strings.TrimSpace(code)
	if code == "" {
		response := NewStatusResponse("", 0)
		return &response, nil
	}

	span.SetAttributes(attribute.String("referral.code", code))

	if count, ok := s.cachedCount(ctx, logger, code); ok {
		response := NewStatusResponse(code, count)
		return &response, nil
	}

	count, err := s.loadCount(ctx, logger, code)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.storeCount(ctx, logger, code, count)

	response := NewStatusResponse(code, count)
	return &response, nil
}

func (s *referralService) Watch(ctx context.Context, code string) (*StatusResponse, pubsub.Subscription, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, apperrors.NewInvalidRequestError("a referral code is required", nil)
	}

	if s.subscriber == nil {
		return nil, nil, apperrors.NewServiceUnavailableError("live updates are unavailable", nil)
	}

	sub, err := s.subscriber.Subscribe(ctx, code)
	if err != nil {
		logger.Error("Failed to subscribe to referral updates", "code", code, "error", err)
		return nil, nil, apperrors.NewServiceUnavailableError("live updates are unavailable", err)
	}

	// Read after subscribing and bypass the cache: the initial value must be
	// at least as new as anything published before the subscription existed.
	count, err := s.loadCount(ctx, logger, code)
	if err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	response := NewStatusResponse(code, count)
	return &response, sub, nil
}

// loadCount reads the count from the store; an unknown code counts as zero.
func (s *referralService) loadCount(ctx context.Context, logger *log.Logger, code string) (int, error) {
	count, err := s.repository.FindReferralCount(ctx, code)
	if err != nil {
		if errors.Is(err, ErrReferralCodeNotFound) {
			logger.Info("Referral code not found, reporting zero progress", "code", code)
			return 0, nil
		}

		logger.Error("Failed to load referral status", "code", code, "error", err)
		return 0, err
	}

	return count, nil
}

func (s *referralService) cachedCount(ctx context.Context, logger *log.Logger, code string) (int, bool) {
	if s.cache == nil {
		return 0, false
	}

	raw, err := s.cache.Get(ctx, constants.ReferralStatusCacheKey(code))
	if err != nil {
		logger.Warn("Referral status cache read failed", "code", code, "error", err)
		return 0, false
	}
	if raw == "" {
		return 0, false
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warn("Ignoring malformed cached referral count", "code", code, "value", raw)
		return 0, false
	}

	return count, true
}

func (s *referralService) storeCount(ctx context.Context, logger *log.Logger, code string, count int) {
	if s.cache == nil {
		return
	}

	if _, err := s.cache.SetMax(ctx, constants.ReferralStatusCacheKey(code), count, s.cacheTTL); err != nil {
		logger.Warn("Referral status cache write failed", "code", code, "error", err)
	}
}
