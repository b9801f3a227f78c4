package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/internal/models"
	"github.com/akeren/event-referrals/internal/notify"
	"github.com/akeren/event-referrals/pkg/constants"
	apperrors "github.com/akeren/event-referrals/pkg/errors"
	"github.com/akeren/event-referrals/pkg/pubsub"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=service.go -destination=mock_dependencies.go -package=registration -exclude_interfaces=RegistrationService

// DefaultSideEffectTimeout bounds each post-insert side effect.
const DefaultSideEffectTimeout = 5 * time.Second

var tracer = otel.Tracer("github.com/akeren/event-referrals/domain/registration")

type RegistrationService interface {
	// Register validates and stores a registration, then credits the referrer
	// and dispatches the notification. Side-effect failures are logged and
	// never fail the submission.
	Register(ctx context.Context, req *CreateRegistrationRequest) (*RegistrationResponse, error)
}

// UpdatePublisher publishes live referral count updates.
type UpdatePublisher interface {
	Publish(ctx context.Context, update pubsub.Update) error
}

// StatusCache is the cache in front of referral status lookups. SetMax never
// lowers a stored count.
type StatusCache interface {
	SetMax(ctx context.Context, key string, value int, ttl time.Duration) (bool, error)
}

type Dependencies struct {
	Notifier          notify.Notifier
	Publisher         UpdatePublisher
	Cache             StatusCache
	Metrics           *Metrics
	SideEffectTimeout time.Duration
}

type registrationService struct {
	logger            *log.Logger
	repository        RegistrationRepository
	validate          *validator.Validate
	notifier          notify.Notifier
	publisher         UpdatePublisher
	cache             StatusCache
	metrics           *Metrics
	sideEffectTimeout time.Duration
}

func NewRegistrationService(logger *log.Logger, repository RegistrationRepository, deps Dependencies) RegistrationService {
	if deps.Notifier == nil {
		deps.Notifier = notify.NoopNotifier{}
	}
	if deps.SideEffectTimeout <= 0 {
		deps.SideEffectTimeout = DefaultSideEffectTimeout
	}

	return &registrationService{
		logger:            logger,
		repository:        repository,
		validate:          newValidator(),
		notifier:          deps.Notifier,
		publisher:         deps.Publisher,
		cache:             deps.Cache,
		metrics:           deps.Metrics,
		sideEffectTimeout: deps.SideEffectTimeout,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("timeslot", func(fl validator.FieldLevel) bool {
		return models.IsValidTimeSlot(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("registration: register timeslot validation: %v", err))
	}
	return v
}

func (s *registrationService) Register(ctx context.Context, req *CreateRegistrationRequest) (*RegistrationResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	ctx, span := tracer.Start(ctx, "registration.Register")
	defer span.End()

	if req == nil {
		logger.Error("Register received empty request")
		return nil, apperrors.NewInvalidRequestError("request cannot be nil", nil)
	}

	if !req.PrivacyAccepted {
		logger.Warn("Registration rejected: privacy policy not accepted")
		s.metrics.observeSubmission(CodeConsentRequired)
		return nil, NewConsentRequiredError()
	}

	normalized := req.Normalize()

	if err := s.validate.Struct(normalized); err != nil {
		logger.Warn("Registration rejected: validation failed", "error", err)
		s.metrics.observeSubmission(CodeInvalidRequest)
		return nil, apperrors.NewInvalidRequestError("Invalid request payload", err)
	}

	registration, err := s.repository.CreateRegistration(ctx, ToRegistrationModel(&normalized))
	if err != nil {
		code := ErrorCode(err)
		logger.Error("Failed to create registration", "error", err, "classification", code)
		s.metrics.observeSubmission(code)
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		return nil, err
	}

	span.SetAttributes(attribute.String("registration.id", registration.ID))
	logger.Info("Registration created", "registration_id", registration.ID, "referral_code", registration.ReferralCode)

	if registration.ReferredBy != nil {
		s.creditReferrer(ctx, logger, *registration.ReferredBy)
	}
	s.dispatchNotification(ctx, logger, registration)

	s.metrics.observeSubmission("created")

	response := ToRegistrationResponse(registration)
	return &response, nil
}

// detached returns a context that survives the client going away but is still
// bounded in time.
func (s *registrationService) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
}

func (s *registrationService) creditReferrer(ctx context.Context, logger *log.Logger, code string) {
	ctx, cancel := s.detached(ctx)
	defer cancel()

	ctx, span := tracer.Start(ctx, "registration.CreditReferrer")
	defer span.End()

	count, err := s.repository.IncrementReferralCount(ctx, code)
	if err != nil {
		if errors.Is(err, ErrReferralCodeNotFound) {
			logger.Info("Referral code not found, no credit applied", "referred_by", code)
			return
		}

		creditErr := wrap(ErrCreditAttributionFailed, err)
		logger.Error("Referral credit failed", "referred_by", code, "error", creditErr)
		s.metrics.observeSideEffectFailure(effectReferralCredit)
		span.RecordError(creditErr)
		span.SetStatus(codes.Error, "credit attribution failed")
		return
	}

	s.metrics.observeReferralCredited()
	logger.Info("Referral credited", "referred_by", code, "referral_count", count)

	if s.cache != nil {
		key := constants.ReferralStatusCacheKey(code)
		if _, err := s.cache.SetMax(ctx, key, count, constants.ReferralStatusCacheTTL); err != nil {
			logger.Warn("Failed to refresh referral status cache", "referred_by", code, "error", err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, pubsub.Update{Code: code, ReferralCount: count}); err != nil {
			logger.Warn("Failed to publish referral update", "referred_by", code, "error", err)
		}
	}
}

func (s *registrationService) dispatchNotification(ctx context.Context, logger *log.Logger, registration *models.Registration) {
	ctx, cancel := s.detached(ctx)
	defer cancel()

	ctx, span := tracer.Start(ctx, "registration.Notify")
	defer span.End()

	if err := s.notifier.Notify(ctx, notify.NewRegistrationEvent(registration)); err != nil {
		notifyErr := wrap(ErrNotificationFailed, err)
		logger.Error("Registration notification failed",
			"registration_id", registration.ID,
			"error", notifyErr,
		)
		s.metrics.observeSideEffectFailure(effectNotification)
		span.RecordError(notifyErr)
		span.SetStatus(codes.Error, "notification failed")
	}
}
