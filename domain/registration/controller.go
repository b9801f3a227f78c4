package registration

import (
	"errors"
	"time"

	"github.com/akeren/event-referrals/config/router"
	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/internal/notify"
	apperrors "github.com/akeren/event-referrals/pkg/errors"
	"github.com/akeren/event-referrals/pkg/factory"
	"github.com/akeren/event-referrals/pkg/ratelimit"
	"github.com/akeren/event-referrals/pkg/sharelink"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const registrationRequestsPerMinute = 30

// Cache is the subset of the application cache the registration domain uses:
// Ping backs the rate limiter selection, SetMax the status refresh.
type Cache interface {
	factory.Cache
	StatusCache
}

type ControllerOptions struct {
	Notifier     notify.Notifier
	Publisher    UpdatePublisher
	Cache        Cache
	PublicOrigin string
}

func NewRegistrationController(
	db *gorm.DB,
	logger *log.Logger,
	options ControllerOptions,
) *router.RESTController {

	return router.NewVersionedRESTController(
		"RegistrationController",
		"v1",
		"/registrations",
		func(rs *router.RouterService, c *router.RESTController) {
			repository := NewRegistrationRepository(db)

			deps := Dependencies{
				Notifier:  options.Notifier,
				Publisher: options.Publisher,
				Metrics:   NewMetrics(rs.MetricsRegistry()),
			}
			if options.Cache != nil {
				deps.Cache = options.Cache
			}

			service := NewRegistrationService(logger, repository, deps)

			creationLimiter := createRegistrationRateLimiter(options.Cache, logger)

			rs.AddPostHandler(c, creationLimiter, "", createRegistrationHandler(service, options.PublicOrigin))
			rs.AddGetHandler(c, nil, "/options", getRegistrationOptionsHandler())
		},
	)
}

func createRegistrationRateLimiter(cache Cache, logger *log.Logger) ratelimit.RateLimiter {
	var pinger factory.Cache
	if cache != nil {
		pinger = cache
	}

	return factory.NewDefaultRateLimiterFactory(
		registrationRequestsPerMinute,
		time.Minute,
		pinger,
		logger,
	).CreateRateLimiter()
}

func createRegistrationHandler(service RegistrationService, publicOrigin string) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		var req CreateRegistrationRequest

		if err := ctx.ShouldBindJSON(&req); err != nil {
			logger.Error("Failed to bind request", "error", err)

			validationErrors := apperrors.FormatValidationErrors(err, &req)
			if len(validationErrors) > 0 {
				return router.BadRequestResult("Invalid request payload", validationErrors)
			}

			return router.BadRequestResult("Invalid request body", nil)
		}

		response, err := service.Register(ctx.Request.Context(), &req)
		if err != nil {
			var validationErrs validator.ValidationErrors
			if errors.As(err, &validationErrs) {
				return router.BadRequestResult("Invalid request payload", apperrors.FormatValidationErrors(validationErrs, &req))
			}

			return router.ErrorResult(
				apperrors.HTTPStatusCode(err),
				apperrors.GetHumanReadableMessage(err),
				ErrorResponse{ErrorCode: ErrorCode(err)},
			)
		}

		origin := router.RequestOrigin(ctx, publicOrigin)
		response.ShareLink = sharelink.Build(origin, response.ReferralCode)
		response.WhatsAppLink = sharelink.WhatsApp(response.ShareLink)
		response.StatusURL = sharelink.StatusPage(origin, response.ReferralCode)

		return router.CreatedResult(response, "Registration")
	}
}

func getRegistrationOptionsHandler() router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		return router.OKResult(NewRegistrationOptionsResponse(), "Registration options retrieved successfully")
	}
}
