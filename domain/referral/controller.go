package referral

import (
	"net/http"
	"time"

	"github.com/akeren/event-referrals/config/router"
	"github.com/akeren/event-referrals/internal/log"
	apperrors "github.com/akeren/event-referrals/pkg/errors"
	"github.com/akeren/event-referrals/pkg/sharelink"
	"gorm.io/gorm"
)

// DefaultPingInterval keeps idle streams alive through proxies.
const DefaultPingInterval = 25 * time.Second

const (
	statusEvent = "status"
	pingEvent   = "ping"
)

type ControllerOptions struct {
	Subscriber   Subscriber
	Cache        StatusCache
	PublicOrigin string
	PingInterval time.Duration
}

func NewReferralController(
	db *gorm.DB,
	logger *log.Logger,
	options ControllerOptions,
) *router.RESTController {

	if options.PingInterval <= 0 {
		options.PingInterval = DefaultPingInterval
	}

	return router.NewVersionedRESTController(
		"ReferralController",
		"v1",
		"/referrals",
		func(rs *router.RouterService, c *router.RESTController) {
			repository := NewReferralRepository(db)
			service := NewReferralService(logger, repository, options.Subscriber, options.Cache)

			rs.AddGetHandler(c, nil, "/status", getReferralStatusHandler(service, options.PublicOrigin))
			rs.AddStreamHandler(c, nil, "/stream", streamReferralStatusHandler(service, options))
		},
	)
}

func getReferralStatusHandler(service ReferralService, publicOrigin string) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		code := sharelink.CodeFromQuery(ctx.Request.URL.Query())

		response, err := service.GetStatus(ctx.Request.Context(), code)
		if err != nil {
			return router.ErrorResult(
				apperrors.HTTPStatusCode(err),
				apperrors.GetHumanReadableMessage(err),
				nil,
			)
		}

		return router.OKResult(response.WithLinks(router.RequestOrigin(ctx, publicOrigin)), "Referral status retrieved successfully")
	}
}

func streamReferralStatusHandler(service ReferralService, options ControllerOptions) router.StreamHandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)
		reqCtx := ctx.Request.Context()

		code := sharelink.CodeFromQuery(ctx.Request.URL.Query())
		origin := router.RequestOrigin(ctx, options.PublicOrigin)

		initial, sub, err := service.Watch(reqCtx, code)
		if err != nil {
			return router.ErrorResult(
				apperrors.HTTPStatusCode(err),
				apperrors.GetHumanReadableMessage(err),
				nil,
			)
		}
		defer func() {
			if err := sub.Close(); err != nil {
				logger.Warn("Failed to release referral subscription", "code", code, "error", err)
			}
		}()

		// The server-wide write timeout would otherwise cut the stream.
		if err := http.NewResponseController(ctx.Writer).SetWriteDeadline(time.Time{}); err != nil {
			logger.Debug("Write deadline not adjustable for stream", "error", err)
		}

		header := ctx.Writer.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		ctx.Status(http.StatusOK)

		ctx.SSEvent(statusEvent, initial.WithLinks(origin))
		ctx.Writer.Flush()

		logger.Info("Referral stream opened", "code", initial.Code, "referral_count", initial.ReferralCount)

		// Counts only grow; an update older than one already sent is dropped.
		last := initial.ReferralCount

		ticker := time.NewTicker(options.PingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-reqCtx.Done():
				logger.Info("Referral stream closed", "code", initial.Code)
				return nil

			case update, ok := <-sub.Updates():
				if !ok {
					logger.Info("Referral subscription ended", "code", initial.Code)
					return nil
				}
				if update.ReferralCount <= last {
					continue
				}
				last = update.ReferralCount
				ctx.SSEvent(statusEvent, NewStatusResponse(initial.Code, last).WithLinks(origin))
				ctx.Writer.Flush()

			case now := <-ticker.C:
				ctx.SSEvent(pingEvent, now.Unix())
				ctx.Writer.Flush()
			}
		}
	}
}
