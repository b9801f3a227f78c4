// Package monitoring serves liveness and dependency health for the load
// balancer and the on-call dashboard.
package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/akeren/event-referrals/config/router"
	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/pkg/ratelimit"
	"gorm.io/gorm"
)

const (
	healthCheckTimeout          = 2 * time.Second
	monitoringRequestsPerMinute = 10
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the optional backends reported by /health. A nil entry is
// reported as not configured.
type Dependencies struct {
	Cache        Pinger
	MessageQueue Pinger
	Broker       Pinger
}

// HealthStatus uses 1 for healthy and 0 for unhealthy or not configured.
type HealthStatus struct {
	Database     int    `json:"database"`
	Cache        int    `json:"cache"`
	MessageQueue int    `json:"message_queue"`
	Broker       int    `json:"broker"`
	Uptime       int    `json:"uptime"`
	Status       string `json:"status"`
}

type MonitoringController struct {
	db        *gorm.DB
	logger    *log.Logger
	deps      Dependencies
	startTime time.Time
}

func NewMonitoringController(db *gorm.DB, logger *log.Logger, deps Dependencies) *router.RESTController {
	ctrl := &MonitoringController{
		db:        db,
		logger:    logger,
		deps:      deps,
		startTime: time.Now(),
	}

	return router.NewRESTController(
		"MonitoringController",
		"/",
		func(routerService *router.RouterService, controller *router.RESTController) {
			limiter := ratelimit.NewInMemoryRateLimiter(monitoringRequestsPerMinute, time.Minute)

			routerService.AddGetHandler(controller, limiter, "", ctrl.liveness)
			routerService.AddGetHandler(controller, limiter, "health", ctrl.health)
		},
	)
}

func (ctrl *MonitoringController) liveness(*router.RequestContext) *router.ServiceResult {
	return router.OKResult("Monitoring endpoint is operational.", "Monitoring successful")
}

// health answers 503 when the database is unreachable; the optional
// backends only degrade the report since every one has a fallback.
func (ctrl *MonitoringController) health(c *router.RequestContext) *router.ServiceResult {
	logger := router.GetLogger(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := ctrl.check(ctx, logger)

	if status.Database == 0 {
		return router.ErrorResult(http.StatusServiceUnavailable, "event-referrals is unhealthy", status)
	}
	return router.OKResult(status, "event-referrals health check completed")
}

func (ctrl *MonitoringController) check(ctx context.Context, logger *log.Logger) HealthStatus {
	status := HealthStatus{
		Uptime:       int(time.Since(ctrl.startTime).Seconds()),
		Database:     checkDependency(ctx, "database", databasePinger{ctrl.db}, logger),
		Cache:        checkDependency(ctx, "cache", ctrl.deps.Cache, logger),
		MessageQueue: checkDependency(ctx, "message_queue", ctrl.deps.MessageQueue, logger),
		Broker:       checkDependency(ctx, "broker", ctrl.deps.Broker, logger),
	}

	switch {
	case status.Database == 0:
		status.Status = "unhealthy"
	case ctrl.degraded(status):
		status.Status = "degraded"
	default:
		status.Status = "ok"
	}
	return status
}

// degraded reports a configured optional backend that failed its ping.
func (ctrl *MonitoringController) degraded(status HealthStatus) bool {
	return (ctrl.deps.Cache != nil && status.Cache == 0) ||
		(ctrl.deps.MessageQueue != nil && status.MessageQueue == 0) ||
		(ctrl.deps.Broker != nil && status.Broker == 0)
}

func checkDependency(ctx context.Context, name string, dep Pinger, logger *log.Logger) int {
	if dep == nil {
		logger.Debug("Health check skipped, dependency not configured", "dependency", name)
		return 0
	}

	if err := dep.Ping(ctx); err != nil {
		logger.Error("Health check failed", "dependency", name, "error", err)
		return 0
	}
	return 1
}

type databasePinger struct {
	db *gorm.DB
}

func (p databasePinger) Ping(ctx context.Context) error {
	if p.db == nil {
		return errNoDatabase
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
