package config

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/akeren/event-referrals/config/router"
	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/internal/models"
	"github.com/akeren/event-referrals/pkg/constants"
	"github.com/akeren/event-referrals/pkg/pubsub"
	"github.com/akeren/event-referrals/pkg/utils"
	"gorm.io/gorm"
)

type ApplicationConfig struct {
	DB              *gorm.DB
	RouterService   *router.RouterService
	Logger          *log.Logger
	Cache           Cache
	Broker          pubsub.Broker
	Notification    *Notification
	Config          *AppConfig
	TracingShutdown func(context.Context) error

	workers sync.WaitGroup
}

type AppConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RequestTimeout    time.Duration
	// PublicOrigin is the landing page origin used in share links. When empty
	// it is derived from each request.
	PublicOrigin string

	Port           string
	GinMode        string
	TrustedProxies []string
	AllowedOrigins []string
	MaxBodyBytes   int64
	HSTS           router.HSTSConfig
	DisableMetrics bool
}

func NewAppConfig() *AppConfig {
	appEnv := GetAppEnv()

	return &AppConfig{
		RateLimitRequests: int(utils.GetEnvPositiveInt("RATE_LIMIT_REQUESTS", constants.DefaultRateLimitRequests)),
		RateLimitWindow:   utils.GetEnvPositiveDuration("RATE_LIMIT_WINDOW", constants.DefaultRateLimitWindow),
		RequestTimeout:    utils.GetEnvPositiveDuration("REQUEST_TIMEOUT", constants.DefaultRequestTimeout),
		PublicOrigin:      strings.TrimRight(utils.GetEnvUnquoted("PUBLIC_ORIGIN"), "/"),

		Port:           utils.GetEnvTrimmedOrDefault("APP_PORT", constants.DefaultHTTPPort),
		GinMode:        utils.GetEnvTrimmed("GIN_MODE"),
		TrustedProxies: utils.GetEnvList("TRUSTED_PROXIES"),
		AllowedOrigins: utils.GetEnvList("CORS_ALLOWED_ORIGIN"),
		MaxBodyBytes:   utils.GetEnvPositiveInt("MAX_REQUEST_BODY_BYTES", constants.DefaultMaxRequestBodyBytes),
		HSTS: router.HSTSConfig{
			Enabled:           utils.GetEnvBool("HSTS_ENABLED", IsProduction(appEnv)),
			MaxAge:            utils.GetEnvPositiveInt("HSTS_MAX_AGE", constants.DefaultHSTSMaxAge),
			IncludeSubdomains: utils.GetEnvBool("HSTS_INCLUDE_SUBDOMAINS", true),
		},
		DisableMetrics: !utils.GetEnvBool("METRICS_ENABLED", true),
	}
}

func (ac *AppConfig) RouterConfig() *router.RouterConfig {
	return &router.RouterConfig{
		RateLimitRequests: ac.RateLimitRequests,
		RateLimitWindow:   ac.RateLimitWindow,
		RequestTimeout:    ac.RequestTimeout,
		Port:              ac.Port,
		GinMode:           ac.GinMode,
		TrustedProxies:    ac.TrustedProxies,
		AllowedOrigins:    ac.AllowedOrigins,
		MaxBodyBytes:      ac.MaxBodyBytes,
		HSTS:              ac.HSTS,
		DisableMetrics:    ac.DisableMetrics,
	}
}

// StartBackgroundWorkers launches the notification queue consumer when one is
// configured. Workers stop when ctx is cancelled; Cleanup waits for them.
func (ac *ApplicationConfig) StartBackgroundWorkers(ctx context.Context) {
	if ac.Notification == nil || ac.Notification.Queue == nil || ac.Notification.Delivery == nil {
		return
	}

	queue := ac.Notification.Queue
	delivery := ac.Notification.Delivery

	ac.workers.Add(1)
	go func() {
		defer ac.workers.Done()

		ac.Logger.Info("Notification consumer started")
		if err := queue.Run(ctx, delivery); err != nil && !errors.Is(err, context.Canceled) {
			ac.Logger.Error("Notification consumer exited", "error", err)
			return
		}
		ac.Logger.Info("Notification consumer stopped")
	}()
}

func (ac *ApplicationConfig) Cleanup() {
	if ac.TracingShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ac.TracingShutdown(ctx); err != nil {
			ac.Logger.Error("Failed to shutdown tracer provider", "error", err)
		}
	}

	ac.workers.Wait()

	if ac.Notification != nil && ac.Notification.Queue != nil {
		if err := ac.Notification.Queue.Close(); err != nil {
			ac.Logger.Error("Failed to close notification queue", "error", err)
		}
	}

	if ac.Broker != nil {
		if err := ac.Broker.Close(); err != nil {
			ac.Logger.Error("Failed to close referral updates broker", "error", err)
		}
	}

	if ac.DB != nil {
		CloseDatabase(ac.DB, ac.Logger)
	}

	if ac.RouterService != nil {
		ac.RouterService.Cleanup()
	}

	if ac.Cache != nil {
		CloseCache(ac.Cache, ac.Logger)
	}

	ac.Logger.Info("Application cleanup completed")
}

func LoadApplicationConfiguration(logger *log.Logger, autoMigrate bool) (*ApplicationConfig, error) {
	InitializeEnvFile(logger)

	if autoMigrate {
		appEnv := GetAppEnv()
		if err := ValidateAutoMigrateAllowed(appEnv); err != nil {
			return nil, err
		}
		if appEnv == "" {
			logger.Warn("APP_ENV not set; allowing --auto-migrate as development")
		}
	}

	tracingShutdown, err := SetupTracing(logger)
	if err != nil {
		return nil, err
	}

	db, err := NewDatabase(logger, nil)
	if err != nil {
		return nil, err
	}

	if autoMigrate {
		if err := AutoMigrate(logger, db, models.ModelRegistry...); err != nil {
			return nil, err
		}
	}

	appConfig := NewAppConfig()
	cache := NewCacheConfig().NewCacheOrNil(logger)

	routerService := router.CreateRouterService(logger, cache, appConfig.RouterConfig())

	broker := NewBroker(cache, logger)
	notification := NewNotificationConfig().NewNotification(logger)

	logger.Info("Application configuration loaded successfully")

	return &ApplicationConfig{
		DB:              db,
		RouterService:   routerService,
		Logger:          logger,
		Cache:           cache,
		Broker:          broker,
		Notification:    notification,
		Config:          appConfig,
		TracingShutdown: tracingShutdown,
	}, nil
}
