package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akeren/event-referrals/internal/log"
	apperrors "github.com/akeren/event-referrals/pkg/errors"
	"github.com/akeren/event-referrals/pkg/ratelimit"
	"github.com/akeren/event-referrals/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	DefaultTimeoutDuration = 30 * time.Second
	defaultPort            = "8080"
	defaultMaxBodyBytes    = 64 << 10
)

type Cache interface {
	Ping(ctx context.Context) error
}

type RedisClientProvider interface {
	GetClient() *redis.Client
}

type HSTSConfig struct {
	Enabled           bool
	MaxAge            int64
	IncludeSubdomains bool
}

type RouterConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RequestTimeout    time.Duration

	Port    string
	GinMode string
	// TrustedProxies gates X-Forwarded-For; "*" trusts every hop. Empty
	// means ClientIP is the socket peer.
	TrustedProxies []string
	// AllowedOrigins lists the landing page origins allowed to call the API
	// from the browser; "*" allows any.
	AllowedOrigins []string
	MaxBodyBytes   int64
	HSTS           HSTSConfig
	DisableMetrics bool
}

func (cfg RouterConfig) withDefaults() RouterConfig {
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = 100
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultTimeoutDuration
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return cfg
}

type RouterService struct {
	engine          *gin.Engine
	server          *http.Server
	logger          *log.Logger
	config          RouterConfig
	rateLimiter     ratelimit.RateLimiter
	metricsRegistry *prometheus.Registry

	handlerToControllerMap map[string]*RESTController
	rateLimitOverrides     map[string]ratelimit.RateLimiter
	streamingRoutes        map[string]bool

	// streamsCtx ends open streams once Shutdown starts.
	streamsCtx  context.Context
	stopStreams context.CancelFunc
}

func CreateRouterService(logger *log.Logger, cache Cache, routerConfig *RouterConfig) *RouterService {
	cfg := RouterConfig{}
	if routerConfig != nil {
		cfg = *routerConfig
	}
	cfg = cfg.withDefaults()

	if cfg.GinMode != "" {
		logger.Info("Setting Gin mode", "mode", cfg.GinMode)
		gin.SetMode(cfg.GinMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	if utils.IsTracingEnabled() {
		engine.Use(otelgin.Middleware(utils.OTelServiceName()))
		logger.Info("Tracing middleware enabled")
	}

	if err := engine.SetTrustedProxies(trustedProxyRanges(cfg.TrustedProxies)); err != nil {
		logger.Error("Invalid TRUSTED_PROXIES; disabling trusted proxies", "error", err)
		_ = engine.SetTrustedProxies(nil)
	}

	rs := &RouterService{
		engine: engine,
		logger: logger,
		config: cfg,

		rateLimitOverrides:     make(map[string]ratelimit.RateLimiter),
		handlerToControllerMap: make(map[string]*RESTController),
		streamingRoutes:        make(map[string]bool),
	}
	rs.streamsCtx, rs.stopStreams = context.WithCancel(context.Background())

	rs.rateLimiter = newDefaultRateLimiter(cache, cfg, logger)

	if !cfg.DisableMetrics {
		rs.mountMetrics()
	}

	engine.Use(
		rs.securityHeadersMiddleware(),
		rs.maxBodySizeMiddleware(),
		rs.corsMiddleware(),
		rs.rateLimitMiddleware(),
		rs.timeoutMiddleware(),
		rs.correlationIDMiddleware(),
		rs.loggerInjectionMiddleware(),
		rs.requestLoggingMiddleware(),
	)

	engine.HandleMethodNotAllowed = true
	engine.RedirectTrailingSlash = true

	engine.NoRoute(func(c *gin.Context) {
		logger.WithCorrelationID(c.Request.Context()).Warn("Route not found", "path", c.Request.URL.Path)
		c.JSON(http.StatusNotFound, NotFoundResult("Route not found").ToJSON())
	})

	engine.NoMethod(func(c *gin.Context) {
		logger.WithCorrelationID(c.Request.Context()).Warn("Method not allowed", "method", c.Request.Method, "path", c.Request.URL.Path)
		c.JSON(http.StatusMethodNotAllowed, ErrorResult(apperrors.StatusMethodNotAllowed, "Method not allowed", nil).ToJSON())
	})

	// Gin's Context is not goroutine-safe, so time limits are enforced by the
	// server; streams lift the write deadline themselves.
	rs.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout,
		IdleTimeout:       60 * time.Second,
	}
	rs.server.RegisterOnShutdown(rs.stopStreams)

	logger.Info("Router service initialized", "port", cfg.Port)
	return rs
}

func trustedProxyRanges(proxies []string) []string {
	if len(proxies) == 0 {
		return nil
	}
	for _, p := range proxies {
		if p == "*" {
			return []string{"0.0.0.0/0", "::/0"}
		}
	}
	return proxies
}

func newDefaultRateLimiter(cache Cache, cfg RouterConfig, logger *log.Logger) ratelimit.RateLimiter {
	var client *redis.Client
	if provider, ok := cache.(RedisClientProvider); ok {
		client = provider.GetClient()
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable for rate limiting, falling back to in-memory", "error", err)
			client = nil
		}
	}

	limiter := ratelimit.NewRateLimiter(&ratelimit.RateLimitConfig{
		Requests: cfg.RateLimitRequests,
		Window:   cfg.RateLimitWindow,
		Redis:    client,
		Logger:   logger,
	})

	logger.Info("Default rate limit initialized",
		"requests", cfg.RateLimitRequests,
		"window", cfg.RateLimitWindow,
		"distributed", client != nil,
	)
	return limiter
}

func (routerService *RouterService) GetDefaultRateLimitConfig() (int, time.Duration) {
	return routerService.config.RateLimitRequests, routerService.config.RateLimitWindow
}

func (routerService *RouterService) GetEngine() *gin.Engine {
	return routerService.engine
}

func (routerService *RouterService) GetLogger(c *RequestContext) *log.Logger {
	return routerService.logger.WithCorrelationID(c.Request.Context())
}

func (routerService *RouterService) MountController(controller *RESTController) {
	controller.prepare(routerService, controller)

	routerService.logger.Info("Controller mounted",
		"name", controller.name,
		"path", controller.mountPoint,
		"version", controller.version,
		"handlers", controller.handlerCount,
	)
}

func (routerService *RouterService) RunHTTPServer() error {
	routerService.logger.Info("Starting HTTP server", "addr", routerService.server.Addr)

	if err := routerService.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		routerService.logger.Error("Failed to start HTTP server", "error", err)
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

func (routerService *RouterService) Shutdown(ctx context.Context) error {
	routerService.logger.Info("Shutting down HTTP server gracefully...")
	// Streams never go idle on their own, so end them before draining.
	routerService.stopStreams()
	return routerService.server.Shutdown(ctx)
}

func (routerService *RouterService) Cleanup() {
	routerService.stopStreams()
	if routerService.rateLimiter != nil {
		if err := routerService.rateLimiter.Close(); err != nil {
			routerService.logger.Error("Failed to close rate limiter", "error", err)
		}
	}
	for key, limiter := range routerService.rateLimitOverrides {
		if err := limiter.Close(); err != nil {
			routerService.logger.Error("Failed to close route rate limiter", "route", key, "error", err)
		}
	}
	routerService.logger.Info("Router service cleanup completed")
}
