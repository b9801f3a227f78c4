package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsPath = "/metrics"

type httpMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	openStreams     prometheus.Gauge
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds, excluding event streams.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		openStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_open_event_streams",
			Help: "Server-Sent Event streams currently connected.",
		}),
	}

	reg.MustRegister(m.requestsTotal, m.requestDuration, m.openStreams)
	return m
}

// mountMetrics registers /metrics before the global middleware so scrapes skip
// rate limiting and CORS.
func (routerService *RouterService) mountMetrics() {
	reg := routerService.MetricsRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := newHTTPMetrics(reg)

	routerService.engine.Use(func(c *gin.Context) {
		route := c.FullPath()
		streaming := routerService.streamingRoutes[route]
		if streaming {
			m.openStreams.Inc()
			defer m.openStreams.Dec()
		}

		start := time.Now()
		c.Next()

		if route == "" {
			route = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.requestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		if !streaming {
			m.requestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		}
	})

	routerService.engine.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	routerService.logger.Info("Metrics endpoint mounted", "path", metricsPath)
}

// MetricsRegistry returns the registry served on /metrics. Domains register
// their own collectors on it; when metrics are disabled the registry is
// simply never exposed.
func (routerService *RouterService) MetricsRegistry() *prometheus.Registry {
	if routerService.metricsRegistry == nil {
		routerService.metricsRegistry = prometheus.NewRegistry()
	}
	return routerService.metricsRegistry
}
