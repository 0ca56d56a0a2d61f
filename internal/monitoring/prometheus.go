// Package monitoring exposes Prometheus metrics for the API, the analysis
// pipeline and the external data providers.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	analysesTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	batchJobsActive  prometheus.Gauge

	providerRequests *prometheus.CounterVec
	cacheOps         *prometheus.CounterVec

	wsConnections prometheus.Gauge
}

// NewMetrics creates and registers the metric set
func NewMetrics() *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
			[]string{"method", "endpoint"},
		),
		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analyses_total",
				Help: "Total number of instrument analyses by outcome",
			},
			[]string{"outcome"},
		),
		analysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "analysis_duration_seconds",
				Help:    "Full pipeline duration per instrument",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		batchJobsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "batch_jobs_active",
				Help: "Number of batch analysis jobs currently running",
			},
		),
		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_requests_total",
				Help: "Total number of data provider requests",
			},
			[]string{"provider", "status"},
		),
		cacheOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_ops_total",
				Help: "Cache lookups by result",
			},
			[]string{"kind", "result"},
		),
		wsConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "websocket_connections_active",
				Help: "Number of active WebSocket connections",
			},
		),
	}

	prometheus.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.analysesTotal,
		m.analysisDuration,
		m.batchJobsActive,
		m.providerRequests,
		m.cacheOps,
		m.wsConnections,
	)

	return m
}

// MetricsMiddleware creates a Prometheus metrics middleware for gin
func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		m.httpRequestsInFlight.WithLabelValues(c.Request.Method, path).Inc()
		defer m.httpRequestsInFlight.WithLabelValues(c.Request.Method, path).Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

// PrometheusHandler returns the Prometheus metrics handler
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// RecordAnalysis records one completed pipeline run
func (m *Metrics) RecordAnalysis(outcome string, duration time.Duration) {
	m.analysesTotal.WithLabelValues(outcome).Inc()
	m.analysisDuration.Observe(duration.Seconds())
}

// BatchJobStarted increments the active-job gauge
func (m *Metrics) BatchJobStarted() {
	m.batchJobsActive.Inc()
}

// BatchJobFinished decrements the active-job gauge
func (m *Metrics) BatchJobFinished() {
	m.batchJobsActive.Dec()
}

// RecordProviderRequest records one upstream data source call
func (m *Metrics) RecordProviderRequest(provider, status string) {
	m.providerRequests.WithLabelValues(provider, status).Inc()
}

// RecordCacheOp records a cache lookup outcome, result is hit or miss
func (m *Metrics) RecordCacheOp(kind, result string) {
	m.cacheOps.WithLabelValues(kind, result).Inc()
}

// WSConnected increments the WebSocket connection gauge
func (m *Metrics) WSConnected() {
	m.wsConnections.Inc()
}

// WSDisconnected decrements the WebSocket connection gauge
func (m *Metrics) WSDisconnected() {
	m.wsConnections.Dec()
}
