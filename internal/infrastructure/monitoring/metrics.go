package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gridproxy"

// Metrics holds all Prometheus metrics. Each instance owns its registry so
// tests and embedded proxies can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec
	InFlight        prometheus.Gauge

	// Upstream metrics
	UpstreamAttempts *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	BreakerOpen      prometheus.Gauge

	// Session metrics
	SessionEvents   *prometheus.CounterVec
	SessionsCreated prometheus.Counter

	// Dependency metrics (session store, hub probe)
	DependencyCalls    *prometheus.CounterVec
	DependencyDuration *prometheus.HistogramVec
	DependencyErrors   *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the JSON health endpoint
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON health endpoint
type MetricsSnapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	UpstreamRetries int64   `json:"upstream_retries"`
	UpstreamFailed  int64   `json:"upstream_failed"`
	SessionsCreated int64   `json:"sessions_created"`
	AvgDurationMs   float64 `json:"avg_duration_ms"`
	UptimeSeconds   float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a new metrics collector with a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of proxied HTTP requests",
			},
			[]string{"method", "kind", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "End-to-end proxied request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "kind"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "kind"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "kind"},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Requests currently being proxied",
			},
		),

		UpstreamAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_attempts_total",
				Help:      "Upstream attempts by outcome (success, retry, give_up)",
			},
			[]string{"outcome"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Time spent dispatching to the hub, retries included",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),
		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Requests that failed to reach the hub",
			},
			[]string{"reason"},
		),
		BreakerOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_open",
				Help:      "1 when the upstream circuit breaker is open",
			},
		),

		SessionEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_events_total",
				Help:      "Session lifecycle events extracted from requests",
			},
			[]string{"status"},
		),
		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_created_total",
				Help:      "Sessions the hub confirmed with a session id",
			},
		),

		DependencyCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dependency_calls_total",
				Help:      "Calls to auxiliary dependencies",
			},
			[]string{"dependency", "method", "status"},
		),
		DependencyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dependency_duration_seconds",
				Help:      "Auxiliary dependency call duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"dependency", "method"},
		),
		DependencyErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dependency_errors_total",
				Help:      "Auxiliary dependency call errors",
			},
			[]string{"dependency", "method", "error_type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Proxy uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records a proxied HTTP request
func (m *Metrics) RecordHTTPRequest(method, kind, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, kind, status).Inc()
	m.RequestDuration.WithLabelValues(method, kind).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, kind).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, kind).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordAttempt records one upstream attempt outcome
func (m *Metrics) RecordAttempt(outcome string) {
	m.UpstreamAttempts.WithLabelValues(outcome).Inc()
	if outcome == "retry" {
		m.mu.Lock()
		m.snapshot.UpstreamRetries++
		m.mu.Unlock()
	}
}

// RecordDispatch records the total time spent on one dispatch
func (m *Metrics) RecordDispatch(kind string, duration time.Duration) {
	m.UpstreamDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordUpstreamError records a request that never got a hub response
func (m *Metrics) RecordUpstreamError(reason string) {
	m.UpstreamErrors.WithLabelValues(reason).Inc()
	m.mu.Lock()
	m.snapshot.UpstreamFailed++
	m.mu.Unlock()
}

// SetBreakerOpen reflects the breaker state
func (m *Metrics) SetBreakerOpen(open bool) {
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

// RecordSessionEvent records an extracted session event
func (m *Metrics) RecordSessionEvent(status string) {
	m.SessionEvents.WithLabelValues(status).Inc()
}

// IncSessionsCreated records a confirmed session id
func (m *Metrics) IncSessionsCreated() {
	m.SessionsCreated.Inc()
	m.mu.Lock()
	m.snapshot.SessionsCreated++
	m.mu.Unlock()
}

// RecordDependencyCall records a dependency call
func (m *Metrics) RecordDependencyCall(dependency, method, status string, duration time.Duration) {
	m.DependencyCalls.WithLabelValues(dependency, method, status).Inc()
	m.DependencyDuration.WithLabelValues(dependency, method).Observe(duration.Seconds())
}

// RecordDependencyError records a dependency error
func (m *Metrics) RecordDependencyError(dependency, method, errorType string) {
	m.DependencyErrors.WithLabelValues(dependency, method, errorType).Inc()
}

// Snapshot returns the current counters for the JSON health endpoint
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	if s.TotalRequests > 0 {
		s.AvgDurationMs = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
