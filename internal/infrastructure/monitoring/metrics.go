package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh tick outcomes
const (
	OutcomeCommitted   = "committed"
	OutcomeNoMatch     = "no_match"
	OutcomeVersionSkip = "version_skip"
	OutcomeStale       = "stale"
	OutcomeFailed      = "failed"
)

// Materialization paths taken by LoadConfig
const (
	PathCachedErrors = "cached_errors"
	PathMaterialized = "materialized"
	PathFailed       = "failed"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Profile refresh metrics
	RefreshTicks    *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	LastRefresh     prometheus.Gauge

	// Materialization metrics
	Materializations *prometheus.CounterVec

	// Control plane metrics
	ControlPlaneCalls    *prometheus.CounterVec
	ControlPlaneDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests    int64   `json:"totalRequests"`
	TotalErrors      int64   `json:"totalErrors"`
	RefreshCommitted int64   `json:"refreshCommitted"`
	RefreshFailed    int64   `json:"refreshFailed"`
	ActiveClients    int64   `json:"activeClients"`
	UptimeSeconds    float64 `json:"uptimeSeconds"`
}

// NewMetrics registers all collectors with reg. Passing a fresh
// prometheus.NewRegistry keeps tests isolated from the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profiled_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "profiled_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Profile refresh metrics
		RefreshTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profiled_refresh_ticks_total",
				Help: "Total number of profile refresh ticks by outcome",
			},
			[]string{"outcome"},
		),
		RefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "profiled_refresh_duration_seconds",
				Help:    "Profile refresh tick duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		LastRefresh: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "profiled_last_refresh_timestamp_seconds",
				Help: "Unix time of the last committed profile refresh",
			},
		),

		// Materialization metrics
		Materializations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profiled_materializations_total",
				Help: "Total number of config loads by path",
			},
			[]string{"path"},
		),

		// Control plane metrics
		ControlPlaneCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profiled_control_plane_calls_total",
				Help: "Total number of control plane calls",
			},
			[]string{"operation", "status"},
		),
		ControlPlaneDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "profiled_control_plane_duration_seconds",
				Help:    "Control plane call duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "profiled_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profiled_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "profiled_uptime_seconds",
			Help: "Daemon uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordRefresh records one refresh tick
func (m *Metrics) RecordRefresh(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RefreshTicks.WithLabelValues(outcome).Inc()
	m.RefreshDuration.Observe(duration.Seconds())

	m.mu.Lock()
	switch outcome {
	case OutcomeCommitted:
		m.snapshot.RefreshCommitted++
		m.LastRefresh.SetToCurrentTime()
	case OutcomeFailed:
		m.snapshot.RefreshFailed++
	}
	m.mu.Unlock()
}

// RecordMaterialization records which path a config load took
func (m *Metrics) RecordMaterialization(path string) {
	if m == nil {
		return
	}
	m.Materializations.WithLabelValues(path).Inc()
}

// RecordControlPlaneCall records a control plane call
func (m *Metrics) RecordControlPlaneCall(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ControlPlaneCalls.WithLabelValues(operation, status).Inc()
	m.ControlPlaneDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveClients++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveClients--
	m.mu.Unlock()
}

// Snapshot returns the current values for the JSON health endpoint
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
