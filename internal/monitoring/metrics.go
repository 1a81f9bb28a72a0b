package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for serve mode.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Pack run metrics
	PacksTotal    *prometheus.CounterVec
	PackDuration  prometheus.Histogram
	PackFiles     prometheus.Histogram
	PackBytes     prometheus.Histogram
	StageFailures *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSEventsSent  prometheus.Counter
	WSDropped     prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a metrics collector registered on reg; a nil reg uses
// the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satchel_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "satchel_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		PacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satchel_packs_total",
				Help: "Total number of pack runs by outcome",
			},
			[]string{"profile", "status"},
		),
		PackDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "satchel_pack_duration_seconds",
				Help:    "Pack run duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		PackFiles: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "satchel_pack_files",
				Help:    "Files included per pack run",
				Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
			},
		),
		PackBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "satchel_pack_artifact_bytes",
				Help:    "Artifact size in bytes per pack run",
				Buckets: []float64{1024, 10240, 102400, 1048576, 10485760, 104857600},
			},
		),
		StageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satchel_stage_failures_total",
				Help: "Stage failures by stage name and disposition",
			},
			[]string{"stage", "disposition"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "satchel_ws_connections",
				Help: "Active WebSocket stream connections",
			},
		),
		WSEventsSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "satchel_ws_events_sent_total",
				Help: "Pipeline events delivered over WebSocket",
			},
		),
		WSDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "satchel_ws_clients_dropped_total",
				Help: "WebSocket clients dropped for falling behind",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "satchel_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
	}
}

// RecordHTTPRequest records one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPack records one finished pack run.
func (m *Metrics) RecordPack(profile, status string, duration time.Duration, files int, artifactBytes int) {
	m.PacksTotal.WithLabelValues(profile, status).Inc()
	m.PackDuration.Observe(duration.Seconds())
	m.PackFiles.Observe(float64(files))
	m.PackBytes.Observe(float64(artifactBytes))
}

// RecordStageFailure records one stage failure. Disposition is one of
// "recovered", "skipped", or "fatal".
func (m *Metrics) RecordStageFailure(stage, disposition string) {
	m.StageFailures.WithLabelValues(stage, disposition).Inc()
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
