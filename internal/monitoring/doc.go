/*
Package monitoring provides Prometheus metrics for serve mode.

Collected: HTTP request metrics, pack run counters and durations, stage
failure counters, WebSocket stream metrics, and uptime. These are
service-level metrics; the per-run timings and memory deltas live in the
pipeline's own Statistics.

# Usage

	metrics := monitoring.NewMetrics(nil)
	router.Use(monitoring.Middleware(metrics))
	metrics.RecordPack("default", "success", elapsed, files, bytes)

Expose via promhttp on /metrics.
*/
package monitoring
