// Package observability holds the Prometheus collectors and OpenTelemetry
// tracer shared across the service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialhub_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache-aside reads by result (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialhub_cache_lookups_total",
		Help: "Cache-aside lookups by result",
	}, []string{"result"})

	// DatabaseQueryLatency records repository query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialhub_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	LoginFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialhub_login_failures_total",
		Help: "Failed login attempts with a known username and wrong password",
	})

	AccountLockouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialhub_account_lockouts_total",
		Help: "Accounts locked after reaching the failed login threshold",
	})

	// MediaUploads counts media uploads by provider and result (ok, error, timeout).
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialhub_media_uploads_total",
		Help: "Media uploads by provider and result",
	}, []string{"provider", "result"})

	MediaUploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialhub_media_upload_duration_seconds",
		Help:    "Media upload latency in seconds",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"provider"})

	// EventsPublished counts domain events handed to the broker.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialhub_events_published_total",
		Help: "Domain events published by subject and result",
	}, []string{"subject", "result"})

	// WebSocketConnectionsTotal is the gauge of open notification sockets.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "socialhub_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialhub_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
