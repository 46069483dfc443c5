package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mainq_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// ActiveWebSockets is the gauge of connected live-update sockets.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mainq_websocket_connections",
		Help: "Number of active live-update WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped because a client send buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mainq_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	})

	// ItemViews counts recorded impressions by content kind.
	ItemViews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mainq_item_views_total",
		Help: "Total number of recorded content views by kind",
	}, []string{"kind"})

	// BestEffortFailures counts swallowed failures of best-effort operations.
	BestEffortFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mainq_best_effort_failures_total",
		Help: "Total number of failed best-effort operations by operation name",
	}, []string{"operation"})

	// CacheLookups counts cache-aside lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mainq_cache_lookups_total",
		Help: "Total number of cache-aside lookups by result",
	}, []string{"result"})

	// ContentPublished counts created items and articles by kind.
	ContentPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mainq_content_published_total",
		Help: "Total number of published items and articles by kind",
	}, []string{"kind"})
)
