package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSize       *prometheus.HistogramVec
	HTTPResponseSize      *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitExceededTotal *prometheus.CounterVec

	// Live chat
	ChatBatchesPublished *prometheus.CounterVec
	ChatMessagesPerBatch prometheus.Histogram
	ChatMessagesSent     prometheus.Counter
	ChatReplayedBatches  prometheus.Counter

	// Realtime
	WebsocketConnections prometheus.Gauge

	// Social engagement
	FollowsTotal   prometheus.Counter
	LikesTotal     *prometheus.CounterVec
	CommentsTotal  *prometheus.CounterVec
	PostsCreated   prometheus.Counter
	PollVotesTotal prometheus.Counter

	// Feed
	FeedGenerationTime *prometheus.HistogramVec

	// Admin dashboard collector
	DashboardRefreshDuration prometheus.Histogram
	DashboardRefreshErrors   *prometheus.CounterVec
	AlertsTriggered          *prometheus.CounterVec

	// Validation and errors
	ValidationFailures *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_size_bytes",
					Help:    "HTTP request body size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path"},
			),
			HTTPResponseSize: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			CacheHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_name"},
			),
			CacheMissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_name"},
			),

			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limit violations",
				},
				[]string{"endpoint", "method"},
			),

			ChatBatchesPublished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_batches_published_total",
					Help: "Chat batches published to the bus",
				},
				[]string{"reason"}, // interval, size, shutdown
			),
			ChatMessagesPerBatch: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "chat_messages_per_batch",
					Help:    "Messages plus deletions carried by each chat batch",
					Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
				},
			),
			ChatMessagesSent: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "chat_messages_sent_total",
					Help: "Chat messages accepted",
				},
			),
			ChatReplayedBatches: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "chat_replayed_batches_total",
					Help: "Chat batches merged with an already-applied sequence number",
				},
			),

			WebsocketConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "websocket_connections",
					Help: "Currently connected websocket clients",
				},
			),

			FollowsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "follows_total",
					Help: "Total number of follows",
				},
			),
			LikesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "likes_total",
					Help: "Total number of likes",
				},
				[]string{"target_type"},
			),
			CommentsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "comments_total",
					Help: "Total number of comments",
				},
				[]string{"target_type"},
			),
			PostsCreated: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "posts_created_total",
					Help: "Total number of posts created",
				},
			),
			PollVotesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "poll_votes_total",
					Help: "Total number of poll ballots cast",
				},
			),

			FeedGenerationTime: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "feed_generation_duration_seconds",
					Help:    "Time to generate feed in seconds",
					Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"feed_type"},
			),

			DashboardRefreshDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "admin_dashboard_refresh_duration_seconds",
					Help:    "Time to refresh the admin dashboard snapshot",
					Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
				},
			),
			DashboardRefreshErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "admin_dashboard_refresh_errors_total",
					Help: "Dashboard counts that failed to refresh",
				},
				[]string{"metric"},
			),
			AlertsTriggered: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "admin_alerts_triggered_total",
					Help: "Dashboard alerts raised, by rule and level",
				},
				[]string{"rule", "level"},
			),

			ValidationFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "validation_failures_total",
					Help: "Total validation failures",
				},
				[]string{"field"},
			),
			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Initialize()
}
