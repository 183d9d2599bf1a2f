// Package observability provides Prometheus metrics for the fragend client
// pipeline and event stream.
package observability

import "github.com/prometheus/client_golang/prometheus"

// InteractiveBuckets defines histogram buckets suited for interactive
// request latencies, from 10ms to 30s.
var InteractiveBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

var (
	// RequestsTotal counts pipeline requests by operation and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragend_requests_total",
			Help: "Total pipeline requests",
		},
		[]string{"operation", "status"},
	)

	// RequestDuration records pipeline request duration in seconds by operation.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fragend_request_duration_seconds",
			Help:    "Request duration",
			Buckets: InteractiveBuckets,
		},
		[]string{"operation"},
	)

	// QuestionLength records the byte length of submitted questions.
	QuestionLength = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fragend_question_length_bytes",
			Help:    "Question length",
			Buckets: []float64{16, 64, 256, 1024, 4096, 16384},
		},
	)

	// FeedbackTotal counts submitted feedback by type.
	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragend_feedback_total",
			Help: "Feedback submissions",
		},
		[]string{"type"},
	)

	// StreamEventsTotal counts server-pushed events by kind.
	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragend_stream_events_total",
			Help: "Stream events received",
		},
		[]string{"kind"},
	)

	// ActiveChannels tracks the number of open event channels.
	ActiveChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fragend_channels_active",
			Help: "Open event channels",
		},
	)

	// CacheHitsTotal counts cache hits by operation.
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragend_cache_hits_total",
			Help: "Response cache hits",
		},
		[]string{"operation"},
	)

	// CacheMissesTotal counts cache misses by operation.
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragend_cache_misses_total",
			Help: "Response cache misses",
		},
		[]string{"operation"},
	)

	// RateLimitWait records time spent waiting for admission tokens.
	RateLimitWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fragend_ratelimit_wait_seconds",
			Help:    "Admission wait time",
			Buckets: InteractiveBuckets,
		},
		[]string{"class"},
	)

	// RetriesTotal counts retry attempts beyond the first by operation.
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragend_retries_total",
			Help: "Retried attempts",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		QuestionLength,
		FeedbackTotal,
		StreamEventsTotal,
		ActiveChannels,
		CacheHitsTotal,
		CacheMissesTotal,
		RateLimitWait,
		RetriesTotal,
	)
}
