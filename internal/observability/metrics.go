// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Source fetch metrics
	SourceFetchLatency *prometheus.HistogramVec
	SourceFetchErrors  *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Refresh metrics
	RefreshRuns         *prometheus.CounterVec
	DegradedFields      *prometheus.CounterVec
	InvariantViolations prometheus.Counter
	StaleServes         prometheus.Counter

	// Upload metrics
	UploadsAccepted prometheus.Counter
	UploadsRejected *prometheus.CounterVec

	// Feed metrics
	FeedSubscribers prometheus.Gauge

	// Rate limit metrics
	RequestsThrottled prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "memestats"
	}

	return &Metrics{
		SourceFetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "fetch_latency_seconds",
			Help:      "External source fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		SourceFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "fetch_errors_total",
			Help:      "Total number of terminal source fetch failures",
		}, []string{"source"}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of snapshot cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of snapshot cache misses",
		}),

		RefreshRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Total number of refresh cycles by status",
		}, []string{"status"}),
		DegradedFields: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "degraded_fields_total",
			Help:      "Total number of snapshot fields served from fallback",
		}, []string{"field"}),
		InvariantViolations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "invariant_violations_total",
			Help:      "Total number of supply conservation violations",
		}),
		StaleServes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "stale_serves_total",
			Help:      "Total number of requests served a stale snapshot",
		}),

		UploadsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "uploads",
			Name:      "accepted_total",
			Help:      "Total number of accepted meme uploads",
		}),
		UploadsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "uploads",
			Name:      "rejected_total",
			Help:      "Total number of rejected meme uploads by reason",
		}, []string{"reason"}),

		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of live stats feed subscribers",
		}),

		RequestsThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_throttled_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSourceFetch records one fetch against a source.
func RecordSourceFetch(source string, seconds float64, err error) {
	DefaultMetrics.SourceFetchLatency.WithLabelValues(source).Observe(seconds)
	if err != nil {
		DefaultMetrics.SourceFetchErrors.WithLabelValues(source).Inc()
	}
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	DefaultMetrics.CacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	DefaultMetrics.CacheMisses.Inc()
}

// RecordRefresh records a refresh cycle outcome.
func RecordRefresh(status string) {
	DefaultMetrics.RefreshRuns.WithLabelValues(status).Inc()
}

// RecordDegradedField records a field served from fallback.
func RecordDegradedField(field string) {
	DefaultMetrics.DegradedFields.WithLabelValues(field).Inc()
}

// RecordInvariantViolation increments the conservation violation counter.
func RecordInvariantViolation() {
	DefaultMetrics.InvariantViolations.Inc()
}

// RecordStaleServe increments the stale serve counter.
func RecordStaleServe() {
	DefaultMetrics.StaleServes.Inc()
}

// RecordUploadAccepted increments the accepted upload counter.
func RecordUploadAccepted() {
	DefaultMetrics.UploadsAccepted.Inc()
}

// RecordUploadRejected records a rejected upload with its reason.
func RecordUploadRejected(reason string) {
	DefaultMetrics.UploadsRejected.WithLabelValues(reason).Inc()
}

// SetFeedSubscribers updates the feed subscriber gauge.
func SetFeedSubscribers(n int) {
	DefaultMetrics.FeedSubscribers.Set(float64(n))
}

// RecordThrottled increments the throttled request counter.
func RecordThrottled() {
	DefaultMetrics.RequestsThrottled.Inc()
}
