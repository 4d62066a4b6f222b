// Package metrics exposes Prometheus collectors for the AI orchestration layer:
// request outcomes, latency, cache effectiveness, retries, queue depth and
// the derived health score.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "tripmux"
)

// LatencyBuckets defines histogram buckets for latency metrics (in seconds).
var LatencyBuckets = []float64{
	0.005, 0.0125, 0.025, 0.05, 0.1, 0.25, 0.5,
	1.0, 1.5, 2.0, 3.0, 4.0, 5.0, 7.5,
	10.0, 15.0, 20.0, 30.0, 60.0, 120.0,
}

// =============================================================================
// Request Metrics
// =============================================================================

var (
	// RequestsTotal counts terminal request outcomes.
	// status is "success" or "failure"; error_type is the error kind or "none".
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Total number of AI completion requests by outcome",
		},
		[]string{"operation", "status", "error_type", "cache"},
	)

	// RequestLatency tracks end-to-end latency including queue wait and retries.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_latency_seconds",
			Help:      "End-to-end AI request latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"operation", "cache"},
	)

	// UpstreamLatency tracks individual provider attempts.
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Latency of a single upstream provider attempt in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"provider", "model"},
	)

	// RetriesTotal counts retry attempts by the error kind that triggered them.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Total number of upstream retries by error type",
		},
		[]string{"provider", "error_type"},
	)
)

// =============================================================================
// Cache Metrics
// =============================================================================

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of response cache hits",
		},
		[]string{"backend"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of response cache misses",
		},
		[]string{"backend"},
	)

	// CacheErrors counts backend failures. They are treated as misses.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Total number of response cache backend errors",
		},
		[]string{"backend", "op"},
	)
)

// =============================================================================
// Queue and Health Metrics
// =============================================================================

var (
	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Number of requests waiting for admission",
		},
	)

	QueueActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_active_requests",
			Help:      "Number of admitted requests currently executing",
		},
	)

	QueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Time spent waiting for admission in seconds",
			Buckets:   LatencyBuckets,
		},
	)

	// HealthScore is refreshed whenever the insights are computed.
	HealthScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_score",
			Help:      "Derived health score of the AI subsystem (0-100)",
		},
	)
)
