// Package observability holds the process-wide Prometheus collectors.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Response cache lookups by outcome.",
		},
		[]string{"outcome", "driver"},
	)

	cachePurges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_purges_total",
			Help: "Response cache purges by trigger.",
		},
		[]string{"trigger"},
	)

	degradedQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_degraded_queries_total",
			Help: "Downstream query failures converted into degraded results.",
		},
		[]string{"scope", "stage"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"upstream"},
	)

	breakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result.",
		},
		[]string{"upstream", "result"},
	)

	cacheOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Latency of Redis cache operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	cacheOpTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis cache operations by result.",
		},
		[]string{"op", "result"},
	)

	invalidationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Dataset update events consumed, by result.",
		},
		[]string{"result"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func IncCacheHit(driver string) {
	cacheResults.WithLabelValues("hit", driver).Inc()
}

func IncCacheMiss(driver string) {
	cacheResults.WithLabelValues("miss", driver).Inc()
}

func IncCacheError(driver string) {
	cacheResults.WithLabelValues("error", driver).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	cacheOpTotal.WithLabelValues(op, res).Inc()
	cacheOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

// IncInvalidation counts consumed events. result is one of applied, duplicate,
// invalid, error.
func IncInvalidation(result string) {
	invalidationEvents.WithLabelValues(result).Inc()
}

func IncCachePurge(trigger string) {
	cachePurges.WithLabelValues(trigger).Inc()
}

// IncDegraded counts a downstream failure that was absorbed. stage is one of
// alerts, area, feed, series.
func IncDegraded(scope, stage string) {
	degradedQueries.WithLabelValues(scope, stage).Inc()
}

func SetBreakerState(upstream string, state float64) {
	breakerState.WithLabelValues(upstream).Set(state)
}

func IncBreakerRequest(upstream, result string) {
	breakerRequests.WithLabelValues(upstream, result).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
