package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Status-surface request rate.
	HTTPRequestsTotal *prometheus.CounterVec

	// Status-surface requests being served. Drained before shutdown.
	HTTPRequestsInFlight prometheus.Gauge

	// Status-surface latency. Watch for: /watchlist slow while a fetch holds things up.
	HTTPRequestDuration *prometheus.HistogramVec

	// Upstream observation fetches by status. Watch for: error vs success ratio.
	FetchCallsTotal *prometheus.CounterVec

	// Upstream latency per fetch. Watch for: p95 approaching the refresh interval.
	FetchDuration *prometheus.HistogramVec

	// Retry attempts for observation fetches. Watch for: high retries = unstable upstream.
	FetchRetriesTotal prometheus.Counter

	// Fetch failures by category (timeout, network, parsing, ...).
	FetchErrorsTotal *prometheus.CounterVec

	// Refresh cycles by what ended the previous wait (timeout, signal).
	RefreshCyclesTotal *prometheus.CounterVec

	// Time spent fetching one full watchlist.
	RefreshCycleDuration prometheus.Histogram

	// Stations currently on the watchlist.
	WatchlistSize prometheus.Gauge

	// Readings served from cache instead of upstream.
	CacheHitsTotal *prometheus.CounterVec

	// Cache backend errors by operation. Watch for: memcached unreachable.
	CacheErrorsTotal *prometheus.CounterVec

	// Circuit breaker state (0 closed, 1 open, 2 half-open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests to the status surface",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Status surface requests currently being served",
		},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	FetchCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchCallsTotal",
			Help: "Total number of observation feed requests",
		},
		[]string{"status"},
	)
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetchDurationSeconds",
			Help:    "Observation feed latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	FetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetchRetriesTotal",
			Help: "Total number of retry attempts for observation fetches",
		},
	)
	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchErrorsTotal",
			Help: "Failed station fetches by error category",
		},
		[]string{"category"},
	)
	RefreshCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshCyclesTotal",
			Help: "Refresh cycles started, labelled by what ended the preceding wait",
		},
		[]string{"trigger"},
	)
	RefreshCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refreshCycleDurationSeconds",
			Help:    "Time to fetch every watched station once",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	WatchlistSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchlistSize",
			Help: "Number of stations on the watchlist",
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Readings served from cache",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by operation and category",
		},
		[]string{"operation", "category"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestsInFlight, HTTPRequestDuration,
		FetchCallsTotal, FetchDuration, FetchRetriesTotal, FetchErrorsTotal,
		RefreshCyclesTotal, RefreshCycleDuration, WatchlistSize,
		CacheHitsTotal, CacheErrorsTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
	)
}

// RecordCircuitBreakerTransition counts a transition and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string, toValue int) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(float64(toValue))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
