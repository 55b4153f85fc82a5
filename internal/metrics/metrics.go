package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_rate_limited_requests_total",
			Help: "Requests rejected by the per-IP rate limiter",
		},
	)

	// Route files
	RouteParseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_route_parse_duration_seconds",
			Help:    "Time spent parsing a route file and extracting its elevation profile",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"format"},
	)

	RouteLoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_route_load_failures_total",
			Help: "Route file loads that failed, by failure kind",
		},
		[]string{"kind"}, // fetch, parse, no_route_data
	)

	RouteCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_route_cache_hits_total",
			Help: "Route file cache hits by layer",
		},
		[]string{"layer"}, // memory, sqlite
	)

	RouteCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_route_cache_misses_total",
			Help: "Route file loads that had to go to the network",
		},
	)

	// Tracked runners
	RunnerRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_runner_refresh_total",
			Help: "Manual tracked-runner refreshes by outcome",
		},
		[]string{"outcome"}, // success, rate_limited, failed, suppressed
	)

	ActiveViews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_active_views",
			Help: "Event dashboard views currently held open",
		},
	)

	// Backend
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_backend_request_duration_seconds",
			Help:    "Duration of requests to the Run365 backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dashboard_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Websocket
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_websocket_connections",
			Help: "Open websocket connections",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_websocket_messages_dropped_total",
			Help: "Messages dropped because a client send buffer was full",
		},
	)

	// Device binding
	BindAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_bind_attempts_total",
			Help: "Device binding callbacks by provider and result",
		},
		[]string{"provider", "result"},
	)
)

// RecordAPIRequest records one served HTTP request
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	APIRequestDuration.WithLabelValues(method, endpoint, code).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, endpoint, code).Inc()
}

// RecordBackendRequest records one call to the Run365 backend. status is 0
// when no response was received.
func RecordBackendRequest(method string, status int, duration time.Duration) {
	BackendRequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordRouteParse records the time spent turning one route file into a result
func RecordRouteParse(format string, duration time.Duration) {
	RouteParseDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordRouteFailure counts a failed route load
func RecordRouteFailure(kind string) {
	RouteLoadFailures.WithLabelValues(kind).Inc()
}

// RecordRouteCacheHit counts a cache hit on the given layer
func RecordRouteCacheHit(layer string) {
	RouteCacheHits.WithLabelValues(layer).Inc()
}

// RecordRefresh counts a manual refresh outcome
func RecordRefresh(outcome string) {
	RunnerRefreshes.WithLabelValues(outcome).Inc()
}

// RecordBind counts a device binding callback
func RecordBind(provider string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	BindAttempts.WithLabelValues(provider, result).Inc()
}

// SetCircuitBreakerState publishes a breaker's state as a number
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
