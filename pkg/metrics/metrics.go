package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snippets_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// PermissionChecks counts permission evaluations and their outcome (allowed|denied|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snippets_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"permission", "result"},
	)

	// ActiveSessions tracks refresh sessions that are neither expired nor revoked.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snippets_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// SnippetOperations counts snippet writes by operation (create|update|delete|cascade|orphans).
	SnippetOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snippets_operations_total",
			Help: "Snippet mutations by operation",
		},
		[]string{"operation"},
	)

	// SnippetCache counts visibility cache lookups by result (hit|miss|error).
	SnippetCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snippets_cache_lookups_total",
			Help: "Snippet visibility cache lookups",
		},
		[]string{"result"},
	)

	// CacheBreakerState reports the shared cache circuit breaker state (0 closed, 1 half-open, 2 open).
	CacheBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snippets_cache_breaker_state",
			Help: "Circuit breaker state of the shared cache backend",
		},
	)

	// MaintenanceRuns counts background job executions by job and result.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snippets_maintenance_runs_total",
			Help: "Background maintenance job runs",
		},
		[]string{"job", "result"},
	)

	// APIInFlight tracks requests currently being served.
	APIInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snippets_api_in_flight_requests",
			Help: "HTTP requests currently being served",
		},
	)

	// APIPanics counts handler panics turned into 500 responses.
	APIPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snippets_api_panics_total",
			Help: "Handler panics recovered by the API",
		},
		[]string{"method", "path"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snippets_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
