package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTP request metrics, recorded by the router middleware.
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icai_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "icai_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

// Interview engine call metrics.
var (
	EngineCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icai_engine_calls_total",
			Help: "Total number of interview engine calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	EngineCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "icai_engine_call_duration_seconds",
			Help:    "Latency in seconds of interview engine calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Database connection pool metrics, collected on a ticker in main.
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "icai_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "icai_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "icai_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

// Interview lifecycle counters.
var (
	SessionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icai_interview_sessions_created_total",
			Help: "Total number of interview sessions created, by kind (user/guest)",
		},
		[]string{"kind"},
	)

	SessionsEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "icai_interview_sessions_evaluated_total",
			Help: "Total number of interview sessions evaluated",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration)
	prometheus.MustRegister(EngineCallsTotal, EngineCallDuration)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
	prometheus.MustRegister(SessionsCreated, SessionsEvaluated)
}
