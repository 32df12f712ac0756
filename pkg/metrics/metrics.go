package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fratpos_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// PermissionChecks counts permission evaluations and their outcome (allow|deny|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fratpos_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"permission", "result"},
	)

	// SeededRecords counts reference data records created at startup (permission|role).
	SeededRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fratpos_seeded_records_total",
			Help: "Reference data records created by the startup seeder",
		},
		[]string{"kind"},
	)

	// Transactions counts POS transactions by outcome (created|invalidated|rejected).
	Transactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fratpos_transactions_total",
			Help: "POS transactions by outcome",
		},
		[]string{"outcome"},
	)

	// RateLimited counts requests rejected by a rate limiter, by route.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fratpos_rate_limited_total",
			Help: "Requests rejected by rate limiting",
		},
		[]string{"route"},
	)

	// RealtimeConnections tracks connected websocket clients.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fratpos_realtime_connections",
			Help: "Number of connected realtime clients",
		},
	)

	// RequestsInFlight tracks HTTP requests currently being served.
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fratpos_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fratpos_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
