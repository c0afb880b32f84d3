package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantcrm_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// InvitationEvents counts invitation lifecycle transitions
	// (generated|accepted|already_member|revoked|rejected).
	InvitationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantcrm_invitation_events_total",
			Help: "Invitation lifecycle events",
		},
		[]string{"event"},
	)

	// PasswordEvents counts password lifecycle outcomes by flow (reset_request|reset|change).
	PasswordEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantcrm_password_events_total",
			Help: "Password reset and change outcomes",
		},
		[]string{"flow", "result"},
	)

	// RateLimitDecisions counts limiter decisions per scope (allow|deny|error).
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantcrm_rate_limit_decisions_total",
			Help: "Rate limiter admission decisions",
		},
		[]string{"scope", "decision"},
	)

	// MaintenanceRuns counts cleanup job executions by job and result.
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantcrm_maintenance_runs_total",
			Help: "Background maintenance job executions",
		},
		[]string{"job", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenantcrm_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
