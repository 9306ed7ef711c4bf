package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthEvents counts authentication attempts by event and outcome.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialconnect_auth_events_total",
		Help: "Authentication events by type and outcome",
	}, []string{"event", "outcome"})

	// RefreshTokensRevoked counts refresh tokens moved to the revoked state.
	RefreshTokensRevoked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialconnect_refresh_tokens_revoked_total",
		Help: "Refresh tokens revoked by reason",
	}, []string{"reason"})

	// VisibilityDenials counts reads refused by the visibility policy.
	VisibilityDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialconnect_visibility_denials_total",
		Help: "Reads denied by the visibility policy by resource",
	}, []string{"resource"})

	// NotificationsPublished counts notifications created by type.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialconnect_notifications_total",
		Help: "Notifications created by type",
	}, []string{"type"})

	// DatabaseQueryLatency records repository query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialconnect_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// RecordAuth increments the auth event counter.
func RecordAuth(event string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	AuthEvents.WithLabelValues(event, outcome).Inc()
}

// RecordRevocations adds n revoked tokens under reason.
func RecordRevocations(reason string, n int64) {
	if n > 0 {
		RefreshTokensRevoked.WithLabelValues(reason).Add(float64(n))
	}
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
