package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorgate_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "doorgate_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	accessDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorgate_access_decisions_total",
		Help: "Access decisions by outcome and reason",
	}, []string{"outcome", "reason"})

	decisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "doorgate_access_decision_duration_seconds",
		Help:    "Duration of access decisions including the audit write",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	reconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorgate_reconcile_runs_total",
		Help: "Reconciliation cycles by trigger and result",
	}, []string{"trigger", "result"})

	reconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "doorgate_reconcile_duration_seconds",
		Help:    "Duration of reconciliation cycles",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	reconcileChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorgate_reconcile_changes_total",
		Help: "Cache entries touched by reconciliation",
	}, []string{"kind", "change"})

	cachedUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "doorgate_cached_users",
		Help: "Number of users held in the local cache after the last cycle",
	})

	lastReconcile = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "doorgate_reconcile_last_success_timestamp_seconds",
		Help: "Unix time of the last successful reconciliation",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveDecision records one access decision
func ObserveDecision(granted bool, reason string, duration time.Duration) {
	outcome := "deny"
	if granted {
		outcome = "grant"
	}
	accessDecisions.WithLabelValues(outcome, reason).Inc()
	decisionDuration.Observe(duration.Seconds())
}

// ObserveReconcile records a finished or aborted cycle
func ObserveReconcile(trigger, result string, duration time.Duration) {
	reconcileRuns.WithLabelValues(trigger, result).Inc()
	reconcileDuration.Observe(duration.Seconds())
	if result == "success" {
		lastReconcile.SetToCurrentTime()
	}
}

// AddReconcileChanges adds n changes of a kind ("user", "group") and change ("added", "updated", ...)
func AddReconcileChanges(kind, change string, n int) {
	if n <= 0 {
		return
	}
	reconcileChanges.WithLabelValues(kind, change).Add(float64(n))
}

// SetCachedUsers sets the cached user gauge
func SetCachedUsers(count int) {
	if count < 0 {
		count = 0
	}
	cachedUsers.Set(float64(count))
}
