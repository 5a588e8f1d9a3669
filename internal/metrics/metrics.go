package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEventsTotal counts payment webhook deliveries by event type and final state.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "papermind",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Total payment webhook events by event type and outcome state.",
	}, []string{"event_type", "outcome"})

	// WebhookDuration tracks webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "papermind",
		Subsystem: "webhook",
		Name:      "duration_seconds",
		Help:      "Payment webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// ReconcileWriteFailures counts ledger and session writes that failed after a session was validated.
	ReconcileWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "papermind",
		Subsystem: "webhook",
		Name:      "write_failures_total",
		Help:      "Failed ledger or session writes during reconciliation.",
	}, []string{"target"})

	// UpstreamRequestsTotal counts calls to the document service.
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "papermind",
		Subsystem: "wetro",
		Name:      "requests_total",
		Help:      "Document service calls by operation and result.",
	}, []string{"operation", "result"})

	// StalePendingSessions is the number of pending sessions older than the sweep threshold.
	StalePendingSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "papermind",
		Subsystem: "payments",
		Name:      "stale_pending_sessions",
		Help:      "Pending payment sessions older than the configured threshold at the last sweep.",
	})
)

// ObserveUpstream records the result of one document service call.
func ObserveUpstream(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(operation, result).Inc()
}
