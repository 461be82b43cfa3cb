// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SendsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_sends_completed_total",
			Help: "Total number of sequence steps delivered",
		},
		[]string{"campaign_type", "step"},
	)

	SendsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_sends_failed_total",
			Help: "Total number of sequence steps that failed",
		},
		[]string{"campaign_type", "error_code"},
	)

	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "outreach_send_duration_seconds",
			Help: "Duration of a single send execution in seconds",
		},
		[]string{"campaign_type"},
	)

	SequencesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outreach_sequences_active",
			Help: "Number of sequence executions currently in flight",
		},
	)

	QuotaBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_quota_blocked_total",
			Help: "Total number of sends deferred by quota exhaustion",
		},
		[]string{"window"},
	)

	ContactsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_contacts_enqueued_total",
			Help: "Total number of contacts scheduled by the queue builder",
		},
		[]string{"campaign_type"},
	)

	DedupRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_dedup_rejected_total",
			Help: "Total number of contacts rejected by the dedup resolver",
		},
		[]string{"reason"},
	)
)
