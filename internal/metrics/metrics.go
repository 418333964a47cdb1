package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Webhook processing counters, labelled by provider. Registered against the
// default registerer so the observability manager's /metrics handler exposes
// them alongside the otel-exported series.
var (
	WebhooksReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Total number of webhook deliveries received",
		},
		[]string{"provider"},
	)

	WebhooksRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_rejected_total",
			Help: "Total number of webhook deliveries rejected",
		},
		[]string{"provider", "reason"},
	)

	WebhooksDuplicateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_duplicate_total",
			Help: "Total number of replayed webhook deliveries recognized as duplicates",
		},
		[]string{"provider"},
	)

	WebhooksIgnoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_ignored_total",
			Help: "Total number of webhook deliveries acknowledged without an order id",
		},
		[]string{"provider"},
	)

	WebhooksAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_applied_total",
			Help: "Total number of webhook deliveries applied to the ledger",
		},
		[]string{"provider"},
	)

	WebhookProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_duration_seconds",
			Help:    "Duration of webhook processing",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)

// Register registers all webhook metrics.
func Register() {
	prometheus.MustRegister(
		WebhooksReceivedTotal,
		WebhooksRejectedTotal,
		WebhooksDuplicateTotal,
		WebhooksIgnoredTotal,
		WebhooksAppliedTotal,
		WebhookProcessingDuration,
	)
}

// Module hooks metric registration into the Fx graph.
var Module = fx.Invoke(Register)
