package ingress

import "github.com/prometheus/client_golang/prometheus"

var (
	webhookEventsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kingchat_webhook_events_ingested_total",
			Help: "Total webhook sub-events appended to a conversation.",
		},
	)
	webhookEventsIgnored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kingchat_webhook_events_ignored_total",
			Help: "Total webhook sub-events skipped as unsupported.",
		},
	)
	webhookEventsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kingchat_webhook_events_failed_total",
			Help: "Total webhook sub-events that could not be processed.",
		},
	)
	webhookRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kingchat_webhook_rejected_total",
			Help: "Total webhook deliveries rejected before event processing.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(webhookEventsIngested, webhookEventsIgnored, webhookEventsFailed, webhookRejected)
}

func addIngested(count int) {
	webhookEventsIngested.Add(float64(count))
}

func addIgnored(count int) {
	webhookEventsIgnored.Add(float64(count))
}

func addFailed(count int) {
	webhookEventsFailed.Add(float64(count))
}

func incRejected(reason string) {
	webhookRejected.WithLabelValues(reason).Inc()
}
