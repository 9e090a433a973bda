package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	pushesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kingchat_pushes_delivered_total",
			Help: "Total outbound messages confirmed by the platform.",
		},
	)
	pushesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kingchat_pushes_failed_total",
			Help: "Total outbound messages the platform did not confirm.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(pushesDelivered, pushesFailed)
}

func incDelivered() {
	pushesDelivered.Inc()
}

func incFailed(reason string) {
	pushesFailed.WithLabelValues(reason).Inc()
}
