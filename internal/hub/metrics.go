package hub

import "github.com/prometheus/client_golang/prometheus"

var (
	liveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kingchat_live_sessions",
			Help: "Current number of connected console sessions.",
		},
	)
	liveEventsDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kingchat_live_events_delivered_total",
			Help: "Total events enqueued to console sessions.",
		},
	)
	liveSessionsEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kingchat_live_sessions_evicted_total",
			Help: "Total sessions dropped for not draining their event queue.",
		},
	)
	livePublishDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kingchat_live_publish_dropped_total",
			Help: "Total events dropped because the Redis publish buffer was full.",
		},
	)
)

func init() {
	prometheus.MustRegister(liveSessions, liveEventsDelivered, liveSessionsEvicted, livePublishDropped)
}

func incSessions() {
	liveSessions.Inc()
}

func decSessions() {
	liveSessions.Dec()
}

func incDelivered() {
	liveEventsDelivered.Inc()
}

func incEvicted() {
	liveSessionsEvicted.Inc()
}

func incPublishDropped() {
	livePublishDropped.Inc()
}
