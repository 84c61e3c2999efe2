package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	shownCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_notifier",
		Subsystem: "display",
		Name:      "notifications_shown_total",
		Help:      "Notifications rendered to the display slot, labeled by source.",
	}, []string{"source"})

	discardedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_notifier",
		Subsystem: "display",
		Name:      "events_discarded_total",
		Help:      "Events that never reached the display slot, labeled by source and reason.",
	}, []string{"source", "reason"})

	queueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_notifier",
		Subsystem: "display",
		Name:      "queue_depth",
		Help:      "Realtime events waiting for the display slot.",
	})
)

func init() {
	prometheus.MustRegister(shownCounter, discardedCounter, queueDepthGauge)
}
