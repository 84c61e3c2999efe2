package feed

import "github.com/prometheus/client_golang/prometheus"

var (
	simulatedTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_notifier",
		Subsystem: "feed",
		Name:      "simulated_ticks_total",
		Help:      "Simulated events offered to the display scheduler.",
	})

	realtimeReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_notifier",
		Subsystem: "feed",
		Name:      "realtime_records_forwarded_total",
		Help:      "Realtime records forwarded to the display scheduler.",
	})

	realtimeDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_notifier",
		Subsystem: "feed",
		Name:      "realtime_records_dropped_total",
		Help:      "Realtime records dropped at the feed boundary, labeled by reason.",
	}, []string{"reason"})

	degradedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_notifier",
		Subsystem: "feed",
		Name:      "realtime_degraded",
		Help:      "1 while the realtime feed is unavailable and only simulated events are shown.",
	})
)

func init() {
	prometheus.MustRegister(simulatedTicks, realtimeReceived, realtimeDropped, degradedGauge)
}
