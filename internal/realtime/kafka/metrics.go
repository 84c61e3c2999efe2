package kafka

import "github.com/prometheus/client_golang/prometheus"

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_notifier",
		Subsystem: "kafka",
		Name:      "records_forwarded_total",
		Help:      "Activity log records forwarded from Kafka to the realtime feed.",
	}, []string{"topic"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_notifier",
		Subsystem: "kafka",
		Name:      "decode_errors_total",
		Help:      "Number of decode failures per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, decodeErrorCounter)
}
