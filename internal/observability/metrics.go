package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityLoggedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_notifier",
		Subsystem: "persistence",
		Name:      "last_activity_logged_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity appended to the activity log.",
	})
	notificationShownGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_notifier",
		Subsystem: "display",
		Name:      "last_notification_shown_timestamp_seconds",
		Help:      "Unix timestamp of the most recent notification rendered.",
	})
)

func init() {
	prometheus.MustRegister(activityLoggedGauge, notificationShownGauge)
}

// RecordActivityLogged updates the activity log watermark gauge.
func RecordActivityLogged(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityLoggedGauge.Set(float64(ts.Unix()))
}

// RecordNotificationShown updates the display watermark gauge.
func RecordNotificationShown(ts time.Time) {
	if ts.IsZero() {
		return
	}
	notificationShownGauge.Set(float64(ts.Unix()))
}
