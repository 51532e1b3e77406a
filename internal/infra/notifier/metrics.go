package notifier

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pacing pressure is recorded here, next to the pacer, rather than in
// the notify use case: the hold happens inside Notify and the use case
// never sees it.
var (
	paceWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_pace_wait_seconds",
			Help:    "Time sends spent held by the local webhook pacer",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"channel"},
	)

	remoteThrottleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_remote_throttle_total",
			Help: "429 responses received from webhook services",
		},
		[]string{"channel"},
	)
)

// recordPaceWait records how long the pacer held one send.
func recordPaceWait(channel string, held time.Duration) {
	paceWaitSeconds.WithLabelValues(channel).Observe(held.Seconds())
}

// recordRemoteThrottle counts a 429 from the webhook service itself. A
// rising rate means the local pacer budget is out of step with the
// service's real limit.
func recordRemoteThrottle(channel string) {
	remoteThrottleTotal.WithLabelValues(channel).Inc()
}
