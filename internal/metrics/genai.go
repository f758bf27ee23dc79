package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "calls_total",
			Help:      "Generative AI round trips by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	aiCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "call_duration_seconds",
			Help:      "Generative AI round trip latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"operation"},
	)
)

// ObserveAICall records one AI operation started at start.
func ObserveAICall(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	aiCallsTotal.WithLabelValues(operation, outcome).Inc()
	aiCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
