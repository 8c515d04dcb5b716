package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cyclesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "liqwatch",
		Subsystem: "monitor",
		Name:      "cycles_total",
		Help:      "Completed monitoring cycles by outcome",
	},
	[]string{"status"}, // completed, discovery_failed
)

var subscribersProcessed = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "liqwatch",
		Subsystem: "monitor",
		Name:      "subscribers_processed_total",
		Help:      "Subscribers evaluated across all cycles",
	},
)

var alertsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "liqwatch",
		Subsystem: "monitor",
		Name:      "alerts_total",
		Help:      "Subscribers that crossed the liquidation-risk threshold",
	},
)

var dispatchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "liqwatch",
		Subsystem: "monitor",
		Name:      "dispatches_total",
		Help:      "Notification dispatch attempts by result",
	},
	[]string{"result"}, // success, failed
)

var cycleDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "liqwatch",
		Subsystem: "monitor",
		Name:      "cycle_duration_seconds",
		Help:      "Wall-clock duration of a full cycle",
		Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800},
	},
)

func observeCycle(summary CycleSummary) {
	cyclesTotal.WithLabelValues("completed").Inc()
	subscribersProcessed.Add(float64(summary.Processed))
	alertsTotal.Add(float64(summary.Alerted))
	dispatchesTotal.WithLabelValues("success").Add(float64(summary.Dispatched))
	for _, result := range summary.Results {
		if result.Alerted && !result.Dispatched {
			dispatchesTotal.WithLabelValues("failed").Inc()
		}
	}
	cycleDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
}
