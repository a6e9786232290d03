package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "queuectl"

// Metrics mirrors queue activity into Prometheus. The durable counters in the
// store stay authoritative, these reset with the process.
type Metrics struct {
	Enqueued *prometheus.CounterVec
	Claimed  *prometheus.CounterVec
	Finished *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Jobs     *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Enqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "enqueued_total",
			Help:      "Jobs accepted by enqueue.",
		}, []string{"queue"}),
		Claimed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "claimed_total",
			Help:      "Jobs claimed by worker units.",
		}, []string{"queue"}),
		Finished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Execution attempts by outcome: completed, retried or dead_lettered.",
		}, []string{"queue", "outcome"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Wall time of job command executions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"queue"}),
		Jobs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs",
			Help:      "Jobs currently stored, by queue and state.",
		}, []string{"queue", "state"}),
	}
}
