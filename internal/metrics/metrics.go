package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	queueProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shelfsync",
			Name:      "queue_processed_total",
			Help:      "Processed sync queue attempts by result.",
		},
		[]string{"result"},
	)

	scheduleTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shelfsync",
			Name:      "schedule_triggers_total",
			Help:      "Fired price adjustment triggers by event kind.",
		},
		[]string{"event"},
	)

	catalogCallSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shelfsync",
			Name:      "catalog_call_seconds",
			Help:      "Duration of outbound catalog target calls.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	queuePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shelfsync",
			Name:      "queue_pending",
			Help:      "Sync queue items currently pending.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(queueProcessed, scheduleTriggers, catalogCallSeconds, queuePending)
	})
}

// IncQueueProcessed increments the attempt counter for a result label.
func IncQueueProcessed(result string) {
	queueProcessed.WithLabelValues(result).Inc()
}

// IncScheduleTrigger increments the trigger counter for an event kind.
func IncScheduleTrigger(event string) {
	scheduleTriggers.WithLabelValues(event).Inc()
}

// ObserveCatalogCall records the duration of one outbound call.
func ObserveCatalogCall(seconds float64) {
	catalogCallSeconds.Observe(seconds)
}

// SetQueuePending updates the pending queue gauge.
func SetQueuePending(n int) {
	queuePending.Set(float64(n))
}
