package pool

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for task outcomes.
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeRejected  = "rejected"
)

var (
	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpress_pool_tasks_total",
			Help: "Total number of tasks settled by the pool.",
		},
		[]string{"outcome"},
	)

	taskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inkpress_pool_task_duration_seconds",
			Help:    "Task execution time from dispatch to completion, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	activeWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "inkpress_pool_active_workers",
			Help: "Number of workers currently executing a task.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "inkpress_pool_queue_depth",
			Help: "Number of tasks waiting for a free worker.",
		},
	)
)

func init() {
	prometheus.MustRegister(tasksTotal)
	prometheus.MustRegister(taskDuration)
	prometheus.MustRegister(activeWorkers)
	prometheus.MustRegister(queueDepth)

	// Pre-initialize counter label combinations so they appear in /metrics
	// with value 0 from startup, rather than only after first observation.
	tasksTotal.WithLabelValues(outcomeCompleted)
	tasksTotal.WithLabelValues(outcomeFailed)
	tasksTotal.WithLabelValues(outcomeRejected)
}
