package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks scheduling engine counters. All counters are safe for
// concurrent use by the poller and any number of in-flight executions.
type Metrics struct {
	PollTicks           prometheus.Counter
	PollErrors          prometheus.Counter
	DueTasks            prometheus.Counter
	ExecutionsStarted   prometheus.Counter
	ExecutionsCompleted prometheus.Counter
	ExecutionsFailed    prometheus.Counter
	ExecutionSeconds    prometheus.Histogram
}

// NewMetrics registers the engine's collectors on reg and returns them.
// Passing nil registers nothing (useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		PollTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "recur_poll_ticks_total",
			Help: "Due-task poll ticks executed.",
		}),
		PollErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "recur_poll_errors_total",
			Help: "Poll ticks that failed to query the task store.",
		}),
		DueTasks: factory.NewCounter(prometheus.CounterOpts{
			Name: "recur_due_tasks_total",
			Help: "Due tasks picked up for execution.",
		}),
		ExecutionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "recur_executions_started_total",
			Help: "Execution attempts started.",
		}),
		ExecutionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "recur_executions_completed_total",
			Help: "Execution attempts that completed successfully.",
		}),
		ExecutionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "recur_executions_failed_total",
			Help: "Execution attempts that failed.",
		}),
		ExecutionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "recur_execution_duration_seconds",
			Help:    "Wall-clock duration of execution attempts.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
}
