package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks notification delivery counters.
type Metrics struct {
	Sent   prometheus.Counter
	Failed prometheus.Counter
}

// NewMetrics registers the dispatcher's collectors on reg and returns
// them. Passing nil registers nothing (useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Sent: factory.NewCounter(prometheus.CounterOpts{
			Name: "recur_notifications_sent_total",
			Help: "Task notifications delivered.",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "recur_notifications_failed_total",
			Help: "Task notifications that failed to deliver.",
		}),
	}
}
