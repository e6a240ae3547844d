package contract

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type executorMetrics struct {
	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// newExecutorMetrics registers executor metrics on reg. A nil reg returns
// nil, which observe treats as disabled.
func newExecutorMetrics(reg prometheus.Registerer) *executorMetrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &executorMetrics{
		transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stomatrade",
			Subsystem: "executor",
			Name:      "transactions_total",
			Help:      "Contract writes by method and outcome",
		}, []string{"method", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stomatrade",
			Subsystem: "executor",
			Name:      "transaction_duration_seconds",
			Help:      "Time from submission to confirmation or failure",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"method"}),
	}
}

func (m *executorMetrics) observe(method, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
