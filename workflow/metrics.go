package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Saga outcome labels
const (
	outcomeSucceeded          = "succeeded"
	outcomeCompensated        = "compensated"
	outcomeFailed             = "failed"
	outcomeCompensationFailed = "compensation_failed"
)

type metrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &metrics{
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stomatrade",
			Subsystem: "workflow",
			Name:      "outcomes_total",
			Help:      "Workflow runs by kind and outcome",
		}, []string{"kind", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stomatrade",
			Subsystem: "workflow",
			Name:      "duration_seconds",
			Help:      "Workflow run duration including chain confirmation",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
	}
}

func (m *metrics) observe(kind, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func outcomeLabel(o *Outcome) string {
	switch {
	case o.Succeeded():
		return outcomeSucceeded
	case o.CompensationErr != nil:
		return outcomeCompensationFailed
	case len(o.Compensated) > 0:
		return outcomeCompensated
	default:
		return outcomeFailed
	}
}
