package eventsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type syncMetrics struct {
	synced   *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func newSyncMetrics(reg prometheus.Registerer) *syncMetrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &syncMetrics{
		synced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stomatrade",
			Subsystem: "sync",
			Name:      "events_total",
			Help:      "Historical events forwarded to the processor",
		}, []string{"event"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stomatrade",
			Subsystem: "sync",
			Name:      "failures_total",
			Help:      "Failed (chain, event) sync attempts; event is empty for chain-level failures",
		}, []string{"event"}),
	}
}

func (m *syncMetrics) events(name string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.synced.WithLabelValues(name).Add(float64(n))
}

func (m *syncMetrics) failure(name string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(name).Inc()
}
