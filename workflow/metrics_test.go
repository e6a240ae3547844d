package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func counterValue(c prometheus.Collector) float64 {
	return promtest.ToFloat64(c)
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, outcomeSucceeded, outcomeLabel(&Outcome{}))
	assert.Equal(t, outcomeFailed, outcomeLabel(&Outcome{Err: errors.New("x")}))
	assert.Equal(t, outcomeCompensated, outcomeLabel(&Outcome{
		Err:         errors.New("x"),
		Compensated: []CompensationKind{CompensateDeleteClaim},
	}))
	assert.Equal(t, outcomeCompensationFailed, outcomeLabel(&Outcome{
		Err:             errors.New("x"),
		Compensated:     []CompensationKind{CompensateDeleteClaim},
		CompensationErr: errors.New("db down"),
	}))
}

func TestNilMetrics(t *testing.T) {
	var m *metrics
	assert.NotPanics(t, func() { m.observe(KindInvestment, outcomeSucceeded, time.Now()) })
	assert.Nil(t, newMetrics(nil))
}
