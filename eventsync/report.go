package eventsync

import "time"

// Failure is one (chain, event) pair that could not be synced. An empty
// Event means the chain itself failed (target, head or checkpoint).
type Failure struct {
	ChainID uint64
	Event   string
	Err     error
}

// ChainReport summarises one chain's pass.
type ChainReport struct {
	ChainID   uint64
	FromBlock uint64
	ToBlock   uint64
	Events    map[string]int
	Failures  []Failure

	// Advanced is true when the pass reached the chain head
	Advanced bool
}

func (c *ChainReport) fail(event string, err error) {
	c.Failures = append(c.Failures, Failure{ChainID: c.ChainID, Event: event, Err: err})
}

// Report summarises a sync pass over all chains.
type Report struct {
	StartedAt time.Time
	Duration  time.Duration
	Chains    []*ChainReport
}

// TotalEvents returns the number of events forwarded to the processor.
func (r *Report) TotalEvents() int {
	total := 0
	for _, c := range r.Chains {
		for _, n := range c.Events {
			total += n
		}
	}
	return total
}

// Failures returns every failure of the pass.
func (r *Report) Failures() []Failure {
	var out []Failure
	for _, c := range r.Chains {
		out = append(out, c.Failures...)
	}
	return out
}

// Chain returns the report of chainID, or nil.
func (r *Report) Chain(chainID uint64) *ChainReport {
	for _, c := range r.Chains {
		if c.ChainID == chainID {
			return c
		}
	}
	return nil
}
