package lab

import "sync"

// FlushGate runs a maintenance function at most once per period. Callers for a period that is
// already done, or older, return immediately; a caller arriving while the function runs waits for
// it and then skips.
type FlushGate struct {
	mu   sync.Mutex
	last int64
	done bool
}

// NewFlushGate returns a gate that considers every period up to and including last as done.
func NewFlushGate(last int64) *FlushGate {
	return &FlushGate{last: last, done: true}
}

// Once runs fn if period has not been handled yet. The period is marked handled even when fn
// fails; the next period retries.
func (g *FlushGate) Once(period int64, fn func() error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done && period <= g.last {
		return false, nil
	}
	g.last = period
	g.done = true
	return true, fn()
}

// Last returns the last handled period and whether any was handled.
func (g *FlushGate) Last() (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.done
}
