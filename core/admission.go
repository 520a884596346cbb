package core

import "sync/atomic"

// admission bounds the number of concurrently served connections.
// A connection handler never runs without holding a slot; the slot is
// released only after the handler has fully finished, so at most max
// connections ever hold request state at the same time.
type admission struct {
	max    int32
	active atomic.Int32
}

func newAdmission(max int) *admission {
	if max <= 0 {
		max = DefaultMaxConcurrency
	}
	return &admission{max: int32(max)}
}

// tryAcquire claims a slot, or reports that the server is at capacity.
func (a *admission) tryAcquire() bool {
	for {
		cur := a.active.Load()
		if cur >= a.max {
			return false
		}
		if a.active.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (a *admission) release() {
	a.active.Add(-1)
}

// Active returns the number of slots currently held.
func (a *admission) Active() int {
	return int(a.active.Load())
}
