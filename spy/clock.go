package spy

import "sync/atomic"

// Clock is a monotonic logical clock for call ordering.
//
// Every recorded call is stamped with a strictly increasing seq number
// assigned at invocation time. Sequence numbers are never reused, so
// comparing them across handles from the same registry establishes real
// invocation order.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though a harness run is single-threaded by design.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0; the first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the latest assigned sequence number without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
