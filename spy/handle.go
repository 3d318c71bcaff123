package spy

import (
	"sync"

	"github.com/spyglass-go/spyglass/value"
)

// CallRecord captures one invocation of an observed operation or callback.
type CallRecord struct {
	// Seq is the sequence number assigned at invocation time from the
	// registry clock. Strictly increasing, never reused.
	Seq int64

	// Args is the ordered argument list the call received.
	Args value.Array

	// Result is the value the original implementation returned.
	Result value.Value

	// Err is the error the original implementation returned, if any.
	Err error
}

// Handle exposes the recorded calls of one wrapped (definition, operation)
// pair or one wrapped callback.
type Handle struct {
	target    string
	operation string

	mu       sync.Mutex
	calls    []CallRecord
	restored bool
	restore  func()
}

// Target returns the definition id the handle observes, or CallbackTarget
// for wrapped callbacks.
func (h *Handle) Target() string {
	return h.target
}

// Operation returns the observed operation or callback name.
func (h *Handle) Operation() string {
	return h.operation
}

// CallCount returns the number of recorded calls. Zero for an operation
// that was wrapped but never invoked.
func (h *Handle) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// Calls returns the recorded calls in invocation order.
func (h *Handle) Calls() []CallRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CallRecord, len(h.calls))
	copy(out, h.calls)
	return out
}

// FirstSeq returns the sequence number of the first recorded call, or 0 if
// nothing was recorded. Used to compare order across handles.
func (h *Handle) FirstSeq() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.calls) == 0 {
		return 0
	}
	return h.calls[0].Seq
}

// Restore puts the original implementation back and stops recording.
// Restoring an already-restored handle is a no-op, not an error.
func (h *Handle) Restore() {
	h.mu.Lock()
	if h.restored {
		h.mu.Unlock()
		return
	}
	h.restored = true
	restore := h.restore
	h.restore = nil
	h.mu.Unlock()

	if restore != nil {
		restore()
	}
}

// Restored reports whether the handle has been restored.
func (h *Handle) Restored() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restored
}

func (h *Handle) record(rec CallRecord) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.restored {
		return false
	}
	h.calls = append(h.calls, rec)
	return true
}
