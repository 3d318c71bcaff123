package spy

import (
	"sync"
	"testing"

	"github.com/spyglass-go/spyglass/component"
	"github.com/spyglass-go/spyglass/value"
)

// CallbackTarget is the target id recorded on handles created by WrapFunc.
const CallbackTarget = "callback"

// Wrappable is the interception seam a definition must expose: a named
// operation table whose entries can be swapped non-destructively.
// *component.Definition satisfies it.
type Wrappable interface {
	ID() string
	Operation(name string) (component.OpFunc, bool)
	SwapOperation(name string, fn component.OpFunc) (component.OpFunc, error)
}

// Observer receives every call recorded through a registry, in invocation
// order. The harness uses it to build the unified trace.
type Observer func(target, operation string, rec CallRecord)

type wrapKey struct {
	definition string
	operation  string
}

// Registry creates and tracks interception handles. Handles created by the
// same registry share one clock, so their sequence numbers are comparable.
type Registry struct {
	clock    *Clock
	mu       sync.Mutex
	wrapped  map[wrapKey]*Handle
	observer Observer
}

// NewRegistry creates an empty registry with a fresh clock.
func NewRegistry() *Registry {
	return &Registry{
		clock:   NewClock(),
		wrapped: make(map[wrapKey]*Handle),
	}
}

// Clock returns the registry's clock. The harness stamps its own trace
// events (dispatches, prop updates) from the same clock so they interleave
// correctly with recorded calls.
func (r *Registry) Clock() *Clock {
	return r.clock
}

// Observe sets the observer invoked for every recorded call. Passing nil
// removes it.
func (r *Registry) Observe(fn Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

// Wrap replaces the named operation on the definition with a recording
// wrapper that delegates to the original implementation and returns its
// result unchanged.
//
// Returns NotFoundError if the operation does not exist, and
// DoubleWrapError if the pair is already wrapped and has not been restored.
func (r *Registry) Wrap(def Wrappable, operation string) (*Handle, error) {
	orig, ok := def.Operation(operation)
	if !ok {
		return nil, &NotFoundError{Definition: def.ID(), Operation: operation}
	}

	key := wrapKey{definition: def.ID(), operation: operation}

	r.mu.Lock()
	if _, dup := r.wrapped[key]; dup {
		r.mu.Unlock()
		return nil, &DoubleWrapError{Definition: def.ID(), Operation: operation}
	}
	h := &Handle{target: def.ID(), operation: operation}
	r.wrapped[key] = h
	r.mu.Unlock()

	wrapper := func(inst *component.Instance, args value.Array) (value.Value, error) {
		// Seq is taken at invocation time, before delegating, so a call
		// made from inside the original (e.g. a wrapped callback) orders
		// after this one.
		seq := r.clock.Next()
		res, err := orig(inst, args)
		r.emit(h, CallRecord{Seq: seq, Args: args, Result: res, Err: err})
		return res, err
	}

	if _, err := def.SwapOperation(operation, wrapper); err != nil {
		r.mu.Lock()
		delete(r.wrapped, key)
		r.mu.Unlock()
		return nil, err
	}

	h.restore = func() {
		// Swap the stored original back in, exactly as it was.
		def.SwapOperation(operation, orig) //nolint:errcheck // operation existed at wrap time
		r.mu.Lock()
		delete(r.wrapped, key)
		r.mu.Unlock()
	}

	return h, nil
}

// WrapFunc instruments a caller-supplied callback. The returned function
// records every call with the registry clock before the test passes it to
// the component as a callback prop. Unlike Wrap there is no table slot to
// swap, so wrapping the same function twice just produces two independent
// handles.
func (r *Registry) WrapFunc(name string, fn component.CallbackFunc) (component.CallbackFunc, *Handle) {
	h := &Handle{target: CallbackTarget, operation: name}

	wrapped := func(args value.Array) (value.Value, error) {
		seq := r.clock.Next()
		res, err := fn(args)
		r.emit(h, CallRecord{Seq: seq, Args: args, Result: res, Err: err})
		return res, err
	}
	return wrapped, h
}

// RestoreAll restores every live handle created by Wrap. Safe to call more
// than once; used as the teardown for a test's registry.
func (r *Registry) RestoreAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.wrapped))
	for _, h := range r.wrapped {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Restore()
	}
}

// Attach registers RestoreAll as a cleanup on the given test, guaranteeing
// restoration on every exit path including assertion failure.
func (r *Registry) Attach(tb testing.TB) {
	tb.Helper()
	tb.Cleanup(r.RestoreAll)
}

func (r *Registry) emit(h *Handle, rec CallRecord) {
	if !h.record(rec) {
		return
	}
	r.mu.Lock()
	observer := r.observer
	r.mu.Unlock()
	if observer != nil {
		observer(h.target, h.operation, rec)
	}
}
