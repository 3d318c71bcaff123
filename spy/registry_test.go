package spy_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-go/spyglass/component"
	"github.com/spyglass-go/spyglass/dispatch"
	"github.com/spyglass-go/spyglass/spy"
	"github.com/spyglass-go/spyglass/value"
)

// newToggleDefinition builds the toggle component used throughout these
// tests: a "toggle" operation flips the "on" state field and fires the
// onToggle callback, and a button element binds the "press" event to it.
func newToggleDefinition(t *testing.T) *component.Definition {
	t.Helper()
	def, err := component.NewDefinition(component.Config{
		Name:         "Toggle",
		InitialState: value.Object{"on": value.Bool(false)},
		Callbacks:    []string{"onToggle"},
		Operations: map[string]component.OpFunc{
			"toggle": func(inst *component.Instance, _ value.Array) (value.Value, error) {
				cur, _ := inst.StateField("on")
				next := value.Bool(!bool(cur.(value.Bool)))
				inst.SetState("on", next)
				if _, err := inst.InvokeCallback("onToggle", value.Array{next}); err != nil {
					return nil, err
				}
				return next, nil
			},
		},
		Mount: func(inst *component.Instance) {
			btn := inst.AddElement("button")
			btn.On("press", func(value.Object) error {
				_, err := inst.Invoke("toggle", nil)
				return err
			})
		},
	})
	require.NoError(t, err)
	return def
}

func TestRegistry_Wrap_NotFound(t *testing.T) {
	r := spy.NewRegistry()
	def := newToggleDefinition(t)

	_, err := r.Wrap(def, "missing")
	require.Error(t, err)
	assert.True(t, spy.IsNotFound(err))
	assert.Contains(t, err.Error(), `operation "missing" not found`)
}

func TestRegistry_Wrap_DoubleWrap(t *testing.T) {
	r := spy.NewRegistry()
	def := newToggleDefinition(t)

	h, err := r.Wrap(def, "toggle")
	require.NoError(t, err)

	_, err = r.Wrap(def, "toggle")
	require.Error(t, err)
	assert.True(t, spy.IsDoubleWrap(err))

	// After restore the pair can be wrapped again.
	h.Restore()
	_, err = r.Wrap(def, "toggle")
	require.NoError(t, err)
}

func TestHandle_RecordsCallsInOrder(t *testing.T) {
	r := spy.NewRegistry()
	r.Attach(t)
	def := newToggleDefinition(t)

	h, err := r.Wrap(def, "toggle")
	require.NoError(t, err)

	inst, err := def.New(nil, map[string]component.CallbackFunc{
		"onToggle": func(value.Array) (value.Value, error) { return nil, nil },
	})
	require.NoError(t, err)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := inst.Invoke("toggle", nil)
		require.NoError(t, err)
	}

	assert.Equal(t, n, h.CallCount())
	calls := h.Calls()
	require.Len(t, calls, n)
	for i, rec := range calls {
		assert.Equal(t, int64(i+1), rec.Seq, "seq must be strictly increasing from 1")
	}
}

func TestHandle_NeverInvoked(t *testing.T) {
	r := spy.NewRegistry()
	r.Attach(t)
	def := newToggleDefinition(t)

	h, err := r.Wrap(def, "toggle")
	require.NoError(t, err)

	assert.Equal(t, 0, h.CallCount())
	assert.Empty(t, h.Calls())
}

func TestHandle_RecordsResultUnchanged(t *testing.T) {
	r := spy.NewRegistry()
	r.Attach(t)
	def := newToggleDefinition(t)

	h, err := r.Wrap(def, "toggle")
	require.NoError(t, err)

	inst, err := def.New(nil, map[string]component.CallbackFunc{
		"onToggle": func(value.Array) (value.Value, error) { return nil, nil },
	})
	require.NoError(t, err)

	res, err := inst.Invoke("toggle", nil)
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), res, "wrapped operation must return the original result")

	calls := h.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, value.Bool(true), calls[0].Result)
	assert.NoError(t, calls[0].Err)
}

func TestHandle_ErrorPassthrough(t *testing.T) {
	sentinel := errors.New("boom")
	def, err := component.NewDefinition(component.Config{
		Name: "Exploder",
		Operations: map[string]component.OpFunc{
			"explode": func(*component.Instance, value.Array) (value.Value, error) {
				return nil, sentinel
			},
		},
	})
	require.NoError(t, err)

	r := spy.NewRegistry()
	r.Attach(t)
	h, err := r.Wrap(def, "explode")
	require.NoError(t, err)

	inst, err := def.New(nil, nil)
	require.NoError(t, err)

	_, err = inst.Invoke("explode", nil)
	assert.Same(t, sentinel, err, "operation failures must propagate unmodified")

	calls := h.Calls()
	require.Len(t, calls, 1)
	assert.Same(t, sentinel, calls[0].Err)
}

func TestHandle_Restore(t *testing.T) {
	r := spy.NewRegistry()
	def := newToggleDefinition(t)

	h, err := r.Wrap(def, "toggle")
	require.NoError(t, err)

	inst, err := def.New(nil, map[string]component.CallbackFunc{
		"onToggle": func(value.Array) (value.Value, error) { return nil, nil },
	})
	require.NoError(t, err)

	_, err = inst.Invoke("toggle", nil)
	require.NoError(t, err)
	require.Equal(t, 1, h.CallCount())

	h.Restore()
	assert.True(t, h.Restored())

	// Behavior survives restore, recording stops.
	res, err := inst.Invoke("toggle", nil)
	require.NoError(t, err)
	assert.Equal(t, value.Bool(false), res)
	assert.Equal(t, 1, h.CallCount())

	// Restoring again is a no-op, not an error.
	h.Restore()
	assert.Equal(t, 1, h.CallCount())
}

func TestRegistry_RestoreAll(t *testing.T) {
	r := spy.NewRegistry()
	def := newToggleDefinition(t)

	h1, err := r.Wrap(def, "toggle")
	require.NoError(t, err)
	h2, err := r.Wrap(def, component.OpRender)
	require.NoError(t, err)

	r.RestoreAll()
	assert.True(t, h1.Restored())
	assert.True(t, h2.Restored())

	// The registry is reusable after a full restore.
	_, err = r.Wrap(def, "toggle")
	require.NoError(t, err)
	r.RestoreAll()
}

func TestRegistry_Attach_RestoresOnCleanup(t *testing.T) {
	def := newToggleDefinition(t)
	var h *spy.Handle

	t.Run("wrapping test", func(t *testing.T) {
		r := spy.NewRegistry()
		r.Attach(t)

		var err error
		h, err = r.Wrap(def, "toggle")
		require.NoError(t, err)
	})

	assert.True(t, h.Restored(), "cleanup must restore handles after the test")
}

func TestRegistry_WrapFunc(t *testing.T) {
	r := spy.NewRegistry()

	calls := 0
	fn := func(args value.Array) (value.Value, error) {
		calls++
		return value.Int(int64(calls)), nil
	}

	wrapped, h := r.WrapFunc("onToggle", fn)

	res, err := wrapped(value.Array{value.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), res)

	assert.Equal(t, spy.CallbackTarget, h.Target())
	assert.Equal(t, "onToggle", h.Operation())
	require.Equal(t, 1, h.CallCount())
	assert.Equal(t, value.Array{value.Bool(true)}, h.Calls()[0].Args)
}

// TestCausalChain proves the indirect-invocation scenario: pressing the
// button invokes toggle, which in turn invokes the externally supplied
// onToggle callback. Two independent handles establish the chain by
// sequence-number comparison, and the component's state flips.
func TestCausalChain(t *testing.T) {
	r := spy.NewRegistry()
	r.Attach(t)
	def := newToggleDefinition(t)

	toggleHandle, err := r.Wrap(def, "toggle")
	require.NoError(t, err)

	onToggle, onToggleHandle := r.WrapFunc("onToggle", func(value.Array) (value.Value, error) {
		return nil, nil
	})

	inst, err := def.New(nil, map[string]component.CallbackFunc{"onToggle": onToggle})
	require.NoError(t, err)

	before, _ := inst.StateField("on")
	require.Equal(t, value.Bool(false), before)

	btn, ok := inst.Element("button")
	require.True(t, ok)
	require.NoError(t, dispatch.Dispatch(btn, "press", value.Object{}))

	assert.Equal(t, 1, toggleHandle.CallCount())
	assert.Equal(t, 1, onToggleHandle.CallCount())
	assert.Less(t, toggleHandle.FirstSeq(), onToggleHandle.FirstSeq(),
		"toggle must be invoked before the callback it triggers")

	after, _ := inst.StateField("on")
	assert.Equal(t, value.Bool(true), after)
}

func TestRegistry_Observe(t *testing.T) {
	r := spy.NewRegistry()
	r.Attach(t)
	def := newToggleDefinition(t)

	type seen struct {
		target, op string
		seq        int64
	}
	var events []seen
	r.Observe(func(target, op string, rec spy.CallRecord) {
		events = append(events, seen{target, op, rec.Seq})
	})

	_, err := r.Wrap(def, "toggle")
	require.NoError(t, err)
	onToggle, _ := r.WrapFunc("onToggle", func(value.Array) (value.Value, error) { return nil, nil })

	inst, err := def.New(nil, map[string]component.CallbackFunc{"onToggle": onToggle})
	require.NoError(t, err)

	_, err = inst.Invoke("toggle", nil)
	require.NoError(t, err)

	// The callback returns before toggle does, so its record is emitted
	// first even though its seq is higher.
	require.Len(t, events, 2)
	assert.Equal(t, "onToggle", events[0].op)
	assert.Equal(t, "toggle", events[1].op)
	assert.Less(t, events[1].seq, events[0].seq)
}
