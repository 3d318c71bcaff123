package dispatch_test

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

// newInputDefinition builds a text-input component: the "change" event on
// the input element writes payload.value into the "value" state field.
func newInputDefinition(t *testing.T) *component.Definition {
	t.Helper()
	def, err := component.NewDefinition(component.Config{
		Name:         "TextInput",
		InitialState: value.Object{"value": value.String("")},
		Operations: map[string]component.OpFunc{
			"setValue": func(inst *component.Instance, args value.Array) (value.Value, error) {
				if len(args) != 1 {
					return nil, errors.New("setValue expects one argument")
				}
				inst.SetState("value", args[0])
				return args[0], nil
			},
		},
		Mount: func(inst *component.Instance) {
			input := inst.AddElement("input")
			input.On("change", func(payload value.Object) error {
				v, ok := payload["value"]
				if !ok {
					return errors.New("change payload missing value field")
				}
				_, err := inst.Invoke("setValue", value.Array{v})
				return err
			})
		},
	})
	require.NoError(t, err)
	return def
}

func TestDispatch_NoHandler(t *testing.T) {
	def := newInputDefinition(t)
	inst, err := def.New(nil, nil)
	require.NoError(t, err)

	input, ok := inst.Element("input")
	require.True(t, ok)

	err = dispatch.Dispatch(input, "press", value.Object{})
	require.Error(t, err)
	assert.True(t, dispatch.IsNoHandler(err))
	assert.Contains(t, err.Error(), `no handler for event "press"`)
}

func TestDispatch_PayloadDeliveredVerbatim(t *testing.T) {
	def, err := component.NewDefinition(component.Config{
		Name: "Probe",
		Mount: func(inst *component.Instance) {
			el := inst.AddElement("probe")
			el.On("ping", func(payload value.Object) error {
				inst.SetState("seen", payload.Clone())
				return nil
			})
		},
	})
	require.NoError(t, err)

	inst, err := def.New(nil, nil)
	require.NoError(t, err)
	el, _ := inst.Element("probe")

	payload := value.Object{
		"value": value.String("kc@gmail.com"),
		"meta":  value.Object{"source": value.String("test")},
	}
	require.NoError(t, dispatch.Dispatch(el, "ping", payload))

	seen, ok := inst.StateField("seen")
	require.True(t, ok)
	assert.True(t, value.Equal(payload, seen), "handler must observe exactly the dispatched payload")
}

func TestDispatch_HandlerErrorPropagates(t *testing.T) {
	sentinel := errors.New("handler exploded")
	def, err := component.NewDefinition(component.Config{
		Name: "Failing",
		Mount: func(inst *component.Instance) {
			el := inst.AddElement("el")
			el.On("boom", func(value.Object) error { return sentinel })
		},
	})
	require.NoError(t, err)

	inst, err := def.New(nil, nil)
	require.NoError(t, err)
	el, _ := inst.Element("el")

	err = dispatch.Dispatch(el, "boom", value.Object{})
	assert.Same(t, sentinel, err, "dispatcher must not wrap or swallow handler failures")
}

// TestInputShortcut is the one-step input scenario: a single change event
// carries the final value instead of one event per character, and exactly
// one call is recorded.
func TestInputShortcut(t *testing.T) {
	def := newInputDefinition(t)

	r := spy.NewRegistry()
	r.Attach(t)
	h, err := r.Wrap(def, "setValue")
	require.NoError(t, err)

	inst, err := def.New(nil, nil)
	require.NoError(t, err)

	field, _ := inst.StateField("value")
	require.Equal(t, value.String(""), field)

	input, ok := inst.Element("input")
	require.True(t, ok)

	err = dispatch.Dispatch(input, "change", value.Object{"value": value.String("kc@gmail.com")})
	require.NoError(t, err)

	field, _ = inst.StateField("value")
	assert.Equal(t, value.String("kc@gmail.com"), field)
	assert.Equal(t, 1, h.CallCount(), "no per-character events, one call total")
}
