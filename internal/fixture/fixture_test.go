package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-go/spyglass/component"
	"github.com/spyglass-go/spyglass/value"
)

const toggleFixture = `
	component: Toggle: {
		description: "two-state switch that reports flips"

		state: on: false

		callbacks: ["onToggle"]

		operations: toggle: {
			effects: [
				{toggle: {field: "on"}},
				{invoke: {callback: "onToggle", args: ["state.on"]}},
			]
			result: "state.on"
		}

		elements: button: press: {operation: "toggle"}
	}
`

const inputFixture = `
	component: TextInput: {
		state: value: ""

		operations: setValue: {
			effects: [
				{set: {field: "value", from: "args.0"}},
			]
			result: "args.0"
		}

		elements: input: change: {
			operation: "setValue"
			args: ["payload.value"]
		}
	}
`

func compileFixture(t *testing.T, src, path string) *Spec {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())

	spec, err := Compile(v.LookupPath(cue.ParsePath(path)))
	require.NoError(t, err)
	return spec
}

func TestCompileToggle(t *testing.T) {
	spec := compileFixture(t, toggleFixture, "component.Toggle")

	assert.Equal(t, "Toggle", spec.Name)
	assert.Equal(t, "two-state switch that reports flips", spec.Description)
	assert.True(t, value.Equal(value.Bool(false), spec.State["on"]))
	assert.Equal(t, []string{"onToggle"}, spec.Callbacks)

	op, ok := spec.Operations["toggle"]
	require.True(t, ok)
	require.Len(t, op.Effects, 2)
	require.NotNil(t, op.Effects[0].Toggle)
	assert.Equal(t, "on", op.Effects[0].Toggle.Field)
	require.NotNil(t, op.Effects[1].Invoke)
	assert.Equal(t, "onToggle", op.Effects[1].Invoke.Callback)
	assert.Equal(t, []string{"state.on"}, op.Effects[1].Invoke.Args)
	assert.Equal(t, "state.on", op.Result)

	button, ok := spec.Elements["button"]
	require.True(t, ok)
	assert.Equal(t, "toggle", button["press"].Operation)
}

func TestCompileRejectsFloats(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		component: Gauge: {
			state: level: 0.5
		}
	`)
	require.NoError(t, v.Err())

	_, err := Compile(v.LookupPath(cue.ParsePath("component.Gauge")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float values are not supported")
}

func TestCompileRejectsUndeclaredCallback(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		component: Bad: {
			operations: fire: {
				effects: [{invoke: {callback: "onFire"}}]
			}
		}
	`)
	require.NoError(t, v.Err())

	_, err := Compile(v.LookupPath(cue.ParsePath("component.Bad")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undeclared callback "onFire"`)
}

func TestCompileRejectsUnknownBoundOperation(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		component: Bad: {
			elements: button: press: {operation: "missing"}
		}
	`)
	require.NoError(t, v.Err())

	_, err := Compile(v.LookupPath(cue.ParsePath("component.Bad")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown operation "missing"`)
}

func TestCompileRejectsBadSelector(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		component: Bad: {
			state: on: false
			operations: poke: {
				effects: [{set: {field: "on", from: "payload.on"}}]
			}
		}
	`)
	require.NoError(t, v.Err())

	_, err := Compile(v.LookupPath(cue.ParsePath("component.Bad")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload is only available in element bindings")
}

func TestCompileRejectsAmbiguousEffect(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		component: Bad: {
			state: on: false
			operations: poke: {
				effects: [{
					toggle: {field: "on"}
					set: {field: "on", value: true}
				}]
			}
		}
	`)
	require.NoError(t, v.Err())

	_, err := Compile(v.LookupPath(cue.ParsePath("component.Bad")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of set, toggle, or invoke")
}

func TestBuildToggle(t *testing.T) {
	spec := compileFixture(t, toggleFixture, "component.Toggle")

	def, err := Build(spec)
	require.NoError(t, err)
	assert.Equal(t, "Toggle", def.ID())

	var fired value.Value
	callbacks := map[string]component.CallbackFunc{
		"onToggle": func(args value.Array) (value.Value, error) {
			fired = args[0]
			return nil, nil
		},
	}
	inst, err := def.New(nil, callbacks)
	require.NoError(t, err)

	el, ok := inst.Element("button")
	require.True(t, ok)
	handler, ok := el.Handler("press")
	require.True(t, ok)

	require.NoError(t, handler(value.Object{}))

	got, ok := inst.StateField("on")
	require.True(t, ok)
	assert.True(t, value.Equal(value.Bool(true), got))
	assert.True(t, value.Equal(value.Bool(true), fired))
}

func TestBuildInputRoutesPayload(t *testing.T) {
	spec := compileFixture(t, inputFixture, "component.TextInput")

	def, err := Build(spec)
	require.NoError(t, err)

	inst, err := def.New(nil, nil)
	require.NoError(t, err)

	el, ok := inst.Element("input")
	require.True(t, ok)
	handler, ok := el.Handler("change")
	require.True(t, ok)

	require.NoError(t, handler(value.Object{"value": value.String("kc@gmail.com")}))

	got, ok := inst.StateField("value")
	require.True(t, ok)
	assert.True(t, value.Equal(value.String("kc@gmail.com"), got))
}

func TestBuildToggleFailsWithoutCallback(t *testing.T) {
	spec := compileFixture(t, toggleFixture, "component.Toggle")

	def, err := Build(spec)
	require.NoError(t, err)

	inst, err := def.New(nil, nil)
	require.NoError(t, err)

	el, _ := inst.Element("button")
	handler, _ := el.Handler("press")
	err = handler(value.Object{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `callback "onToggle" not supplied`)
}

func TestBuildAllRejectsDuplicates(t *testing.T) {
	a := &Spec{Name: "Toggle"}
	b := &Spec{Name: "Toggle"}

	_, err := BuildAll([]*Spec{a, b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate component fixture "Toggle"`)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "toggle.cue"), []byte(toggleFixture), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.cue"), []byte(inputFixture), 0o644))

	specs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "TextInput", specs[0].Name)
	assert.Equal(t, "Toggle", specs[1].Name)
}

func TestLoadDir_NoCUEFiles(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files found")
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixture directory not found")
}
