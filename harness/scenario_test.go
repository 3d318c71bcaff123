package harness_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spyglass-go/spyglass/harness"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validScenarioYAML = `name: toggle_press
description: pressing the button flips the toggle and fires onToggle
component: Toggle
wrap: [toggle]
callbacks: [onToggle]
flow:
  - dispatch: press
    element: button
assertions:
  - type: call_count
    operation: toggle
    count: 1
  - type: call_order
    operations: [toggle, onToggle]
  - type: state
    field: on
    equals: true
`

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "toggle_press.yaml", validScenarioYAML)

	sc, err := harness.LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "toggle_press", sc.Name)
	assert.Equal(t, "Toggle", sc.Component)
	assert.Equal(t, []string{"toggle"}, sc.Wrap)
	assert.Equal(t, []string{"onToggle"}, sc.Callbacks)
	require.Len(t, sc.Flow, 1)
	assert.Equal(t, "press", sc.Flow[0].Dispatch)
	assert.Equal(t, "button", sc.Flow[0].Element)
	require.Len(t, sc.Assertions, 3)
	assert.Equal(t, harness.AssertCallOrder, sc.Assertions[1].Type)
	assert.Equal(t, []string{"toggle", "onToggle"}, sc.Assertions[1].Operations)
}

func TestLoadScenario_FileMissing(t *testing.T) {
	_, err := harness.LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "typo.yaml", `name: typo
component: Toggle
asertions:
  - type: render_count
    count: 1
`)

	_, err := harness.LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no name",
			yaml:    "component: Toggle\nassertions:\n  - type: render_count\n    count: 1\n",
			wantErr: "name is required",
		},
		{
			name:    "no component",
			yaml:    "name: x\nassertions:\n  - type: render_count\n    count: 1\n",
			wantErr: "component is required",
		},
		{
			name:    "no assertions",
			yaml:    "name: x\ncomponent: Toggle\n",
			wantErr: "at least one assertion is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "bad.yaml", tt.yaml)
			_, err := harness.LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScenarioValidate_FlowSteps(t *testing.T) {
	base := func() *harness.Scenario {
		return &harness.Scenario{
			Name:       "x",
			Component:  "Toggle",
			Assertions: []harness.Assertion{{Type: harness.AssertRenderCount, Count: 1}},
		}
	}

	t.Run("empty step", func(t *testing.T) {
		sc := base()
		sc.Flow = []harness.FlowStep{{}}
		err := sc.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one of dispatch, invoke, or set_props")
	})

	t.Run("two actions", func(t *testing.T) {
		sc := base()
		sc.Flow = []harness.FlowStep{{Dispatch: "press", Element: "button", Invoke: "toggle"}}
		err := sc.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one of dispatch, invoke, or set_props")
	})

	t.Run("dispatch without element", func(t *testing.T) {
		sc := base()
		sc.Flow = []harness.FlowStep{{Dispatch: "press"}}
		err := sc.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dispatch requires an element")
	})
}

func TestScenarioValidate_WrapCallbackCollision(t *testing.T) {
	sc := &harness.Scenario{
		Name:       "x",
		Component:  "Toggle",
		Wrap:       []string{"toggle"},
		Callbacks:  []string{"toggle"},
		Assertions: []harness.Assertion{{Type: harness.AssertRenderCount, Count: 1}},
	}
	err := sc.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"toggle" appears in both wrap and callbacks`)
}

func TestScenarioValidate_Assertions(t *testing.T) {
	base := func(a harness.Assertion) *harness.Scenario {
		return &harness.Scenario{
			Name:       "x",
			Component:  "Toggle",
			Assertions: []harness.Assertion{a},
		}
	}

	t.Run("unknown type", func(t *testing.T) {
		err := base(harness.Assertion{Type: "call_cuont"}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown assertion type "call_cuont"`)
		assert.Contains(t, err.Error(), harness.AssertCallCount)
	})

	t.Run("call_count without operation", func(t *testing.T) {
		err := base(harness.Assertion{Type: harness.AssertCallCount, Count: 1}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "call_count requires an operation")
	})

	t.Run("call_order with one operation", func(t *testing.T) {
		err := base(harness.Assertion{Type: harness.AssertCallOrder, Operations: []string{"toggle"}}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least two operations")
	})

	t.Run("state without field", func(t *testing.T) {
		err := base(harness.Assertion{Type: harness.AssertState, Equals: true}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "state requires a field")
	})

	t.Run("trace_contains without name", func(t *testing.T) {
		err := base(harness.Assertion{Type: harness.AssertTraceContains, Kind: harness.EventCall}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "trace_contains requires a name")
	})
}

func TestLoadScenarioDir(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "02_second.yaml", `name: second
component: Toggle
assertions:
  - type: render_count
    count: 1
`)
	writeScenario(t, dir, "01_first.yml", `name: first
component: Toggle
assertions:
  - type: render_count
    count: 1
`)
	writeScenario(t, dir, "notes.txt", "ignored")

	scenarios, err := harness.LoadScenarioDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)
}

func TestLoadScenarioDir_InvalidFileNamed(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: broken\n")

	_, err := harness.LoadScenarioDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
	assert.Contains(t, err.Error(), "component is required")
}
