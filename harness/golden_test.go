package harness_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spyglass-go/spyglass/component"
	"github.com/spyglass-go/spyglass/harness"
)

func TestGolden_TogglePress(t *testing.T) {
	def := newToggleDefinition(t)

	scenario := &harness.Scenario{
		Name:      "toggle_press",
		Component: "Toggle",
		Wrap:      []string{"toggle"},
		Callbacks: []string{"onToggle"},
		Flow: []harness.FlowStep{
			{Dispatch: "press", Element: "button"},
		},
		Assertions: []harness.Assertion{
			{Type: harness.AssertCallCount, Operation: "toggle", Count: 1},
			{Type: harness.AssertCallOrder, Operations: []string{"toggle", "onToggle"}},
			{Type: harness.AssertState, Field: "on", Equals: true},
		},
	}

	result := harness.RunWithGolden(t, def, scenario)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "run-golden", result.RunToken)
}

func TestGolden_RerenderLabel(t *testing.T) {
	def := newLabelDefinition(t)

	scenario := &harness.Scenario{
		Name:      "rerender_label",
		Component: "Label",
		Props:     map[string]any{"label": "A"},
		Wrap:      []string{component.OpRender},
		Flow: []harness.FlowStep{
			{SetProps: map[string]any{"label": "B"}},
			{SetProps: map[string]any{"label": "B"}},
		},
		Assertions: []harness.Assertion{
			{Type: harness.AssertRenderCount, Count: 2},
		},
	}

	result := harness.RunWithGolden(t, def, scenario)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.RenderCount)
}
