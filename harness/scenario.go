package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines one harness test: which component to construct, what to
// observe, the flow of synthetic events, and the assertions over the
// outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Component is the definition name the scenario runs against.
	Component string `yaml:"component"`

	// Props are the initial props the instance is constructed with.
	Props map[string]any `yaml:"props,omitempty"`

	// Wrap lists the operations to observe. Handles are created before
	// construction, so the initial render is observable too.
	Wrap []string `yaml:"wrap,omitempty"`

	// Callbacks lists the callback props to supply as observed stubs.
	Callbacks []string `yaml:"callbacks,omitempty"`

	// Flow is the sequence of steps to execute.
	Flow []FlowStep `yaml:"flow,omitempty"`

	// Assertions validate recorded calls, the trace, and final state.
	Assertions []Assertion `yaml:"assertions"`

	// RunToken pins the run token for deterministic golden comparison.
	// If empty, a UUIDv7 token is generated.
	RunToken string `yaml:"run_token,omitempty"`
}

// FlowStep is one step of a scenario flow. Exactly one of Dispatch, Invoke,
// or SetProps must be set.
type FlowStep struct {
	// Dispatch names a synthetic event to deliver; Element selects the
	// target and Payload is the fully-formed event value.
	Dispatch string         `yaml:"dispatch,omitempty"`
	Element  string         `yaml:"element,omitempty"`
	Payload  map[string]any `yaml:"payload,omitempty"`

	// Invoke names an operation to call directly, with ordered Args.
	Invoke string `yaml:"invoke,omitempty"`
	Args   []any  `yaml:"args,omitempty"`

	// SetProps replaces the instance's props.
	SetProps map[string]any `yaml:"set_props,omitempty"`

	// ExpectError, when set, requires the step to fail with an error
	// containing this substring. The error is recorded in the trace and
	// the flow continues.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates one property of a finished run.
type Assertion struct {
	// Type selects the assertion:
	//   - "call_count": wrapped operation/callback was called Count times
	//   - "call_order": Operations were first invoked in the given order
	//   - "state": final state Field equals Equals
	//   - "output": last-rendered output equals Equals (canonical comparison)
	//   - "render_count": render ran Count times (initial render included)
	//   - "trace_contains": trace has an event of Kind with Name
	//   - "trace_count": trace has exactly Count events of Kind with Name
	Type string `yaml:"type"`

	Operation  string   `yaml:"operation,omitempty"`
	Operations []string `yaml:"operations,omitempty"`
	Count      int      `yaml:"count,omitempty"`
	Field      string   `yaml:"field,omitempty"`
	Equals     any      `yaml:"equals,omitempty"`
	Kind       string   `yaml:"kind,omitempty"`
	Name       string   `yaml:"name,omitempty"`
}

// Assertion type constants.
const (
	AssertCallCount     = "call_count"
	AssertCallOrder     = "call_order"
	AssertState         = "state"
	AssertOutput        = "output"
	AssertRenderCount   = "render_count"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently skipping assertions.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarioDir loads every *.yaml/*.yml scenario under dir, sorted by
// file name for deterministic execution order.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		sc, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// Validate checks required fields, flow step shape, and assertion types.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Component == "" {
		return fmt.Errorf("component is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("at least one assertion is required")
	}

	// Wrapped operations and observed callbacks share one handle namespace
	// in assertions, so a name cannot appear in both lists.
	wrapped := make(map[string]bool, len(s.Wrap))
	for _, op := range s.Wrap {
		wrapped[op] = true
	}
	for _, cb := range s.Callbacks {
		if wrapped[cb] {
			return fmt.Errorf("%q appears in both wrap and callbacks", cb)
		}
	}

	for i, step := range s.Flow {
		if err := step.validate(); err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := a.validate(); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func (s *FlowStep) validate() error {
	actions := 0
	if s.Dispatch != "" {
		actions++
		if s.Element == "" {
			return fmt.Errorf("dispatch requires an element")
		}
	}
	if s.Invoke != "" {
		actions++
	}
	if s.SetProps != nil {
		actions++
	}
	if actions != 1 {
		return fmt.Errorf("exactly one of dispatch, invoke, or set_props is required")
	}
	return nil
}

func (a *Assertion) validate() error {
	switch a.Type {
	case AssertCallCount:
		if a.Operation == "" {
			return fmt.Errorf("call_count requires an operation")
		}
	case AssertCallOrder:
		if len(a.Operations) < 2 {
			return fmt.Errorf("call_order requires at least two operations")
		}
	case AssertState:
		if a.Field == "" {
			return fmt.Errorf("state requires a field")
		}
	case AssertOutput:
		if a.Equals == nil {
			return fmt.Errorf("output requires an equals value")
		}
	case AssertRenderCount:
		// Count zero is legitimate (a never-rendered component would be a
		// construction failure, but the field itself needs no bound).
	case AssertTraceContains, AssertTraceCount:
		if a.Name == "" {
			return fmt.Errorf("%s requires a name", a.Type)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		known := strings.Join([]string{
			AssertCallCount, AssertCallOrder, AssertState, AssertOutput,
			AssertRenderCount, AssertTraceContains, AssertTraceCount,
		}, ", ")
		return fmt.Errorf("unknown assertion type %q (known: %s)", a.Type, known)
	}
	return nil
}
