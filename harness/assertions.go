package harness

import (
	"fmt"
	"strings"

	"github.com/spyglass-go/spyglass/component"
	"github.com/spyglass-go/spyglass/spy"
	"github.com/spyglass-go/spyglass/value"
)

// AssertionError is returned when an assertion fails. It names the handle
// or field that produced the unexpected observation, not just a boolean
// mismatch, and carries the full trace for context.
type AssertionError struct {
	Type     string       // assertion type for categorization
	Subject  string       // the handle, operation, or field being checked
	Expected string       // human-readable expected outcome
	Actual   string       // human-readable actual outcome
	Trace    []TraceEvent // full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s (%s)\n", e.Type, e.Subject)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s/%s\n", ev.Seq, ev.Kind, ev.Target, ev.Name)
		}
	}
	return buf.String()
}

// AssertionContext provides the assertions access to the instance and the
// handles the run created.
type AssertionContext struct {
	Instance *component.Instance
	Handles  map[string]*spy.Handle
}

// EvaluateAssertions evaluates all assertions against a finished run and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertCallCount:
			err = assertCallCount(result, assertion, actx)
		case AssertCallOrder:
			err = assertCallOrder(result, assertion, actx)
		case AssertState:
			err = assertState(result, assertion, actx)
		case AssertOutput:
			err = assertOutput(result, assertion)
		case AssertRenderCount:
			err = assertRenderCount(result, assertion)
		case AssertTraceContains:
			err = assertTraceContains(result, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func assertCallCount(result *Result, a Assertion, actx *AssertionContext) error {
	h, ok := actx.Handles[a.Operation]
	if !ok {
		return &AssertionError{
			Type:     AssertCallCount,
			Subject:  a.Operation,
			Expected: fmt.Sprintf("a handle observing %q", a.Operation),
			Actual:   "operation was not wrapped by this scenario",
			Trace:    result.Trace,
		}
	}

	if got := h.CallCount(); got != a.Count {
		return &AssertionError{
			Type:     AssertCallCount,
			Subject:  fmt.Sprintf("%s/%s", h.Target(), h.Operation()),
			Expected: fmt.Sprintf("%d calls", a.Count),
			Actual:   fmt.Sprintf("%d calls", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertCallOrder verifies a causal chain: the first invocation of each
// listed operation happened in the given order, proven by comparing
// sequence numbers across independent handles.
func assertCallOrder(result *Result, a Assertion, actx *AssertionContext) error {
	prevSeq := int64(0)
	prevName := ""

	for _, op := range a.Operations {
		h, ok := actx.Handles[op]
		if !ok {
			return &AssertionError{
				Type:     AssertCallOrder,
				Subject:  op,
				Expected: fmt.Sprintf("a handle observing %q", op),
				Actual:   "operation was not wrapped by this scenario",
				Trace:    result.Trace,
			}
		}

		seq := h.FirstSeq()
		if seq == 0 {
			return &AssertionError{
				Type:     AssertCallOrder,
				Subject:  fmt.Sprintf("%s/%s", h.Target(), h.Operation()),
				Expected: "at least one recorded call",
				Actual:   "never invoked",
				Trace:    result.Trace,
			}
		}
		if seq <= prevSeq {
			return &AssertionError{
				Type:     AssertCallOrder,
				Subject:  strings.Join(a.Operations, " -> "),
				Expected: fmt.Sprintf("%s invoked before %s", prevName, op),
				Actual:   fmt.Sprintf("%s at seq %d, %s at seq %d", prevName, prevSeq, op, seq),
				Trace:    result.Trace,
			}
		}
		prevSeq = seq
		prevName = op
	}
	return nil
}

func assertState(result *Result, a Assertion, actx *AssertionContext) error {
	got, ok := actx.Instance.StateField(a.Field)
	if !ok {
		return &AssertionError{
			Type:     AssertState,
			Subject:  a.Field,
			Expected: fmt.Sprintf("state field %q to exist", a.Field),
			Actual:   "field not present",
			Trace:    result.Trace,
		}
	}

	want, err := value.FromAny(a.Equals)
	if err != nil {
		return fmt.Errorf("state assertion %q: invalid expected value: %w", a.Field, err)
	}

	if !value.Equal(want, got) {
		return &AssertionError{
			Type:     AssertState,
			Subject:  a.Field,
			Expected: formatValue(want),
			Actual:   formatValue(got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertOutput(result *Result, a Assertion) error {
	want, err := value.FromAny(a.Equals)
	if err != nil {
		return fmt.Errorf("output assertion: invalid expected value: %w", err)
	}

	if result.Output == nil || !value.Equal(want, result.Output) {
		actual := "no rendered output"
		if result.Output != nil {
			actual = formatValue(result.Output)
		}
		return &AssertionError{
			Type:     AssertOutput,
			Subject:  component.OpRender,
			Expected: formatValue(want),
			Actual:   actual,
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertRenderCount(result *Result, a Assertion) error {
	if result.RenderCount != a.Count {
		return &AssertionError{
			Type:     AssertRenderCount,
			Subject:  component.OpRender,
			Expected: fmt.Sprintf("%d renders", a.Count),
			Actual:   fmt.Sprintf("%d renders", result.RenderCount),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertTraceContains(result *Result, a Assertion) error {
	for _, ev := range result.Trace {
		if traceEventMatches(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Subject:  a.Name,
		Expected: describeTraceQuery(a),
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

func assertTraceCount(result *Result, a Assertion) error {
	count := 0
	for _, ev := range result.Trace {
		if traceEventMatches(ev, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Subject:  a.Name,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describeTraceQuery(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

func traceEventMatches(ev TraceEvent, a Assertion) bool {
	if a.Kind != "" && ev.Kind != a.Kind {
		return false
	}
	return ev.Name == a.Name
}

func describeTraceQuery(a Assertion) string {
	if a.Kind != "" {
		return fmt.Sprintf("%s event %q", a.Kind, a.Name)
	}
	return fmt.Sprintf("event %q", a.Name)
}

func formatValue(v value.Value) string {
	b, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
