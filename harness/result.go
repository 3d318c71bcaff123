package harness

import (
	"github.com/spyglass-go/spyglass/value"
)

// Trace event kinds.
const (
	// EventCall is a recorded invocation of a wrapped operation.
	EventCall = "call"
	// EventCallback is a recorded invocation of a wrapped callback prop.
	EventCallback = "callback"
	// EventDispatch is a synthetic event delivered by a flow step.
	EventDispatch = "dispatch"
	// EventInvoke is a direct operation invocation by a flow step.
	EventInvoke = "invoke"
	// EventProps is a prop update by a flow step.
	EventProps = "props"
)

// TraceEvent is one entry of a run's unified trace: harness-initiated steps
// and spy-recorded calls interleaved in sequence-number order.
type TraceEvent struct {
	Seq    int64       `json:"seq"`
	Kind   string      `json:"kind"`
	Target string      `json:"target"`
	Name   string      `json:"name"`
	Args   value.Array `json:"args,omitempty"`
	Result value.Value `json:"result,omitempty"`
	Err    string      `json:"error,omitempty"`
}

// Result is the outcome of one scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// RunToken identifies this run, including in the trace store.
	RunToken string `json:"run_token"`

	// Trace holds all events ordered by seq.
	Trace []TraceEvent `json:"trace"`

	// Errors holds assertion failure messages. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`

	// RenderCount is the instance's final render count.
	RenderCount int `json:"render_count"`

	// FinalState is a copy of the instance's state after the flow.
	FinalState value.Object `json:"final_state,omitempty"`

	// Output is the instance's last rendered output.
	Output value.Value `json:"output,omitempty"`
}

// NewResult creates a passing result for a run token.
func NewResult(token string) *Result {
	return &Result{
		Pass:     true,
		RunToken: token,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// eventValue converts a trace event to a value object for canonical
// serialization. Empty optional fields are omitted so goldens stay terse.
func (e TraceEvent) eventValue() value.Object {
	obj := value.Object{
		"seq":    value.Int(e.Seq),
		"kind":   value.String(e.Kind),
		"target": value.String(e.Target),
		"name":   value.String(e.Name),
	}
	if len(e.Args) > 0 {
		obj["args"] = e.Args
	}
	if e.Result != nil {
		obj["result"] = e.Result
	}
	if e.Err != "" {
		obj["error"] = value.String(e.Err)
	}
	return obj
}
