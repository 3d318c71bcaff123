package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/spyglass-go/spyglass/component"
	"github.com/spyglass-go/spyglass/dispatch"
	"github.com/spyglass-go/spyglass/internal/store"
	"github.com/spyglass-go/spyglass/spy"
	"github.com/spyglass-go/spyglass/value"
)

// Options configures a scenario run.
type Options struct {
	// Store receives the run's trace. If nil, a throwaway in-memory store
	// is opened for the duration of the run.
	Store *store.Store

	// Tokens generates the run token. Defaults to UUIDv7Generator; the
	// scenario's run_token field, when set, takes precedence.
	Tokens TokenGenerator

	// Logger for run progress. Defaults to a discarding logger so harness
	// runs stay quiet inside tests.
	Logger *slog.Logger
}

// Run executes a scenario against a component definition with default
// options. See RunWith.
func Run(def *component.Definition, scenario *Scenario) (*Result, error) {
	return RunWith(def, scenario, Options{})
}

// RunWith executes a scenario against a component definition.
//
// Execution order:
//  1. Wrap the scenario's operations and callback stubs (so the initial
//     render is already observable).
//  2. Construct the instance with the scenario's props.
//  3. Execute flow steps; every step and every recorded call is stamped
//     from one clock and lands in the unified trace.
//  4. Persist the trace, evaluate assertions, restore all handles.
//
// Handles are restored on every exit path; a failed run never leaks
// wrapped operations into the next one.
func RunWith(def *component.Definition, scenario *Scenario, opts Options) (*Result, error) {
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.Component != def.ID() {
		return nil, fmt.Errorf("scenario %s targets component %q, got definition %q",
			scenario.Name, scenario.Component, def.ID())
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	st := opts.Store
	if st == nil {
		owned, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to open trace store: %w", err)
		}
		defer owned.Close()
		st = owned
	}

	token := scenario.RunToken
	if token == "" {
		gen := opts.Tokens
		if gen == nil {
			gen = UUIDv7Generator{}
		}
		token = gen.Generate()
	}

	registry := spy.NewRegistry()
	defer registry.RestoreAll()

	result := NewResult(token)
	registry.Observe(func(target, operation string, rec spy.CallRecord) {
		kind := EventCall
		if target == spy.CallbackTarget {
			kind = EventCallback
		}
		errMsg := ""
		if rec.Err != nil {
			errMsg = rec.Err.Error()
		}
		result.Trace = append(result.Trace, TraceEvent{
			Seq:    rec.Seq,
			Kind:   kind,
			Target: target,
			Name:   operation,
			Args:   rec.Args,
			Result: rec.Result,
			Err:    errMsg,
		})
	})

	handles := make(map[string]*spy.Handle)
	for _, op := range scenario.Wrap {
		h, err := registry.Wrap(def, op)
		if err != nil {
			return nil, fmt.Errorf("wrap %q: %w", op, err)
		}
		handles[op] = h
	}

	callbacks, err := buildCallbacks(def, scenario, registry, handles)
	if err != nil {
		return nil, err
	}

	props, err := value.ObjectFromAny(scenario.Props)
	if err != nil {
		return nil, fmt.Errorf("invalid props: %w", err)
	}

	inst, err := def.New(props, callbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to construct %s: %w", def.ID(), err)
	}

	logger.Info("scenario started",
		"scenario", scenario.Name,
		"component", def.ID(),
		"run_token", token,
	)

	dispatcher := dispatch.New(logger)
	for i, step := range scenario.Flow {
		if err := executeStep(inst, dispatcher, registry, result, step); err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
	}

	result.RenderCount = inst.RenderCount()
	result.FinalState = inst.State()
	result.Output = inst.Output()
	sort.Slice(result.Trace, func(a, b int) bool {
		return result.Trace[a].Seq < result.Trace[b].Seq
	})

	if err := persistTrace(st, token, scenario, def, result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{Instance: inst, Handles: handles}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"events", len(result.Trace),
	)
	return result, nil
}

// buildCallbacks supplies callback props for the instance: observed stubs
// for callbacks the scenario lists, plain stubs for the rest of the
// definition's declared callbacks.
func buildCallbacks(def *component.Definition, scenario *Scenario, registry *spy.Registry, handles map[string]*spy.Handle) (map[string]component.CallbackFunc, error) {
	stub := func(value.Array) (value.Value, error) { return nil, nil }

	callbacks := make(map[string]component.CallbackFunc)
	for _, name := range def.Callbacks() {
		callbacks[name] = stub
	}
	for _, name := range scenario.Callbacks {
		if _, declared := callbacks[name]; !declared {
			return nil, fmt.Errorf("component %s does not declare callback %q", def.ID(), name)
		}
		wrapped, h := registry.WrapFunc(name, stub)
		callbacks[name] = wrapped
		handles[name] = h
	}
	return callbacks, nil
}

func executeStep(inst *component.Instance, dispatcher *dispatch.Dispatcher, registry *spy.Registry, result *Result, step FlowStep) error {
	switch {
	case step.Dispatch != "":
		el, ok := inst.Element(step.Element)
		if !ok {
			return fmt.Errorf("element %q not mounted on %s", step.Element, inst.Definition().ID())
		}
		payload, err := value.ObjectFromAny(step.Payload)
		if err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}

		ev := TraceEvent{
			Seq:    registry.Clock().Next(),
			Kind:   EventDispatch,
			Target: step.Element,
			Name:   step.Dispatch,
			Args:   value.Array{payload},
		}
		err = dispatcher.Dispatch(el, step.Dispatch, payload)
		return finishStep(result, ev, step, err)

	case step.Invoke != "":
		args := make(value.Array, 0, len(step.Args))
		for i, raw := range step.Args {
			v, err := value.FromAny(raw)
			if err != nil {
				return fmt.Errorf("invalid arg %d: %w", i, err)
			}
			args = append(args, v)
		}

		ev := TraceEvent{
			Seq:    registry.Clock().Next(),
			Kind:   EventInvoke,
			Target: inst.Definition().ID(),
			Name:   step.Invoke,
			Args:   args,
		}
		res, err := inst.Invoke(step.Invoke, args)
		ev.Result = res
		return finishStep(result, ev, step, err)

	default:
		next, err := value.ObjectFromAny(step.SetProps)
		if err != nil {
			return fmt.Errorf("invalid props: %w", err)
		}

		ev := TraceEvent{
			Seq:    registry.Clock().Next(),
			Kind:   EventProps,
			Target: inst.Definition().ID(),
			Name:   "set_props",
			Args:   value.Array{next},
		}
		err = inst.SetProps(next)
		return finishStep(result, ev, step, err)
	}
}

// finishStep appends the step's trace event and reconciles its error with
// the step's expectation. Unexpected errors abort the run unmodified.
func finishStep(result *Result, ev TraceEvent, step FlowStep, err error) error {
	if err != nil {
		ev.Err = err.Error()
	}
	result.Trace = append(result.Trace, ev)

	if step.ExpectError != "" {
		if err == nil {
			return fmt.Errorf("expected error containing %q, got none", step.ExpectError)
		}
		if !strings.Contains(err.Error(), step.ExpectError) {
			return fmt.Errorf("expected error containing %q, got: %w", step.ExpectError, err)
		}
		return nil
	}
	return err
}

func persistTrace(st *store.Store, token string, scenario *Scenario, def *component.Definition, result *Result) error {
	ctx := context.Background()
	if err := st.WriteRun(ctx, token, scenario.Name, def.ID()); err != nil {
		return err
	}
	for _, ev := range result.Trace {
		rec := store.Event{
			Seq:    ev.Seq,
			Kind:   ev.Kind,
			Target: ev.Target,
			Name:   ev.Name,
			Err:    ev.Err,
		}
		if len(ev.Args) > 0 {
			b, err := value.MarshalCanonical(ev.Args)
			if err != nil {
				return fmt.Errorf("failed to serialize args for seq %d: %w", ev.Seq, err)
			}
			rec.Args = string(b)
		}
		if ev.Result != nil {
			b, err := value.MarshalCanonical(ev.Result)
			if err != nil {
				return fmt.Errorf("failed to serialize result for seq %d: %w", ev.Seq, err)
			}
			rec.Result = string(b)
		}
		if err := st.WriteEvent(ctx, token, rec); err != nil {
			return err
		}
	}
	return nil
}
