// Package fixture compiles CUE component fixtures into runnable component
// definitions. Fixtures describe a component declaratively (initial state,
// callbacks, operations as effect lists, element bindings); Build turns a
// compiled spec into a *component.Definition the harness can run scenarios
// against.
package fixture

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/spyglass-go/spyglass/value"
)

// Spec is a compiled component fixture.
type Spec struct {
	// Name identifies the component. Taken from the fixture's struct label.
	Name string

	// Description explains what the component models.
	Description string

	// State holds the initial state values.
	State value.Object

	// Callbacks lists the callback prop names instances accept.
	Callbacks []string

	// Operations maps operation names to their effect lists.
	Operations map[string]OpSpec

	// Elements maps element ids to their event bindings.
	Elements map[string]ElementSpec
}

// OpSpec describes one operation as an ordered effect list plus an optional
// result selector evaluated after the effects ran.
type OpSpec struct {
	Effects []Effect
	Result  string
}

// Effect is one state transition step. Exactly one of Set, Toggle, or
// Invoke is non-nil.
type Effect struct {
	Set    *SetEffect
	Toggle *ToggleEffect
	Invoke *InvokeEffect
}

// SetEffect writes a state field, either from a selector or from a literal.
type SetEffect struct {
	Field string
	From  string      // selector; mutually exclusive with Value
	Value value.Value // literal; mutually exclusive with From
}

// ToggleEffect flips a boolean state field.
type ToggleEffect struct {
	Field string
}

// InvokeEffect fires a callback prop with selector-resolved arguments.
type InvokeEffect struct {
	Callback string
	Args     []string
}

// ElementSpec maps event names to operation bindings.
type ElementSpec map[string]Binding

// Binding routes an element event to an operation. Args are selectors
// resolved against the event payload.
type Binding struct {
	Operation string
	Args      []string
}

// Compile parses a CUE value into a Spec.
//
// The CUE value should be the component struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`component: Toggle: { ... }`)
//	spec, err := fixture.Compile(v.LookupPath(cue.ParsePath("component.Toggle")))
func Compile(v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &Spec{
		State:      value.Object{},
		Operations: make(map[string]OpSpec),
		Elements:   make(map[string]ElementSpec),
	}

	// Component name comes from the struct label (the path selector).
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}
	if spec.Name == "" {
		return nil, &CompileError{
			Field:   "name",
			Message: "component fixture must be a labeled struct",
			Pos:     v.Pos(),
		}
	}

	descVal := v.LookupPath(cue.ParsePath("description"))
	if descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Description = desc
	}

	if err := parseState(v, spec); err != nil {
		return nil, err
	}
	if err := parseCallbacks(v, spec); err != nil {
		return nil, err
	}
	if err := parseOperations(v, spec); err != nil {
		return nil, err
	}
	if err := parseElements(v, spec); err != nil {
		return nil, err
	}

	if err := spec.validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func parseState(v cue.Value, spec *Spec) error {
	stateVal := v.LookupPath(cue.ParsePath("state"))
	if !stateVal.Exists() {
		return nil
	}

	iter, err := stateVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		val, err := cueToValue(iter.Value())
		if err != nil {
			return err
		}
		spec.State[iter.Label()] = val
	}
	return nil
}

func parseCallbacks(v cue.Value, spec *Spec) error {
	cbVal := v.LookupPath(cue.ParsePath("callbacks"))
	if !cbVal.Exists() {
		return nil
	}

	iter, err := cbVal.List()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return formatCUEError(err)
		}
		spec.Callbacks = append(spec.Callbacks, name)
	}
	return nil
}

func parseOperations(v cue.Value, spec *Spec) error {
	opsVal := v.LookupPath(cue.ParsePath("operations"))
	if !opsVal.Exists() {
		return nil
	}

	iter, err := opsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		opName := iter.Label()
		opValue := iter.Value()

		var op OpSpec

		effectsVal := opValue.LookupPath(cue.ParsePath("effects"))
		if effectsVal.Exists() {
			effIter, err := effectsVal.List()
			if err != nil {
				return formatCUEError(err)
			}
			for effIter.Next() {
				effect, err := parseEffect(opName, effIter.Value())
				if err != nil {
					return err
				}
				op.Effects = append(op.Effects, effect)
			}
		}

		resultVal := opValue.LookupPath(cue.ParsePath("result"))
		if resultVal.Exists() {
			sel, err := resultVal.String()
			if err != nil {
				return formatCUEError(err)
			}
			op.Result = sel
		}

		spec.Operations[opName] = op
	}
	return nil
}

// parseEffect decodes one effect struct. Exactly one of the set, toggle, or
// invoke keys must be present.
func parseEffect(opName string, v cue.Value) (Effect, error) {
	var effect Effect
	kinds := 0

	setVal := v.LookupPath(cue.ParsePath("set"))
	if setVal.Exists() {
		kinds++
		field, err := setVal.LookupPath(cue.ParsePath("field")).String()
		if err != nil {
			return effect, formatCUEError(err)
		}
		set := &SetEffect{Field: field}

		fromVal := setVal.LookupPath(cue.ParsePath("from"))
		litVal := setVal.LookupPath(cue.ParsePath("value"))
		switch {
		case fromVal.Exists() && litVal.Exists():
			return effect, &CompileError{
				Field:   fmt.Sprintf("operations.%s", opName),
				Message: "set effect takes either from or value, not both",
				Pos:     setVal.Pos(),
			}
		case fromVal.Exists():
			sel, err := fromVal.String()
			if err != nil {
				return effect, formatCUEError(err)
			}
			set.From = sel
		case litVal.Exists():
			lit, err := cueToValue(litVal)
			if err != nil {
				return effect, err
			}
			set.Value = lit
		default:
			return effect, &CompileError{
				Field:   fmt.Sprintf("operations.%s", opName),
				Message: "set effect requires from or value",
				Pos:     setVal.Pos(),
			}
		}
		effect.Set = set
	}

	toggleVal := v.LookupPath(cue.ParsePath("toggle"))
	if toggleVal.Exists() {
		kinds++
		field, err := toggleVal.LookupPath(cue.ParsePath("field")).String()
		if err != nil {
			return effect, formatCUEError(err)
		}
		effect.Toggle = &ToggleEffect{Field: field}
	}

	invokeVal := v.LookupPath(cue.ParsePath("invoke"))
	if invokeVal.Exists() {
		kinds++
		callback, err := invokeVal.LookupPath(cue.ParsePath("callback")).String()
		if err != nil {
			return effect, formatCUEError(err)
		}
		invoke := &InvokeEffect{Callback: callback}

		argsVal := invokeVal.LookupPath(cue.ParsePath("args"))
		if argsVal.Exists() {
			argIter, err := argsVal.List()
			if err != nil {
				return effect, formatCUEError(err)
			}
			for argIter.Next() {
				sel, err := argIter.Value().String()
				if err != nil {
					return effect, formatCUEError(err)
				}
				invoke.Args = append(invoke.Args, sel)
			}
		}
		effect.Invoke = invoke
	}

	if kinds != 1 {
		return effect, &CompileError{
			Field:   fmt.Sprintf("operations.%s", opName),
			Message: "effect requires exactly one of set, toggle, or invoke",
			Pos:     v.Pos(),
		}
	}
	return effect, nil
}

func parseElements(v cue.Value, spec *Spec) error {
	elVal := v.LookupPath(cue.ParsePath("elements"))
	if !elVal.Exists() {
		return nil
	}

	iter, err := elVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		elementID := iter.Label()
		element := make(ElementSpec)

		eventIter, err := iter.Value().Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for eventIter.Next() {
			event := eventIter.Label()
			bindVal := eventIter.Value()

			operation, err := bindVal.LookupPath(cue.ParsePath("operation")).String()
			if err != nil {
				return &CompileError{
					Field:   fmt.Sprintf("elements.%s.%s", elementID, event),
					Message: "binding requires an operation name",
					Pos:     bindVal.Pos(),
				}
			}

			binding := Binding{Operation: operation}
			argsVal := bindVal.LookupPath(cue.ParsePath("args"))
			if argsVal.Exists() {
				argIter, err := argsVal.List()
				if err != nil {
					return formatCUEError(err)
				}
				for argIter.Next() {
					sel, err := argIter.Value().String()
					if err != nil {
						return formatCUEError(err)
					}
					binding.Args = append(binding.Args, sel)
				}
			}
			element[event] = binding
		}
		spec.Elements[elementID] = element
	}
	return nil
}

// validate performs cross-field checks on a parsed spec: every selector is
// well-formed, element bindings reference defined operations, invoke
// effects reference declared callbacks.
func (s *Spec) validate() error {
	declared := make(map[string]bool, len(s.Callbacks))
	for _, cb := range s.Callbacks {
		declared[cb] = true
	}

	for opName, op := range s.Operations {
		for _, effect := range op.Effects {
			switch {
			case effect.Set != nil && effect.Set.From != "":
				if err := validateSelector(effect.Set.From, false); err != nil {
					return fmt.Errorf("operation %q: %w", opName, err)
				}
			case effect.Invoke != nil:
				if !declared[effect.Invoke.Callback] {
					return fmt.Errorf("operation %q invokes undeclared callback %q", opName, effect.Invoke.Callback)
				}
				for _, sel := range effect.Invoke.Args {
					if err := validateSelector(sel, false); err != nil {
						return fmt.Errorf("operation %q: %w", opName, err)
					}
				}
			}
		}
		if op.Result != "" {
			if err := validateSelector(op.Result, false); err != nil {
				return fmt.Errorf("operation %q result: %w", opName, err)
			}
		}
	}

	for elementID, element := range s.Elements {
		for event, binding := range element {
			if _, ok := s.Operations[binding.Operation]; !ok {
				return fmt.Errorf("element %q event %q binds unknown operation %q", elementID, event, binding.Operation)
			}
			for _, sel := range binding.Args {
				if err := validateSelector(sel, true); err != nil {
					return fmt.Errorf("element %q event %q: %w", elementID, event, err)
				}
			}
		}
	}
	return nil
}

// validateSelector checks selector grammar. Operation-scope selectors read
// state, props, or positional args; element bindings additionally read the
// event payload.
func validateSelector(sel string, allowPayload bool) error {
	prefix, rest, ok := strings.Cut(sel, ".")
	if !ok || rest == "" {
		return fmt.Errorf("invalid selector %q", sel)
	}
	switch prefix {
	case "state", "props":
		return nil
	case "args":
		if _, err := strconv.Atoi(rest); err != nil {
			return fmt.Errorf("invalid selector %q: args index must be numeric", sel)
		}
		return nil
	case "payload":
		if !allowPayload {
			return fmt.Errorf("invalid selector %q: payload is only available in element bindings", sel)
		}
		return nil
	default:
		return fmt.Errorf("invalid selector %q: unknown prefix %q", sel, prefix)
	}
}

// cueToValue converts a concrete CUE value into a harness value. Floats and
// nulls are rejected, matching the value package's model.
func cueToValue(v cue.Value) (value.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Int(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Bool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var arr value.Array
		for iter.Next() {
			item, err := cueToValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, item)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := value.Object{}
		for iter.Next() {
			item, err := cueToValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = item
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "value",
			Message: "float values are not supported - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a fixture compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
