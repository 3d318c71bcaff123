package fixture

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spyglass-go/spyglass/component"
	"github.com/spyglass-go/spyglass/value"
)

// Build turns a compiled spec into a component definition. Effects run in
// order; the operation's result selector is evaluated after the last effect.
func Build(spec *Spec) (*component.Definition, error) {
	ops := make(map[string]component.OpFunc, len(spec.Operations))
	for name, op := range spec.Operations {
		ops[name] = buildOperation(name, op)
	}

	cfg := component.Config{
		Name:         spec.Name,
		InitialState: spec.State,
		Operations:   ops,
		Callbacks:    append([]string(nil), spec.Callbacks...),
		Mount:        buildMount(spec),
	}
	return component.NewDefinition(cfg)
}

// BuildAll compiles every spec into a definition, keyed by component name.
func BuildAll(specs []*Spec) (map[string]*component.Definition, error) {
	defs := make(map[string]*component.Definition, len(specs))
	for _, spec := range specs {
		if _, dup := defs[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate component fixture %q", spec.Name)
		}
		def, err := Build(spec)
		if err != nil {
			return nil, fmt.Errorf("fixture %q: %w", spec.Name, err)
		}
		defs[spec.Name] = def
	}
	return defs, nil
}

func buildOperation(name string, op OpSpec) component.OpFunc {
	return func(inst *component.Instance, args value.Array) (value.Value, error) {
		for i, effect := range op.Effects {
			if err := applyEffect(inst, args, effect); err != nil {
				return nil, fmt.Errorf("%s effect %d: %w", name, i, err)
			}
		}
		if op.Result == "" {
			return nil, nil
		}
		res, err := resolve(inst, args, op.Result)
		if err != nil {
			return nil, fmt.Errorf("%s result: %w", name, err)
		}
		return res, nil
	}
}

func applyEffect(inst *component.Instance, args value.Array, effect Effect) error {
	switch {
	case effect.Set != nil:
		v := effect.Set.Value
		if effect.Set.From != "" {
			resolved, err := resolve(inst, args, effect.Set.From)
			if err != nil {
				return err
			}
			v = resolved
		}
		inst.SetState(effect.Set.Field, v)
		return nil

	case effect.Toggle != nil:
		cur, ok := inst.StateField(effect.Toggle.Field)
		if !ok {
			return fmt.Errorf("toggle: state field %q not present", effect.Toggle.Field)
		}
		b, ok := cur.(value.Bool)
		if !ok {
			return fmt.Errorf("toggle: state field %q is not a bool", effect.Toggle.Field)
		}
		inst.SetState(effect.Toggle.Field, value.Bool(!bool(b)))
		return nil

	case effect.Invoke != nil:
		cbArgs := make(value.Array, 0, len(effect.Invoke.Args))
		for _, sel := range effect.Invoke.Args {
			v, err := resolve(inst, args, sel)
			if err != nil {
				return err
			}
			cbArgs = append(cbArgs, v)
		}
		_, err := inst.InvokeCallback(effect.Invoke.Callback, cbArgs)
		return err

	default:
		return fmt.Errorf("empty effect")
	}
}

// buildMount registers the spec's elements and routes their events to
// operations, resolving binding args against the event payload.
func buildMount(spec *Spec) component.MountFunc {
	if len(spec.Elements) == 0 {
		return nil
	}

	return func(inst *component.Instance) {
		for elementID, element := range spec.Elements {
			el := inst.AddElement(elementID)
			for event, binding := range element {
				el.On(event, buildHandler(inst, binding))
			}
		}
	}
}

func buildHandler(inst *component.Instance, binding Binding) component.HandlerFunc {
	return func(payload value.Object) error {
		args := make(value.Array, 0, len(binding.Args))
		for _, sel := range binding.Args {
			v, err := resolvePayload(inst, payload, sel)
			if err != nil {
				return err
			}
			args = append(args, v)
		}
		_, err := inst.Invoke(binding.Operation, args)
		return err
	}
}

// resolve evaluates an operation-scope selector: state.<field>,
// props.<name>, or args.<index>.
func resolve(inst *component.Instance, args value.Array, sel string) (value.Value, error) {
	prefix, rest, _ := strings.Cut(sel, ".")
	switch prefix {
	case "state":
		v, ok := inst.StateField(rest)
		if !ok {
			return nil, fmt.Errorf("selector %q: state field not present", sel)
		}
		return v, nil
	case "props":
		v, ok := inst.Prop(rest)
		if !ok {
			return nil, fmt.Errorf("selector %q: prop not present", sel)
		}
		return v, nil
	case "args":
		i, err := strconv.Atoi(rest)
		if err != nil || i < 0 || i >= len(args) {
			return nil, fmt.Errorf("selector %q: argument index out of range (%d args)", sel, len(args))
		}
		return args[i], nil
	default:
		return nil, fmt.Errorf("selector %q: unknown prefix %q", sel, prefix)
	}
}

// resolvePayload evaluates an element-binding selector, which may
// additionally read the event payload.
func resolvePayload(inst *component.Instance, payload value.Object, sel string) (value.Value, error) {
	prefix, rest, _ := strings.Cut(sel, ".")
	if prefix == "payload" {
		v, ok := payload[rest]
		if !ok {
			return nil, fmt.Errorf("selector %q: payload field not present", sel)
		}
		return v, nil
	}
	return resolve(inst, nil, sel)
}
