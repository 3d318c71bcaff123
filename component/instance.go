package component

import (
	"fmt"

	"github.com/spyglass-go/spyglass/value"
)

// Instance is a live component: props, state, mounted elements, and the
// output of its most recent render.
//
// Instances resolve operations through their definition on every
// invocation, which is what makes interception by swapping table entries
// work for indirect calls.
type Instance struct {
	def       *Definition
	props     value.Object
	state     value.Object
	callbacks map[string]CallbackFunc
	elements  map[string]*Element

	renderCount int
	output      value.Value
}

// Definition returns the definition this instance was constructed from.
func (i *Instance) Definition() *Definition {
	return i.def
}

// Invoke runs a named operation through the definition's operation table.
// The result and error of the implementation are returned unchanged.
//
// Invoking the render operation additionally increments the render count
// and records the result as the instance's output.
func (i *Instance) Invoke(name string, args value.Array) (value.Value, error) {
	fn, ok := i.def.Operation(name)
	if !ok {
		return nil, fmt.Errorf("invoke %q on %s: %w", name, i.def.name, ErrUnknownOperation)
	}

	res, err := fn(i, args)
	if err != nil {
		return res, err
	}

	if name == OpRender {
		i.renderCount++
		i.output = res
	}
	return res, nil
}

// InvokeCallback invokes a caller-supplied callback prop. Unsupplied
// callbacks are an error: a component that fires a missing callback is a
// wiring bug the harness must surface, not hide.
func (i *Instance) InvokeCallback(name string, args value.Array) (value.Value, error) {
	cb, ok := i.callbacks[name]
	if !ok || cb == nil {
		return nil, fmt.Errorf("callback %q not supplied to %s", name, i.def.name)
	}
	return cb(args)
}

// Callback returns the supplied callback prop with the given name.
func (i *Instance) Callback(name string) (CallbackFunc, bool) {
	cb, ok := i.callbacks[name]
	return cb, ok
}

// Props returns a copy of the current props.
func (i *Instance) Props() value.Object {
	return i.props.Clone()
}

// Prop returns a single prop value.
func (i *Instance) Prop(name string) (value.Value, bool) {
	v, ok := i.props[name]
	return v, ok
}

// SetProps replaces the instance's props. If the new props are canonically
// equal to the current ones, nothing happens and no render runs. Otherwise
// the props are updated and the render operation is re-invoked through the
// operation table.
func (i *Instance) SetProps(next value.Object) error {
	if next == nil {
		next = value.Object{}
	}
	if value.Equal(i.props, next) {
		return nil
	}

	i.props = next.Clone()
	if _, err := i.Invoke(OpRender, nil); err != nil {
		return fmt.Errorf("re-render of %s: %w", i.def.name, err)
	}
	return nil
}

// State returns a copy of the current state.
func (i *Instance) State() value.Object {
	return i.state.Clone()
}

// StateField returns a single state field.
func (i *Instance) StateField(name string) (value.Value, bool) {
	v, ok := i.state[name]
	return v, ok
}

// SetState writes a single state field. State writes do not trigger a
// render by themselves; operations decide when to re-render.
func (i *Instance) SetState(name string, v value.Value) {
	i.state[name] = v
}

// RenderCount reports how many times the render operation has run,
// including the initial render at construction.
func (i *Instance) RenderCount() int {
	return i.renderCount
}

// Output returns the result of the most recent render.
func (i *Instance) Output() value.Value {
	return i.output
}

// AddElement registers a new element with the given id. Registering an id
// twice returns the existing element.
func (i *Instance) AddElement(id string) *Element {
	if el, ok := i.elements[id]; ok {
		return el
	}
	el := &Element{id: id, handlers: make(map[string]HandlerFunc)}
	i.elements[id] = el
	return el
}

// Element looks up a mounted element by id.
func (i *Instance) Element(id string) (*Element, bool) {
	el, ok := i.elements[id]
	return el, ok
}

// Elements returns the ids of all mounted elements.
func (i *Instance) Elements() []string {
	ids := make([]string, 0, len(i.elements))
	for id := range i.elements {
		ids = append(ids, id)
	}
	return ids
}
