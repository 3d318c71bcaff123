package component

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spyglass-go/spyglass/value"
)

// OpRender is the reserved operation name for the render step. Every
// definition carries a render operation; wrapping it observes re-render
// decisions.
const OpRender = "render"

// ErrUnknownOperation is returned when an operation name is not present in
// a definition's operation table.
var ErrUnknownOperation = errors.New("unknown operation")

// OpFunc is the signature of every entry in a definition's operation table.
// Operations receive the instance they run against and an ordered argument
// list.
type OpFunc func(inst *Instance, args value.Array) (value.Value, error)

// CallbackFunc is the signature of caller-supplied callback props
// (e.g. onToggle). Callbacks are owned by the test, not the definition.
type CallbackFunc func(args value.Array) (value.Value, error)

// HandlerFunc is an event handler registered on an element. The payload is
// a fully-formed event value; the handler is responsible for validating it.
type HandlerFunc func(payload value.Object) error

// MountFunc wires an instance's elements and handlers at construction time.
type MountFunc func(inst *Instance)

// Config describes a component definition.
type Config struct {
	// Name identifies the definition. Required.
	Name string

	// InitialState seeds each new instance's state. May be nil.
	InitialState value.Object

	// Operations is the named operation table. A "render" entry overrides
	// the default render implementation.
	Operations map[string]OpFunc

	// Callbacks lists the callback prop names instances accept.
	Callbacks []string

	// Mount registers elements and event handlers on new instances.
	Mount MountFunc
}

// Definition is a component definition with a swappable operation table.
//
// The table is keyed by operation name; SwapOperation replaces an entry and
// returns the previous implementation so callers can restore it exactly.
type Definition struct {
	name      string
	callbacks []string
	initial   value.Object
	mount     MountFunc

	mu  sync.Mutex
	ops map[string]OpFunc
}

// NewDefinition builds a Definition from a Config. The operation table
// always contains a render operation; if the config does not supply one,
// a default render (canonical snapshot of props and state) is installed.
func NewDefinition(cfg Config) (*Definition, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("definition name is required")
	}

	ops := make(map[string]OpFunc, len(cfg.Operations)+1)
	for name, fn := range cfg.Operations {
		if fn == nil {
			return nil, fmt.Errorf("operation %q has nil implementation", name)
		}
		ops[name] = fn
	}
	if _, ok := ops[OpRender]; !ok {
		ops[OpRender] = defaultRender
	}

	var initial value.Object
	if cfg.InitialState != nil {
		initial = cfg.InitialState.Clone()
	} else {
		initial = value.Object{}
	}

	return &Definition{
		name:      cfg.Name,
		callbacks: append([]string(nil), cfg.Callbacks...),
		initial:   initial,
		mount:     cfg.Mount,
		ops:       ops,
	}, nil
}

// ID returns the definition name. It keys interception records together
// with an operation name.
func (d *Definition) ID() string {
	return d.name
}

// Operation looks up the current implementation of a named operation.
func (d *Definition) Operation(name string) (OpFunc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn, ok := d.ops[name]
	return fn, ok
}

// Operations returns the names of all registered operations.
func (d *Definition) Operations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.ops))
	for name := range d.ops {
		names = append(names, name)
	}
	return names
}

// Callbacks returns the callback prop names instances of this definition
// accept.
func (d *Definition) Callbacks() []string {
	return append([]string(nil), d.callbacks...)
}

// SwapOperation replaces the implementation of a named operation and
// returns the previous one. The operation must already exist; definitions
// never grow new operations after construction.
func (d *Definition) SwapOperation(name string, fn OpFunc) (OpFunc, error) {
	if fn == nil {
		return nil, fmt.Errorf("swap %q: nil implementation", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	prev, ok := d.ops[name]
	if !ok {
		return nil, fmt.Errorf("swap %q on %s: %w", name, d.name, ErrUnknownOperation)
	}
	d.ops[name] = fn
	return prev, nil
}

// New constructs an instance with the given initial props and callback
// props, mounts its elements, and performs the initial render through the
// operation table (so a wrapped render observes it).
func (d *Definition) New(props value.Object, callbacks map[string]CallbackFunc) (*Instance, error) {
	for name := range callbacks {
		if !d.acceptsCallback(name) {
			return nil, fmt.Errorf("definition %s does not accept callback %q", d.name, name)
		}
	}

	if props == nil {
		props = value.Object{}
	}

	inst := &Instance{
		def:       d,
		props:     props.Clone(),
		state:     d.initial.Clone(),
		callbacks: callbacks,
		elements:  make(map[string]*Element),
	}

	if d.mount != nil {
		d.mount(inst)
	}

	if _, err := inst.Invoke(OpRender, nil); err != nil {
		return nil, fmt.Errorf("initial render of %s: %w", d.name, err)
	}

	return inst, nil
}

func (d *Definition) acceptsCallback(name string) bool {
	for _, cb := range d.callbacks {
		if cb == name {
			return true
		}
	}
	return false
}

// defaultRender snapshots the instance's props and state into the output.
func defaultRender(inst *Instance, _ value.Array) (value.Value, error) {
	out := value.Object{
		"component": value.String(inst.def.name),
		"props":     inst.Props(),
		"state":     inst.State(),
	}
	return out, nil
}
