package component

// Element is a rendered element that events can be dispatched to. It holds
// the handler table keyed by event name.
type Element struct {
	id       string
	handlers map[string]HandlerFunc
}

// ID returns the element id.
func (e *Element) ID() string {
	return e.id
}

// On registers a handler for an event name, replacing any previous handler
// for that event.
func (e *Element) On(event string, fn HandlerFunc) {
	e.handlers[event] = fn
}

// Handler returns the handler registered for an event name.
func (e *Element) Handler(event string) (HandlerFunc, bool) {
	fn, ok := e.handlers[event]
	return fn, ok
}

// Events returns the event names this element has handlers for.
func (e *Element) Events() []string {
	events := make([]string, 0, len(e.handlers))
	for ev := range e.handlers {
		events = append(events, ev)
	}
	return events
}
