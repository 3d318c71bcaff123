// Package dispatch delivers synthetic events: a named event with a
// fully-formed payload is handed directly to the target's registered
// handler, instead of being assembled from a sequence of lower-level
// primitive events.
//
// The payload is opaque to the dispatcher. It performs no validation and
// no mutation; whether the payload's shape is acceptable is the handler's
// concern, the same way a real input event's shape is determined by the
// platform rather than the test.
package dispatch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spyglass-go/spyglass/component"
	"github.com/spyglass-go/spyglass/value"
)

// Target is anything a synthetic event can be dispatched to.
// *component.Element satisfies it.
type Target interface {
	ID() string
	Handler(event string) (component.HandlerFunc, bool)
}

// NoHandlerError is returned when the target has no handler registered for
// the dispatched event name.
type NoHandlerError struct {
	Target string
	Event  string
}

// Error implements the error interface.
func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("no handler for event %q on target %s", e.Event, e.Target)
}

// IsNoHandler reports whether err is a NoHandlerError.
// Uses errors.As to handle wrapped errors.
func IsNoHandler(err error) bool {
	var nh *NoHandlerError
	return errors.As(err, &nh)
}

// Dispatcher delivers synthetic events synchronously on the calling
// goroutine. There is no queuing and no background scheduling.
type Dispatcher struct {
	logger *slog.Logger
}

// New creates a Dispatcher. A nil logger suppresses logging.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{logger: logger}
}

// Dispatch invokes the handler registered on target for the named event,
// passing the payload verbatim. Handler failures propagate to the caller
// unmodified; the dispatcher never swallows them.
func (d *Dispatcher) Dispatch(target Target, event string, payload value.Object) error {
	handler, ok := target.Handler(event)
	if !ok {
		return &NoHandlerError{Target: target.ID(), Event: event}
	}

	d.logger.Debug("dispatching synthetic event",
		"target", target.ID(),
		"event", event,
	)

	return handler(payload)
}

// Dispatch is a convenience for one-off dispatches without constructing a
// Dispatcher.
func Dispatch(target Target, event string, payload value.Object) error {
	return New(nil).Dispatch(target, event, payload)
}
