package event

import (
	"context"
	"fmt"
	"reflect"

	"github.com/dmitrymomot/foundation/core/message"
)

// Handler processes events of a single name. Unlike command.Handler, any
// number of handlers may be registered for the same name: the bus fans out
// to all of them independently.
type Handler interface {
	// Name returns the event name this handler processes.
	Name() string

	// Handle executes the handler with the given event payload.
	Handle(ctx context.Context, payload any) error
}

// EnvelopeHandler is an optional extension of Handler for subscribers that
// need more than the bare payload — message_id, correlation_id, or metadata.
// The bus prefers HandleEnvelope over Handle when a registered Handler
// implements this interface (the saga orchestrator's trigger handlers are
// the motivating case: spec §4.9 step 1 requires the envelope's
// correlation_id).
type EnvelopeHandler interface {
	Handler
	HandleEnvelope(ctx context.Context, env message.Envelope) error
}

// HandlerFunc adapts a typed function to Handler, deriving its event name
// from T via reflection so callers never pass a name by hand.
type HandlerFunc[T any] struct {
	name string
	fn   func(context.Context, T) error
}

// NewHandlerFunc creates a type-safe event handler for T.
//
// Example:
//
//	handler := event.NewHandlerFunc(func(ctx context.Context, evt OrderPlaced) error {
//	    return projector.Apply(ctx, evt)
//	})
func NewHandlerFunc[T any](fn func(context.Context, T) error) Handler {
	var zero T
	return &HandlerFunc[T]{name: getEventName(reflect.TypeOf(zero)), fn: fn}
}

// Name returns the event name this handler processes.
func (h *HandlerFunc[T]) Name() string { return h.name }

// Handle executes the handler with the given payload.
func (h *HandlerFunc[T]) Handle(ctx context.Context, payload any) error {
	evt, ok := payload.(T)
	if !ok {
		return fmt.Errorf("invalid payload type: expected %s, got %T", h.name, payload)
	}
	return h.fn(ctx, evt)
}
