package queue

import (
	"context"
	"encoding/json"

	"github.com/dmitrymomot/foundation/core/message"
)

type (
	// Handler defines the interface for entry processors.
	// All handlers must implement Name() to identify the entry name they
	// accept and Handle() to process the envelope.
	Handler interface {
		// Name returns the entry name used for handler registration and routing.
		Name() string
		// Handle processes the envelope claimed from the queue.
		Handle(ctx context.Context, env message.Envelope) error
	}

	// EnvelopeHandlerFunc processes a claimed envelope without decoding its
	// payload to a concrete type. Used by Processor, where a single handler
	// serves every envelope on a queue regardless of payload type.
	EnvelopeHandlerFunc func(ctx context.Context, env message.Envelope) error

	// TypedHandlerFunc is a type-safe handler function for a single payload
	// type T.
	TypedHandlerFunc[T any] func(ctx context.Context, payload T) error
)

// NewEnvelopeHandler adapts fn into a Handler for the entry name name,
// passing the claimed envelope through unchanged.
func NewEnvelopeHandler(name string, fn EnvelopeHandlerFunc) Handler {
	return &envelopeHandler{name: name, handler: fn}
}

// NewTypedHandler creates a type-safe handler for payload type T. The entry
// name is T's package-qualified type name (e.g., "main.EmailPayload"); an
// entry is routed to it only when the entry's Name (by default the
// envelope's Name) is exactly that string.
func NewTypedHandler[T any](handler TypedHandlerFunc[T]) Handler {
	var payload T
	return &typedHandler[T]{
		name:    qualifiedStructName(payload),
		handler: handler,
	}
}

type envelopeHandler struct {
	name    string
	handler EnvelopeHandlerFunc
}

func (h *envelopeHandler) Name() string {
	return h.name
}

func (h *envelopeHandler) Handle(ctx context.Context, env message.Envelope) error {
	return h.handler(ctx, env)
}

type typedHandler[T any] struct {
	name    string
	handler TypedHandlerFunc[T]
}

func (h *typedHandler[T]) Name() string {
	return h.name
}

// Handle decodes env.Payload into T. A payload already concretely typed as
// T (the common in-memory-storage case, where no wire encoding ever
// happens) is used directly; anything else is round-tripped through JSON,
// which is how a durable, encoding-based Storage hands payloads back.
func (h *typedHandler[T]) Handle(ctx context.Context, env message.Envelope) error {
	if v, ok := env.Payload.(T); ok {
		return h.handler(ctx, v)
	}

	raw, err := json.Marshal(env.Payload)
	if err != nil {
		return err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return h.handler(ctx, v)
}
