package query

import (
	"context"
	"fmt"
	"reflect"
)

// Handler answers queries of a single name, exactly one per registry, and
// returns a response value boxed as any. Typed callers use Send[R] to unbox it.
type Handler interface {
	// Name returns the unique query name this handler answers.
	Name() string

	// Handle executes the handler with the given query payload and returns
	// its typed response boxed as any.
	Handle(ctx context.Context, payload any) (any, error)
}

// HandlerFunc adapts a typed function to Handler, deriving its query name
// from T via reflection so callers never pass a name by hand.
type HandlerFunc[T any, R any] struct {
	name string
	fn   func(context.Context, T) (R, error)
}

// NewHandlerFunc creates a type-safe query handler for T answering with R.
//
// Example:
//
//	handler := query.NewHandlerFunc(func(ctx context.Context, q GetUser) (UserView, error) {
//	    return db.FindUser(ctx, q.ID)
//	})
func NewHandlerFunc[T any, R any](fn func(context.Context, T) (R, error)) Handler {
	var zero T
	return &HandlerFunc[T, R]{name: getQueryName(reflect.TypeOf(zero)), fn: fn}
}

// Name returns the query name this handler answers.
func (h *HandlerFunc[T, R]) Name() string { return h.name }

// Handle executes the handler with the given payload.
func (h *HandlerFunc[T, R]) Handle(ctx context.Context, payload any) (any, error) {
	q, ok := payload.(T)
	if !ok {
		var zero R
		return zero, fmt.Errorf("invalid payload type: expected %s, got %T", h.name, payload)
	}
	return h.fn(ctx, q)
}
