// Package registry implements the handler registry (spec §4.1): a type-exact
// map from message name to handler(s), resolved at dispatch time. Resolution
// never walks an inheritance chain; registrations are set once at startup.
package registry

import (
	"errors"
	"sync"
)

// ErrNoHandlerRegistered is returned by Resolve when no handler is registered
// for a message name, and corresponds to the spec's NoHandlerRegistered error
// kind.
var ErrNoHandlerRegistered = errors.New("no handler registered")

// ErrDuplicateHandler names the condition of a second handler for a name that
// must have at-most-one handler; RegisterExclusive panics in that case rather
// than returning an error.
var ErrDuplicateHandler = errors.New("handler already registered")

// Registry maps a message name to one or more handlers of type H. Commands
// and queries use RegisterExclusive/Resolve (at-most-one); events use
// Register/ResolveAll (zero-or-more, fan-out).
type Registry[H any] struct {
	mu       sync.RWMutex
	single   map[string]H
	fanout   map[string][]H
	frozen   bool
}

// New creates an empty Registry.
func New[H any]() *Registry[H] {
	return &Registry[H]{
		single: make(map[string]H),
		fanout: make(map[string][]H),
	}
}

// RegisterExclusive registers the single handler for name. It panics if a
// handler is already registered for name, matching the teacher's
// startup-time duplicate-registration panic (runtime lookups never panic).
func (r *Registry[H]) RegisterExclusive(name string, h H) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("registry: cannot register after Freeze")
	}
	if _, exists := r.single[name]; exists {
		panic("registry: handler already registered for " + name)
	}
	r.single[name] = h
}

// Register adds h to the fan-out list for name. Multiple handlers may be
// registered for the same name.
func (r *Registry[H]) Register(name string, h H) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("registry: cannot register after Freeze")
	}
	r.fanout[name] = append(r.fanout[name], h)
}

// Freeze marks the registry read-only. Registration after Freeze panics,
// matching the spec's "registrations are set once at startup" invariant.
func (r *Registry[H]) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Resolve returns the single handler registered for name, or
// ErrNoHandlerRegistered if none exists.
func (r *Registry[H]) Resolve(name string) (H, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.single[name]
	if !ok {
		var zero H
		return zero, ErrNoHandlerRegistered
	}
	return h, nil
}

// ResolveAll returns every handler registered for name (possibly empty).
func (r *Registry[H]) ResolveAll(name string) []H {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]H, len(r.fanout[name]))
	copy(out, r.fanout[name])
	return out
}

// Len returns the number of exclusively-registered handlers.
func (r *Registry[H]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.single)
}
