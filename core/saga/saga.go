// Package saga implements the saga orchestrator (spec §4.9): correlation-id
// routing of events to long-lived, persistent state machine instances, with
// optimistic-concurrency persistence and LIFO compensation. Unlike
// core/command and core/event it has no Start/Stop lifecycle: the
// orchestrator is driven by the event bus through its Subscribers. It is
// generalized with a type parameter for the saga's own domain fields (the
// spec's "...domain fields" on the Saga record).
package saga

import (
	"time"
)

// State names a node in a StateMachineDefinition's graph. The zero value is
// never a valid state; Definition.Initial must be non-empty.
type State string

// Instance is one persisted saga record (spec §3 "Saga"): correlation id,
// current state, an optimistic-concurrency version, timestamps, completion
// flag and caller-defined domain fields of type D.
type Instance[D any] struct {
	CorrelationID string
	CurrentState  State
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	IsCompleted   bool
	Data          D
}

// Transition describes one edge out of a state: the event type that fires
// it, an optional action to run, an optional target state, and whether
// firing it finalizes the saga.
type Transition[D any] struct {
	// Trigger is the event name that fires this transition, matching the
	// name the event bus derives from the payload type (event.NameOf).
	Trigger string

	// Action runs when the transition fires. It may mutate sc.Instance.Data,
	// register compensations on sc.Compensation, and return an error to
	// abort the transition (in which case no state change or persistence
	// happens for this dispatch).
	Action func(ctx StateContext[D]) error

	// To is the state to move to after Action runs. Empty means "stay in
	// the current state" (a self-transition that may still run an action).
	To State

	// Finalize marks the saga IsCompleted once this transition runs.
	Finalize bool
}

// Definition is the immutable state graph a saga type is built from: an
// initial state and a mapping from state to the transitions available out
// of it.
type Definition[D any] struct {
	Initial State
	States  map[State][]Transition[D]
}

// NewDefinition builds a Definition starting at initial with no transitions.
// Use AddTransition to populate it.
func NewDefinition[D any](initial State) *Definition[D] {
	return &Definition[D]{
		Initial: initial,
		States:  make(map[State][]Transition[D]),
	}
}

// AddTransition registers a transition out of from. Multiple transitions may
// be registered for the same (from, Trigger) only if they trigger on
// different event types; the orchestrator selects the first transition
// whose Trigger matches the dispatched event's name.
func (d *Definition[D]) AddTransition(from State, t Transition[D]) *Definition[D] {
	d.States[from] = append(d.States[from], t)
	return d
}

// TriggerNames returns the set of distinct event names this definition
// reacts to, across every state. Orchestrator.Subscribers uses this to
// register one adapter per trigger with the event bus.
func (d *Definition[D]) TriggerNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, transitions := range d.States {
		for _, t := range transitions {
			if _, ok := seen[t.Trigger]; !ok {
				seen[t.Trigger] = struct{}{}
				names = append(names, t.Trigger)
			}
		}
	}
	return names
}

// StateContext is the per-dispatch record a Transition's Action runs with
// (spec §4.9 step 5): the loaded/new instance, the triggering event payload,
// caller-supplied services, and the correlation-scoped compensation stack.
type StateContext[D any] struct {
	Instance     *Instance[D]
	Event        any
	Services     any
	Compensation *CompensationStack
}
