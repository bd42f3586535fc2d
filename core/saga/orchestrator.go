package saga

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/foundation/core/event"
	"github.com/dmitrymomot/foundation/core/logger"
	"github.com/dmitrymomot/foundation/core/message"
)

// CorrelationExtractor derives a correlation id from a dispatched event's
// envelope and payload. DefaultCorrelationExtractor implements spec §4.9
// step 1; a caller may supply its own for event types that carry the id
// under a different shape than a CorrelationID field (the Design Notes'
// "fall back to a user-supplied extractor function").
type CorrelationExtractor func(env message.Envelope, payload any) (string, bool)

// DefaultCorrelationExtractor prefers env.CorrelationID, then falls back to
// a field named CorrelationID on the event payload, accepting a string, a
// uuid.UUID, or anything implementing fmt.Stringer.
func DefaultCorrelationExtractor(env message.Envelope, payload any) (string, bool) {
	if env.CorrelationID != "" {
		return env.CorrelationID, true
	}

	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", false
	}
	f := v.FieldByName("CorrelationID")
	if !f.IsValid() || !f.CanInterface() {
		return "", false
	}

	switch val := f.Interface().(type) {
	case string:
		return val, val != ""
	case uuid.UUID:
		return val.String(), val != uuid.Nil
	case fmt.Stringer:
		s := val.String()
		return s, s != ""
	default:
		return "", false
	}
}

// Orchestrator is the saga orchestrator (spec §4.9): it routes dispatched
// events to persistent, correlation-keyed state machine instances, running
// the matching transition's action and persisting the result under
// optimistic concurrency.
type Orchestrator[D any] struct {
	def       *Definition[D]
	repo      Repository[D]
	extractor CorrelationExtractor
	services  any
	logger    *slog.Logger

	staleThreshold time.Duration

	compStacks sync.Map // string(correlationID) -> *CompensationStack

	started              atomic.Int64
	advanced             atomic.Int64
	ignored              atomic.Int64
	failed               atomic.Int64
	concurrencyConflicts atomic.Int64
	lastActivityAt       atomic.Int64
}

// Stats reports orchestrator observability counters.
type Stats struct {
	Started              int64
	Advanced             int64
	Ignored              int64
	Failed               int64
	ConcurrencyConflicts int64
	LastActivityAt       time.Time
}

// Option configures an Orchestrator at construction time.
type Option[D any] func(*Orchestrator[D])

// WithCorrelationExtractor overrides DefaultCorrelationExtractor.
func WithCorrelationExtractor[D any](fn CorrelationExtractor) Option[D] {
	return func(o *Orchestrator[D]) { o.extractor = fn }
}

// WithServices attaches a caller-defined services value, passed to every
// transition action via StateContext.Services. Typically a struct of
// repositories/clients the saga's actions need (the DI-container analogue).
func WithServices[D any](services any) Option[D] {
	return func(o *Orchestrator[D]) { o.services = services }
}

// WithOrchestratorLogger sets the orchestrator's structured logger.
func WithOrchestratorLogger[D any](l *slog.Logger) Option[D] {
	return func(o *Orchestrator[D]) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStaleThreshold overrides the inactivity window Healthcheck tolerates.
func WithStaleThreshold[D any](threshold time.Duration) Option[D] {
	return func(o *Orchestrator[D]) { o.staleThreshold = threshold }
}

// NewOrchestrator builds an Orchestrator for def, persisting instances to
// repo.
func NewOrchestrator[D any](def *Definition[D], repo Repository[D], opts ...Option[D]) *Orchestrator[D] {
	o := &Orchestrator[D]{
		def:            def,
		repo:           repo,
		extractor:      DefaultCorrelationExtractor,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		staleThreshold: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// triggerAdapter registers the orchestrator with the event bus under one
// specific trigger name. The bus's registry is keyed by event name (spec
// §4.1's type-exact resolution), so a saga reacting to N distinct event
// types needs N registrations, each delegating to the same
// Orchestrator.HandleEnvelope.
type triggerAdapter[D any] struct {
	name string
	orch *Orchestrator[D]
}

func (a *triggerAdapter[D]) Name() string { return a.name }

func (a *triggerAdapter[D]) Handle(ctx context.Context, payload any) error {
	return a.orch.HandleEnvelope(ctx, event.New(payload))
}

func (a *triggerAdapter[D]) HandleEnvelope(ctx context.Context, env message.Envelope) error {
	return a.orch.HandleEnvelope(ctx, env)
}

// Subscribers returns one event.Handler per distinct trigger event type this
// saga's definition reacts to. Register each with event.WithHandler so the
// bus fans out matching events to the orchestrator.
func (o *Orchestrator[D]) Subscribers() []event.Handler {
	names := o.def.TriggerNames()
	out := make([]event.Handler, 0, len(names))
	for _, n := range names {
		out = append(out, &triggerAdapter[D]{name: n, orch: o})
	}
	return out
}

// HandleEnvelope runs the dispatch algorithm of spec §4.9 for one event:
// extract correlation id, load or create the instance, find the matching
// transition for the current state, run its action, advance state, and
// persist under optimistic concurrency.
func (o *Orchestrator[D]) HandleEnvelope(ctx context.Context, env message.Envelope) error {
	o.lastActivityAt.Store(time.Now().UnixNano())

	correlationID, ok := o.extractor(env, env.Payload)
	if !ok || correlationID == "" {
		o.ignored.Add(1)
		o.logger.WarnContext(ctx, "saga: event carries no correlation id",
			logger.Event(env.Name))
		return nil
	}

	inst, isNew, err := o.load(ctx, correlationID)
	if err != nil {
		o.failed.Add(1)
		return fmt.Errorf("saga: load %s: %w", correlationID, err)
	}

	transitions, ok := o.def.States[inst.CurrentState]
	if !ok || len(transitions) == 0 {
		o.ignored.Add(1)
		o.logger.InfoContext(ctx, "saga: no transitions defined for state",
			logger.CorrelationID(correlationID), logger.Key("state", string(inst.CurrentState)))
		return nil
	}

	var transition *Transition[D]
	for i := range transitions {
		if transitions[i].Trigger == env.Name {
			transition = &transitions[i]
			break
		}
	}
	if transition == nil {
		o.ignored.Add(1)
		o.logger.InfoContext(ctx, "saga: no transition matches event in current state",
			logger.CorrelationID(correlationID), logger.Event(env.Name),
			logger.Key("state", string(inst.CurrentState)))
		return nil
	}

	sc := StateContext[D]{
		Instance:     inst,
		Event:        env.Payload,
		Services:     o.services,
		Compensation: o.compensationFor(correlationID),
	}

	if transition.Action != nil {
		if err := transition.Action(sc); err != nil {
			o.failed.Add(1)
			return fmt.Errorf("saga %s: transition action: %w", correlationID, err)
		}
	}

	if transition.To != "" {
		inst.CurrentState = transition.To
	}
	if transition.Finalize {
		inst.IsCompleted = true
		o.compStacks.Delete(correlationID)
	}

	if isNew {
		o.started.Add(1)
		if err := o.repo.Save(ctx, inst); err != nil {
			o.failed.Add(1)
			return fmt.Errorf("saga %s: save: %w", correlationID, err)
		}
	} else {
		if err := o.repo.Update(ctx, inst); err != nil {
			if IsConcurrencyError(err) {
				o.concurrencyConflicts.Add(1)
			} else {
				o.failed.Add(1)
			}
			return fmt.Errorf("saga %s: update: %w", correlationID, err)
		}
	}

	o.advanced.Add(1)
	return nil
}

// load returns the saga persisted under correlationID, or a freshly
// constructed instance at the definition's initial state if none exists yet
// (spec §4.9 step 2).
func (o *Orchestrator[D]) load(ctx context.Context, correlationID string) (*Instance[D], bool, error) {
	inst, err := o.repo.Find(ctx, correlationID)
	if err == nil {
		return inst, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	return &Instance[D]{
		CorrelationID: correlationID,
		CurrentState:  o.def.Initial,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, true, nil
}

// compensationFor returns the correlation-scoped compensation stack,
// creating one on first use. Compensation actions are closures and so are
// never persisted to the saga's durable store; they live only as long as
// the orchestrator process and the correlation id's entry in this map,
// which is released once the saga finalizes.
func (o *Orchestrator[D]) compensationFor(correlationID string) *CompensationStack {
	actual, _ := o.compStacks.LoadOrStore(correlationID, NewCompensationStack())
	return actual.(*CompensationStack)
}

// SweepStale loads every non-completed saga whose UpdatedAt predates
// now - olderThan and invokes fn for each, enabling timeout sweeps (spec
// §4.9 "Staleness").
func (o *Orchestrator[D]) SweepStale(ctx context.Context, olderThan time.Duration, fn func(*Instance[D])) error {
	stale, err := o.repo.FindStale(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("saga: find stale: %w", err)
	}
	for _, inst := range stale {
		fn(inst)
	}
	return nil
}

// Stats returns current orchestrator statistics for observability.
func (o *Orchestrator[D]) Stats() Stats {
	lastActivity := o.lastActivityAt.Load()
	var lastActivityTime time.Time
	if lastActivity > 0 {
		lastActivityTime = time.Unix(0, lastActivity)
	}

	return Stats{
		Started:              o.started.Load(),
		Advanced:             o.advanced.Load(),
		Ignored:              o.ignored.Load(),
		Failed:               o.failed.Load(),
		ConcurrencyConflicts: o.concurrencyConflicts.Load(),
		LastActivityAt:       lastActivityTime,
	}
}

// Healthcheck reports whether the orchestrator has processed activity
// within staleThreshold, once at least one event has been handled.
func (o *Orchestrator[D]) Healthcheck(context.Context) error {
	stats := o.Stats()
	if stats.LastActivityAt.IsZero() {
		return nil
	}
	if since := time.Since(stats.LastActivityAt); since > o.staleThreshold {
		return fmt.Errorf("%w: last activity %s ago (threshold %s)",
			ErrHealthcheckFailed, since.Round(time.Second), o.staleThreshold)
	}
	return nil
}
