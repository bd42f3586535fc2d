// Package circuitbreaker implements the Closed/Open/HalfOpen state machine
// used by the processing pipeline's circuit-breaker decorator. The shape of
// the constructor (failure threshold, minimum throughput, break duration)
// follows the one documented but never implemented in
// github.com/dmitrymomot/foundation's pkg/webhook package; this fills that gap
// in the same idiom (mutex-guarded state and a Stats snapshot).
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is one of Closed, Open, HalfOpen.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrOpen is returned by Allow/Execute while the breaker is Open.
var ErrOpen = errors.New("circuit breaker is open")

// Config configures a Breaker.
type Config struct {
	// FailureThreshold opens the breaker once consecutive failures reach
	// this count.
	FailureThreshold int
	// FailureRateThreshold, if > 0, opens the breaker once the failure rate
	// reaches this fraction, but only after MinimumThroughput calls have been
	// observed. Calls and failures are counted since the breaker last left
	// HalfOpen (or since creation), not over a sliding time window.
	FailureRateThreshold float64
	// MinimumThroughput is the number of calls required before
	// FailureRateThreshold is evaluated.
	MinimumThroughput int
	// BreakDuration is how long the breaker stays Open before the next call
	// moves it to HalfOpen. While HalfOpen every call is let through; the
	// first outcome recorded closes or reopens the breaker.
	BreakDuration time.Duration
}

// Stats is a frozen snapshot of breaker counters.
type Stats struct {
	State           State
	ConsecutiveFail int
	TotalCalls      int64
	TotalFailures   int64
	OpenedAt        time.Time
}

// Breaker is a single circuit breaker instance, owned by one decorator/pipeline.
type Breaker struct {
	cfg Config

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time

	windowCalls int
	windowFails int

	totalCalls    int64
	totalFailures int64

	onStateChange func(from, to State)
}

// New creates a Breaker. A zero FailureThreshold falls back to 5 and a zero
// BreakDuration to 30s (the Integration profile's values); a zero
// FailureRateThreshold leaves rate-based tripping off.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.BreakDuration <= 0 {
		cfg.BreakDuration = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: Closed}
}

// OnStateChange registers a callback invoked whenever the breaker transitions.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Allow reports whether a call may proceed right now, transitioning
// Open -> HalfOpen once BreakDuration has elapsed. It never blocks.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowLocked()
}

func (b *Breaker) allowLocked() bool {
	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.cfg.BreakDuration {
			b.transition(HalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

// Execute runs fn if the breaker allows it, recording the outcome. It returns
// ErrOpen without calling fn when the breaker is Open.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn(ctx)
	b.record(err == nil)
	return err
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	b.windowCalls++

	if success {
		b.consecutiveFail = 0
		if b.state == HalfOpen {
			b.transition(Closed)
			b.windowCalls, b.windowFails = 0, 0
		}
		return
	}

	b.totalFailures++
	b.windowFails++
	b.consecutiveFail++

	if b.state == HalfOpen {
		b.transition(Open)
		b.windowCalls, b.windowFails = 0, 0
		return
	}

	if b.consecutiveFail >= b.cfg.FailureThreshold {
		b.transition(Open)
		return
	}

	if b.cfg.FailureRateThreshold > 0 && b.windowCalls >= b.cfg.MinimumThroughput {
		rate := float64(b.windowFails) / float64(b.windowCalls)
		if rate >= b.cfg.FailureRateThreshold {
			b.transition(Open)
		}
	}
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == Open {
		b.openedAt = time.Now()
		b.consecutiveFail = 0
	}
	cb := b.onStateChange
	if cb != nil {
		// Invoke outside the lock to avoid re-entrancy deadlocks if the
		// callback queries breaker state.
		go cb(from, to)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a frozen snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:           b.state,
		ConsecutiveFail: b.consecutiveFail,
		TotalCalls:      b.totalCalls,
		TotalFailures:   b.totalFailures,
		OpenedAt:        b.openedAt,
	}
}
