// Package outbox implements the outbox processor (spec §4.6): a durable,
// at-least-once dispatcher of messages enqueued by application code to
// either external destinations or the internal command/event dispatcher. It
// follows the claim/lease shape already established by
// core/queue.MemoryStorage (exclusive claim via store-level conditional
// update, visibility-timeout re-eligibility on crash) generalized to the
// outbox's {Pending, Processing, Processed, Failed} state machine.
package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/foundation/core/message"
)

// Status is the outbox entry's lifecycle state (spec §3, OutboxEntry).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// Options configures how a single outbox entry is dispatched.
type Options struct {
	// Priority in 0-10; entries with Priority > 5 are additionally enqueued
	// directly into the worker pool without waiting for the next poll tick.
	Priority int
	// Destination names an external transport; empty means dispatch through
	// the internal dispatcher instead.
	Destination string
	// MaxRetries bounds the retry_count before the entry transitions to Failed.
	MaxRetries int
	// RetryDelay overrides the default exponential-backoff-with-jitter delay
	// when set.
	RetryDelay time.Duration
}

// DefaultMaxRetries matches the spec's outbox retry ceiling used when
// Options.MaxRetries is left unset.
const DefaultMaxRetries = 5

// Entry is a durable outbox record (spec §3, OutboxEntry). Entries are
// immutable values handed out by Storage; state transitions replace the
// stored copy atomically rather than mutating a shared reference.
type Entry struct {
	ID           uuid.UUID
	Message      message.Envelope
	Options      Options
	Status       Status
	RetryCount   int
	NextRetryAt  time.Time
	CreatedAt    time.Time
	LastError    string
	LockedUntil  time.Time
	LockedBy     uuid.UUID
}
