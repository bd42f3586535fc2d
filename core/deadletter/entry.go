// Package deadletter implements the dead-letter queue (spec §6
// DeadLetterQueue / §3 DeadLetterEntry): the terminal resting place for
// messages a pipeline decorator or the event bus gave up on. It satisfies
// both core/pipeline.DeadLetterSink and core/event.DeadLetterSink so a
// single store can back either subsystem's ErrorHandling/WithDeadLetterSink
// wiring.
package deadletter

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/foundation/core/message"
)

// Status is a dead-letter entry's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusRetried   Status = "retried"
	StatusDiscarded Status = "discarded"
)

// Context captures why a message was dead-lettered (spec §3, DeadLetterEntry.context).
type Context struct {
	Reason           string
	ExceptionSummary string
	Component        string
	RetryCount       int
	FailureTime      time.Time
	Metadata         message.Metadata
}

// Entry is a durable dead-letter record.
type Entry struct {
	ID          uuid.UUID
	Message     message.Envelope
	Context     Context
	Status      Status
	CreatedAt   time.Time
	RetriedAt   time.Time
	DiscardedAt time.Time
}

// Statistics summarizes the dead-letter queue's current contents.
type Statistics struct {
	Active    int
	Retried   int
	Discarded int
	Total     int
}
