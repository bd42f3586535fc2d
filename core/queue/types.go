package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/foundation/core/message"
)

// DefaultQueueName is the default queue name used when no queue is specified
const DefaultQueueName = "default"

// Status tracks the lifecycle state of an entry through the queue system.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Priority represents entry priority (0-100, higher is more important)
// Using int8 provides sufficient range while keeping memory footprint minimal
type Priority int8

const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityMedium  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
	PriorityDefault Priority = PriorityMedium
)

// Valid checks if the priority is within the allowed range (0-100).
func (p Priority) Valid() bool {
	return p >= PriorityMin && p <= PriorityMax
}

// Entry represents a durable queue record: the envelope to deliver plus the
// scheduling and claim/lease bookkeeping the worker pool needs to deliver it
// at-least-once. Name is the handler routing key; Processor pins it to the
// queue name so one handler serves every envelope on that queue, while a
// bare Worker/Enqueuer pairing can leave it at the envelope's own Name to
// multiplex several payload types over a single queue.
type Entry struct {
	ID          uuid.UUID        `json:"id"`
	Queue       string           `json:"queue"`
	Name        string           `json:"name"`
	Message     message.Envelope `json:"message"`
	Status      Status           `json:"status"`
	Priority    Priority         `json:"priority"`
	RetryCount  int8             `json:"retry_count"`
	MaxRetries  int8             `json:"max_retries"`
	ScheduledAt time.Time        `json:"scheduled_at"`
	LockedUntil *time.Time       `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID       `json:"locked_by,omitempty"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
	Error       *string          `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// DeadLetterEntry represents an entry in the dead letter queue.
// Stores failed entries that exhausted all retries for manual inspection and recovery
type DeadLetterEntry struct {
	ID         uuid.UUID        `json:"id"`
	EntryID    uuid.UUID        `json:"entry_id"`
	Queue      string           `json:"queue"`
	Name       string           `json:"name"`
	Message    message.Envelope `json:"message"`
	Priority   Priority         `json:"priority"`
	Error      string           `json:"error"`
	RetryCount int8             `json:"retry_count"`
	FailedAt   time.Time        `json:"failed_at"`
	CreatedAt  time.Time        `json:"created_at"`
}
