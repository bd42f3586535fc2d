package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/foundation/core/message"
)

// EnqueuerRepository defines the interface for entry creation.
type EnqueuerRepository interface {
	CreateEntry(ctx context.Context, entry *Entry) error
}

// Enqueuer handles envelope enqueueing with configurable defaults.
type Enqueuer struct {
	repo            EnqueuerRepository
	defaultQueue    string
	defaultPriority Priority
}

// NewEnqueuer creates a new Enqueuer with the given repository and options.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{
		defaultQueue:    DefaultQueueName,
		defaultPriority: PriorityDefault,
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		repo:            repo,
		defaultQueue:    options.defaultQueue,
		defaultPriority: options.defaultPriority,
	}, nil
}

// NewEnqueuerFromConfig creates an Enqueuer from configuration.
// Repository must be provided. Additional options can override config values.
func NewEnqueuerFromConfig(cfg Config, repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	// Combine config options with user-provided options (user options override)
	// Option functions handle zero/empty values appropriately
	allOpts := append([]EnqueuerOption{
		WithDefaultQueue(cfg.DefaultQueue),
		WithDefaultPriority(cfg.DefaultPriority),
	}, opts...)

	return NewEnqueuer(repo, allOpts...)
}

// Enqueue persists env onto the queue, carrying the envelope itself (not
// just its payload) so a worker dequeuing it retains message_id,
// correlation_id and causation_id. By default the entry's handler routing
// name is env.Name; WithName overrides it, which is how Processor pins
// every envelope on a queue to a single handler regardless of message type.
func (e *Enqueuer) Enqueue(ctx context.Context, env message.Envelope, opts ...EnqueueOption) error {
	options := &enqueueOptions{
		queue:      e.defaultQueue,
		priority:   e.defaultPriority,
		maxRetries: 3,
		name:       env.Name,
	}

	for _, opt := range opts {
		opt(options)
	}

	if !options.priority.Valid() {
		return ErrInvalidPriority
	}

	entry := e.buildEntry(env, options)

	if err := e.repo.CreateEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to create entry %q in queue %q: %w", entry.Name, entry.Queue, err)
	}

	return nil
}

// buildEntry constructs an Entry from env and options.
func (e *Enqueuer) buildEntry(env message.Envelope, options *enqueueOptions) *Entry {
	scheduledAt := time.Now()
	if options.scheduledAt != nil {
		scheduledAt = *options.scheduledAt
	} else if options.delay > 0 {
		scheduledAt = scheduledAt.Add(options.delay)
	}

	return &Entry{
		ID:          uuid.New(),
		Queue:       options.queue,
		Name:        options.name,
		Message:     env,
		Status:      StatusPending,
		Priority:    options.priority,
		RetryCount:  0,
		MaxRetries:  options.maxRetries,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now(),
	}
}
