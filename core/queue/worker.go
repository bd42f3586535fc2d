package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerRepository defines the interface for worker operations
type WorkerRepository interface {
	// ClaimEntry atomically claims the next available entry
	ClaimEntry(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Entry, error)

	// CompleteEntry marks entry as completed
	CompleteEntry(ctx context.Context, entryID uuid.UUID) error

	// FailEntry marks entry as failed and increments retry count
	FailEntry(ctx context.Context, entryID uuid.UUID, errorMsg string) error

	// MoveToDeadLetter moves entry to the dead letter queue
	MoveToDeadLetter(ctx context.Context, entryID uuid.UUID) error

	// ExtendLock extends the lock timeout for long-running entries (optional)
	ExtendLock(ctx context.Context, entryID uuid.UUID, duration time.Duration) error
}

// Worker processes entries from the queue
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex

	// Configuration
	pullInterval    time.Duration
	lockTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// State management
	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool

	// Observability metrics
	entriesProcessed atomic.Int64
	entriesFailed    atomic.Int64
	activeEntries    atomic.Int32
}

// WorkerStats provides observability metrics for monitoring and debugging
type WorkerStats struct {
	EntriesProcessed int64 // Total number of successfully completed entries
	EntriesFailed    int64 // Total number of failed entries (including those moved to the dead letter queue)
	ActiveEntries    int32 // Number of entries currently being processed
	IsRunning        bool  // Whether the worker is currently running
}

// NewWorker creates a new queue worker
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	// Default options
	options := &workerOptions{
		queues:             []string{DefaultQueueName},
		pullInterval:       5 * time.Second,
		lockTimeout:        5 * time.Minute,
		shutdownTimeout:    30 * time.Second,
		maxConcurrentTasks: 1,
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}

	// Apply options
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:            repo,
		handlers:        make(map[string]Handler),
		queues:          options.queues,
		workerID:        uuid.New(),
		sem:             make(chan struct{}, options.maxConcurrentTasks),
		pullInterval:    options.pullInterval,
		lockTimeout:     options.lockTimeout,
		shutdownTimeout: options.shutdownTimeout,
		logger:          options.logger,
	}, nil
}

// NewWorkerFromConfig creates a Worker from configuration.
// Repository must be provided. Additional options can override config values.
func NewWorkerFromConfig(cfg Config, repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	// Combine config options with user-provided options (user options override)
	// Option functions handle zero/empty values appropriately
	allOpts := append([]WorkerOption{
		WithPullInterval(cfg.PollInterval),
		WithLockTimeout(cfg.LockTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
		WithMaxConcurrentTasks(cfg.MaxConcurrentTasks),
		WithQueues(cfg.Queues...),
	}, opts...)

	return NewWorker(repo, allOpts...)
}

// RegisterHandler registers a single entry handler.
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers multiple entry handlers.
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing entries. This is a blocking operation that runs until
// the context is cancelled. Use Run() for errgroup pattern or call this in a goroutine.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}

	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	// Reset stopping flag
	w.stopping.Store(false)

	w.logger.InfoContext(w.ctx, "worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)))

	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.InfoContext(context.Background(), "worker stopping")
			return w.ctx.Err()
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				// Mutex protects against shutdown race: Must verify worker is still running
				// AND add to waitgroup atomically, otherwise Stop() might wait on incomplete count
				w.mu.RLock()
				if w.cancel == nil {
					w.mu.RUnlock()
					<-w.sem
					return nil
				}
				w.wg.Add(1)
				w.mu.RUnlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if err := w.pullAndProcess(); err != nil {
						if err != ErrHandlerNotFound {
							w.logger.ErrorContext(w.ctx, "failed to process entry",
								slog.String("worker_id", w.workerID.String()),
								slog.String("error", err.Error()))
						}
					}
				}()
			default:
				w.logger.DebugContext(w.ctx, "all worker slots busy, skipping tick",
					slog.String("worker_id", w.workerID.String()))
			}
		}
	}
}

// Stop gracefully shuts down the worker with a timeout.
// Returns an error if the shutdown timeout is exceeded.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}

	w.stopping.Store(true)
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.InfoContext(context.Background(), "worker stopping, waiting for active entries to complete",
		slog.String("worker_id", w.workerID.String()),
		slog.Duration("timeout", w.shutdownTimeout))

	ctx, ctxCancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.InfoContext(context.Background(), "worker stopped cleanly",
			slog.String("worker_id", w.workerID.String()))
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(context.Background(), "worker shutdown timeout exceeded - some entries may be abandoned",
			slog.String("worker_id", w.workerID.String()),
			slog.Duration("timeout", w.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", w.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that starts the worker, monitors context cancellation,
// and performs graceful shutdown when the context is cancelled.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- w.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			// Context cancelled - perform graceful shutdown
			_ = w.Stop() // Ignore stop error in normal shutdown
			<-errCh      // Wait for Start() to exit
			return nil
		case err := <-errCh:
			// Start() returned - check if it's a normal shutdown
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// pullAndProcess pulls an entry and processes it.
func (w *Worker) pullAndProcess() error {
	entry, err := w.repo.ClaimEntry(w.ctx, w.workerID, w.queues, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) {
			return nil
		}
		return fmt.Errorf("failed to claim entry: %w", err)
	}

	if entry == nil {
		return nil
	}

	w.logger.DebugContext(w.ctx, "claimed entry",
		slog.String("worker_id", w.workerID.String()),
		slog.String("entry_id", entry.ID.String()),
		slog.String("name", entry.Name),
		slog.String("queue", entry.Queue))

	return w.processEntry(entry)
}

// processEntry executes an entry with its handler.
func (w *Worker) processEntry(entry *Entry) (retErr error) {
	start := time.Now()

	w.activeEntries.Add(1)
	defer w.activeEntries.Add(-1)

	// Panic recovery ensures system stability
	// Strategy: Treat panics as entry failures with retry eligibility
	// This prevents a single bad handler from crashing the entire worker
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.ErrorContext(w.ctx, "handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("entry_id", entry.ID.String()),
				slog.String("name", entry.Name),
				slog.Any("panic", r))
			duration := time.Since(start)
			_ = w.handleEntryFailure(entry, retErr, duration)
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[entry.Name]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(entry)
	}

	// Isolation strategy: Create independent context for entry execution
	// Rationale: Worker shutdown should not interrupt running entries
	// Entries get the full lockTimeout to complete even during graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	err := handler.Handle(ctx, entry.Message)
	duration := time.Since(start)

	if err != nil {
		return w.handleEntryFailure(entry, err, duration)
	}

	return w.handleEntrySuccess(entry, duration)
}

// handleMissingHandler processes entries that have no registered handler
// Immediately moves entries to the dead letter queue since retries won't
// help without a handler
//
// Why direct to the dead letter queue: entries without handlers will fail
// on every retry attempt, wasting resources. Moving them directly allows
// operators to:
// 1. Deploy the missing handler code
// 2. Manually requeue entries once the handler is available
// 3. Investigate why entries were enqueued without corresponding handlers
func (w *Worker) handleMissingHandler(entry *Entry) error {
	w.entriesFailed.Add(1)

	w.logger.ErrorContext(w.ctx, "no handler registered for entry name",
		slog.String("worker_id", w.workerID.String()),
		slog.String("entry_id", entry.ID.String()),
		slog.String("name", entry.Name))

	errorMsg := "no handler registered for entry name: " + entry.Name
	if err := w.repo.FailEntry(w.ctx, entry.ID, errorMsg); err != nil {
		return fmt.Errorf("failed to mark entry %s as failed: %w", entry.ID, err)
	}

	if err := w.repo.MoveToDeadLetter(w.ctx, entry.ID); err != nil {
		return fmt.Errorf("failed to move entry %s to the dead letter queue: %w", entry.ID, err)
	}

	return ErrHandlerNotFound
}

// handleEntryFailure processes failed entry execution
//
// Retry decision logic:
// 1. Always calls FailEntry first to record the error and increment retry count
// 2. Checks if the entry has exhausted all retries (the RetryCount FailEntry
//    recorded, one above the claimed copy's, >= MaxRetries)
// 3. If retries remain: FailEntry already reset the entry to pending with backoff
// 4. If no retries remain: move to the dead letter queue for manual inspection
func (w *Worker) handleEntryFailure(entry *Entry, execErr error, duration time.Duration) error {
	w.entriesFailed.Add(1)

	w.logger.ErrorContext(w.ctx, "entry failed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("entry_id", entry.ID.String()),
		slog.String("name", entry.Name),
		slog.Int("retry_count", int(entry.RetryCount)),
		slog.Int("max_retries", int(entry.MaxRetries)),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	if err := w.repo.FailEntry(w.ctx, entry.ID, execErr.Error()); err != nil {
		return fmt.Errorf("failed to update entry %s status to failed: %w", entry.ID, err)
	}

	if entry.RetryCount+1 >= entry.MaxRetries {
		if err := w.repo.MoveToDeadLetter(w.ctx, entry.ID); err != nil {
			return fmt.Errorf("failed to move entry %s to the dead letter queue after max retries: %w", entry.ID, err)
		}

		w.logger.WarnContext(w.ctx, "entry moved to dead letter queue",
			slog.String("worker_id", w.workerID.String()),
			slog.String("entry_id", entry.ID.String()),
			slog.String("name", entry.Name))

		return nil
	}

	return nil
}

// handleEntrySuccess processes successful entry completion.
func (w *Worker) handleEntrySuccess(entry *Entry, duration time.Duration) error {
	if err := w.repo.CompleteEntry(w.ctx, entry.ID); err != nil {
		return fmt.Errorf("failed to mark entry %s as completed: %w", entry.ID, err)
	}

	w.entriesProcessed.Add(1)

	w.logger.InfoContext(w.ctx, "entry completed successfully",
		slog.String("worker_id", w.workerID.String()),
		slog.String("entry_id", entry.ID.String()),
		slog.String("name", entry.Name),
		slog.String("queue", entry.Queue),
		slog.Duration("duration", duration))

	return nil
}

// ExtendLockForEntry extends the lock timeout for a long-running entry.
// Call this periodically for entries that take longer than lockTimeout.
func (w *Worker) ExtendLockForEntry(ctx context.Context, entryID uuid.UUID, extension time.Duration) error {
	return w.repo.ExtendLock(ctx, entryID, extension)
}

// WorkerInfo returns identifying information about the worker instance.
func (w *Worker) WorkerInfo() (id string, hostname string, pid int) {
	hostname, _ = os.Hostname()
	return w.workerID.String(), hostname, os.Getpid()
}

// HandlerCount returns the number of registered handlers.
// This method is thread-safe and can be called at any time.
func (w *Worker) HandlerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.handlers)
}

// HasHandlers returns true if the worker has registered handlers.
// This method is thread-safe and can be called at any time.
func (w *Worker) HasHandlers() bool {
	return w.HandlerCount() > 0
}

// Queues returns the list of queues this worker processes.
// If no queues are configured, returns the default queue.
// This method is thread-safe and can be called at any time.
func (w *Worker) Queues() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.queues) == 0 {
		return []string{DefaultQueueName}
	}

	// Return a copy to prevent external modification
	result := make([]string, len(w.queues))
	copy(result, w.queues)
	return result
}

// Stats returns current worker statistics for observability and monitoring.
// This method is thread-safe and can be called at any time.
func (w *Worker) Stats() WorkerStats {
	w.mu.RLock()
	isRunning := w.cancel != nil
	w.mu.RUnlock()

	return WorkerStats{
		EntriesProcessed: w.entriesProcessed.Load(),
		EntriesFailed:    w.entriesFailed.Load(),
		ActiveEntries:    w.activeEntries.Load(),
		IsRunning:        isRunning,
	}
}

// Healthcheck validates that the worker is operational and not overloaded.
// Returns nil if healthy, or an error describing the health issue.
// This method is thread-safe and suitable for use in health check endpoints.
//
// Health criteria:
//   - Worker must be running
//   - Active entries must stay below capacity (semaphore slots)
//
// The returned error can be checked using errors.Is:
//
//	if errors.Is(err, queue.ErrWorkerNotRunning) { ... }
//	if errors.Is(err, queue.ErrWorkerOverloaded) { ... }
func (w *Worker) Healthcheck(ctx context.Context) error {
	stats := w.Stats()

	if !stats.IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrWorkerNotRunning)
	}

	// Check if worker is overloaded (all semaphore slots busy)
	maxConcurrent := int32(cap(w.sem))
	if stats.ActiveEntries >= maxConcurrent {
		return errors.Join(ErrHealthcheckFailed, ErrWorkerOverloaded,
			fmt.Errorf("%d/%d slots busy", stats.ActiveEntries, maxConcurrent))
	}

	return nil
}
