package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/foundation/core/logger"
	"github.com/dmitrymomot/foundation/core/message"
	"github.com/dmitrymomot/foundation/core/pipeline"
	"github.com/dmitrymomot/foundation/core/registry"
)

const (
	// DefaultQueueCapacity is the bounded submission queue size the spec
	// requires for the command dispatcher's single worker slot.
	DefaultQueueCapacity = 100

	// DefaultShutdownTimeout bounds how long Stop waits for the queue to drain.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultStaleThreshold is the time after which Healthcheck reports staleness.
	DefaultStaleThreshold = 5 * time.Minute
)

type job struct {
	ctx    context.Context
	env    message.Envelope
	resp   any
	result chan error
}

type respSlotKey struct{}

// Dispatcher is the command dispatcher (spec §4.2): an at-most-one-handler
// registry backing a single persistent worker that drains a bounded FIFO
// queue. Processing concurrency is exactly 1 regardless of how many
// goroutines call Send concurrently, and Send blocks the caller until the
// handler has run, giving every submission a caller-visible promise.
type Dispatcher struct {
	registry *registry.Registry[Handler]
	fallback Handler
	stage    pipeline.Stage

	jobs            chan job
	shutdownTimeout time.Duration
	staleThreshold  time.Duration
	logger          *slog.Logger

	running      atomic.Bool
	shuttingDown atomic.Bool
	doneCh       chan struct{}

	commandsProcessed atomic.Int64
	commandsFailed    atomic.Int64
	activeCommands    atomic.Int32
	lastActivityAt    atomic.Int64
}

// DispatcherStats reports dispatcher observability counters.
type DispatcherStats struct {
	CommandsProcessed int64
	CommandsFailed    int64
	ActiveCommands    int32
	QueueDepth        int
	IsRunning         bool
	LastActivityAt    time.Time
}

// NewDispatcher creates a command dispatcher. Handlers are registered via
// WithHandler and frozen once Start is called.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:        registry.New[Handler](),
		shutdownTimeout: DefaultShutdownTimeout,
		staleThreshold:  DefaultStaleThreshold,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	capacity := DefaultQueueCapacity
	var decorators []pipeline.Decorator
	for _, opt := range opts {
		opt(d, &capacity, &decorators)
	}

	d.jobs = make(chan job, capacity)
	d.stage = pipeline.Compose(d.terminal, decorators...)

	return d
}

// DispatcherOption configures a Dispatcher at construction time.
type DispatcherOption func(d *Dispatcher, capacity *int, decorators *[]pipeline.Decorator)

// WithHandler registers h for its Name(). Panics if a handler is already
// registered for that name, matching the teacher's startup-time
// duplicate-registration convention.
func WithHandler(h Handler) DispatcherOption {
	return func(d *Dispatcher, _ *int, _ *[]pipeline.Decorator) {
		d.registry.RegisterExclusive(h.Name(), h)
	}
}

// WithFallbackHandler registers a handler invoked when no exact match exists.
func WithFallbackHandler(h Handler) DispatcherOption {
	return func(d *Dispatcher, _ *int, _ *[]pipeline.Decorator) { d.fallback = h }
}

// WithQueueCapacity overrides the default bounded queue size of 100.
func WithQueueCapacity(n int) DispatcherOption {
	return func(d *Dispatcher, capacity *int, _ *[]pipeline.Decorator) { *capacity = n }
}

// WithDecorators wraps every dispatch in the given pipeline decorators,
// applied first-registered-outermost per core/pipeline's composition rule.
func WithDecorators(decorators ...pipeline.Decorator) DispatcherOption {
	return func(_ *Dispatcher, _ *int, existing *[]pipeline.Decorator) {
		*existing = append(*existing, decorators...)
	}
}

// WithDispatcherLogger sets the dispatcher's structured logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher, _ *int, _ *[]pipeline.Decorator) { d.logger = l }
}

// WithShutdownTimeout overrides how long Stop waits for the queue to drain.
func WithShutdownTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher, _ *int, _ *[]pipeline.Decorator) { d.shutdownTimeout = timeout }
}

// WithStaleThreshold overrides the inactivity window Healthcheck tolerates.
func WithStaleThreshold(threshold time.Duration) DispatcherOption {
	return func(d *Dispatcher, _ *int, _ *[]pipeline.Decorator) { d.staleThreshold = threshold }
}

// send enqueues payload and blocks until the single worker has run its
// handler, returning the handler's boxed response.
func (d *Dispatcher) send(ctx context.Context, payload any, opts ...message.Option) (any, error) {
	if d.shuttingDown.Load() {
		return nil, ErrShutdownInProgress
	}

	env := New(payload, opts...)
	j := job{ctx: ctx, env: env, result: make(chan error, 1)}

	select {
	case d.jobs <- j:
	case <-ctx.Done():
		if len(d.jobs) == cap(d.jobs) {
			return nil, fmt.Errorf("%w: %w", ErrQueueFull, ctx.Err())
		}
		return nil, ctx.Err()
	}

	select {
	case err := <-j.result:
		return j.resp, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send enqueues payload for processing and blocks until the single worker has
// run its handler (or ctx is cancelled first, in which case the command may
// still execute after Send returns). Enqueueing itself blocks when the
// bounded queue is full, providing backpressure to callers. Any response the
// handler returns is discarded; use the generic Send[R] to receive it.
func (d *Dispatcher) Send(ctx context.Context, payload any, opts ...message.Option) error {
	_, err := d.send(ctx, payload, opts...)
	return err
}

// Send dispatches payload to its handler and unboxes the response as R.
//
// Example:
//
//	id, err := command.Send[UserID](ctx, dispatcher, CreateUser{Email: "a@b.com"})
func Send[R any](ctx context.Context, d *Dispatcher, payload any, opts ...message.Option) (R, error) {
	var zero R
	resp, err := d.send(ctx, payload, opts...)
	if err != nil {
		return zero, err
	}
	if resp == nil {
		return zero, nil
	}
	typed, ok := resp.(R)
	if !ok {
		return zero, fmt.Errorf("command response type mismatch: expected %T, got %T", zero, resp)
	}
	return typed, nil
}

// Start runs the single worker loop, draining the queue strictly in FIFO
// order until Stop closes it. This is a blocking call; use Run for
// errgroup-style supervision.
func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrDispatcherAlreadyStarted
	}
	defer d.running.Store(false)
	d.registry.Freeze()

	d.doneCh = make(chan struct{})
	defer close(d.doneCh)

	d.logger.InfoContext(ctx, "command dispatcher started",
		logger.Count("handlers", d.registry.Len()))

	for j := range d.jobs {
		d.processJob(ctx, j)
	}

	d.logger.InfoContext(ctx, "command dispatcher shutdown complete")
	return nil
}

// Stop closes the submission queue and blocks until every already-enqueued
// command has been processed, or shutdownTimeout elapses.
func (d *Dispatcher) Stop() error {
	if !d.running.Load() {
		return ErrDispatcherNotStarted
	}
	if !d.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	close(d.jobs)
	d.logger.Info("command dispatcher stopping, draining queue",
		logger.Duration(d.shutdownTimeout))

	select {
	case <-d.doneCh:
		return nil
	case <-time.After(d.shutdownTimeout):
		return fmt.Errorf("shutdown timeout exceeded after %s", d.shutdownTimeout)
	}
}

// Run adapts the dispatcher to errgroup.Group: it starts the dispatcher and,
// on ctx cancellation, triggers a graceful Stop before returning.
func (d *Dispatcher) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- d.Start(ctx) }()

		select {
		case <-ctx.Done():
			if err := d.Stop(); err != nil {
				d.logger.Error("graceful shutdown failed", logger.Error(err))
			}
			<-errCh
			return nil
		case err := <-errCh:
			return err
		}
	}
}

func (d *Dispatcher) processJob(ctx context.Context, j job) {
	d.activeCommands.Store(1)
	defer d.activeCommands.Store(0)

	jobCtx := WithStartProcessingTime(WithEnvelopeMeta(ctx, j.env), time.Now())
	pctx := message.NewProcessingContext("command")

	result := d.safeProcess(jobCtx, &j, pctx)
	d.lastActivityAt.Store(time.Now().UnixNano())

	if result.IsSuccess() {
		d.commandsProcessed.Add(1)
	} else {
		d.commandsFailed.Add(1)
	}

	j.result <- result.Err()
}

func (d *Dispatcher) safeProcess(ctx context.Context, j *job, pctx message.ProcessingContext) (result message.ProcessingResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "command handler panicked",
				logger.Action(j.env.Name), slog.Any("panic", r))
			result = message.Failed(fmt.Errorf("command handler panicked: %v", r))
		}
	}()
	ctx = context.WithValue(ctx, respSlotKey{}, j)
	return d.stage(ctx, j.env, pctx)
}

func (d *Dispatcher) terminal(ctx context.Context, env message.Envelope, _ message.ProcessingContext) message.ProcessingResult {
	handler, err := d.registry.Resolve(env.Name)
	if err != nil {
		if d.fallback == nil {
			return message.Failed(ErrHandlerNotFound)
		}
		handler = d.fallback
	}
	resp, err := handler.Handle(ctx, env.Payload)
	if err != nil {
		return message.Failed(err)
	}
	if j, ok := ctx.Value(respSlotKey{}).(*job); ok {
		j.resp = resp
	}
	return message.Successful()
}

// Stats returns current dispatcher statistics for observability.
func (d *Dispatcher) Stats() DispatcherStats {
	lastActivity := d.lastActivityAt.Load()
	var lastActivityTime time.Time
	if lastActivity > 0 {
		lastActivityTime = time.Unix(0, lastActivity)
	}

	return DispatcherStats{
		CommandsProcessed: d.commandsProcessed.Load(),
		CommandsFailed:    d.commandsFailed.Load(),
		ActiveCommands:    d.activeCommands.Load(),
		QueueDepth:        len(d.jobs),
		IsRunning:         d.running.Load(),
		LastActivityAt:    lastActivityTime,
	}
}

// Healthcheck reports whether the dispatcher is running and has processed
// activity within staleThreshold.
func (d *Dispatcher) Healthcheck(context.Context) error {
	stats := d.Stats()
	if !stats.IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrDispatcherNotStarted)
	}
	if !stats.LastActivityAt.IsZero() {
		if since := time.Since(stats.LastActivityAt); since > d.staleThreshold {
			return fmt.Errorf("%w: %w: last activity %s ago (threshold %s)",
				ErrHealthcheckFailed, ErrDispatcherStale, since.Round(time.Second), d.staleThreshold)
		}
	}
	return nil
}
