package event

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/foundation/core/logger"
	"github.com/dmitrymomot/foundation/core/message"
	"github.com/dmitrymomot/foundation/core/registry"
)

const (
	// DefaultQueueCapacity is the bounded envelope queue size the spec
	// requires for the event bus (§4.4: "bounded queue of 1000 envelopes").
	DefaultQueueCapacity = 1000

	// DefaultMaxRetries is the per-handler retry ceiling used when no
	// explicit ErrorHandler is configured.
	DefaultMaxRetries = 3

	// DefaultShutdownTimeout bounds how long Stop waits for in-flight
	// envelopes to drain.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultStaleThreshold is the time after which Healthcheck reports
	// staleness, evaluated only once at least one handler invocation has run.
	DefaultStaleThreshold = 5 * time.Minute
)

// envelopeJob is one {event, handler, cancellation} unit the spec's §4.4
// describes: one per subscriber of the published event's type.
type envelopeJob struct {
	ctx     context.Context
	env     message.Envelope
	handler Handler
}

// Bus is the event bus (spec §4.4): a parallel worker pool, maximum
// concurrency equal to the number of cores, draining a bounded queue of
// envelopes. Each subscriber of a published event's type is enqueued as an
// independent envelope; one failing handler never prevents siblings from
// running.
type Bus struct {
	registry     *registry.Registry[Handler]
	workers      int
	errorHandler ErrorHandler
	dlq          DeadLetterSink
	maxRetries   int
	backoffBase  time.Duration

	jobs            chan envelopeJob
	shutdownTimeout time.Duration
	staleThreshold  time.Duration
	logger          *slog.Logger

	running      atomic.Bool
	shuttingDown atomic.Bool
	wg           sync.WaitGroup
	cancelWorker context.CancelFunc

	published      atomic.Int64
	failed         atomic.Int64
	escalated      atomic.Int64
	deadLettered   atomic.Int64
	activeHandlers atomic.Int32
	lastActivityAt atomic.Int64
}

// Stats reports bus observability counters.
type Stats struct {
	Published      int64
	Failed         int64
	Escalated      int64
	DeadLettered   int64
	ActiveHandlers int32
	QueueDepth     int
	IsRunning      bool
	LastActivityAt time.Time
}

// NewBus creates an event bus. Handlers are registered via WithHandler and
// frozen once Start is called.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		registry:        registry.New[Handler](),
		workers:         runtime.NumCPU(),
		maxRetries:      DefaultMaxRetries,
		backoffBase:     time.Second,
		shutdownTimeout: DefaultShutdownTimeout,
		staleThreshold:  DefaultStaleThreshold,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	capacity := DefaultQueueCapacity
	for _, opt := range opts {
		opt(b, &capacity)
	}

	b.jobs = make(chan envelopeJob, capacity)
	return b
}

// Option configures a Bus at construction time.
type Option func(b *Bus, capacity *int)

// WithHandler registers h to receive every event named h.Name(). Multiple
// handlers may be registered for the same name; all are invoked on publish.
func WithHandler(h Handler) Option {
	return func(b *Bus, _ *int) { b.registry.Register(h.Name(), h) }
}

// WithWorkers overrides the default worker pool size (runtime.NumCPU()).
func WithWorkers(n int) Option {
	return func(b *Bus, _ *int) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithQueueCapacity overrides the default bounded queue size of 1000.
func WithQueueCapacity(n int) Option {
	return func(b *Bus, capacity *int) { *capacity = n }
}

// WithErrorHandler installs an external error handler consulted on every
// handler failure; its Decision controls retry/dead-letter/discard/escalate.
// Without one, the bus retries internally with exponential backoff
// (2^attempt seconds) up to maxRetries.
func WithErrorHandler(h ErrorHandler) Option {
	return func(b *Bus, _ *int) { b.errorHandler = h }
}

// WithDeadLetterSink installs the sink SendToDeadLetter dispositions forward to.
func WithDeadLetterSink(sink DeadLetterSink) Option {
	return func(b *Bus, _ *int) { b.dlq = sink }
}

// WithMaxRetries overrides the default of 3 retries used by both the
// internal backoff path and as the ceiling an ErrorHandler's Retry decision
// cannot exceed.
func WithMaxRetries(n int) Option {
	return func(b *Bus, _ *int) { b.maxRetries = n }
}

// WithBusLogger sets the bus's structured logger.
func WithBusLogger(l *slog.Logger) Option {
	return func(b *Bus, _ *int) { b.logger = l }
}

// WithShutdownTimeout overrides how long Stop waits for in-flight handlers.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(b *Bus, _ *int) { b.shutdownTimeout = timeout }
}

// WithStaleThreshold overrides the inactivity window Healthcheck tolerates.
func WithStaleThreshold(threshold time.Duration) Option {
	return func(b *Bus, _ *int) { b.staleThreshold = threshold }
}

// Publish enqueues one envelope per subscriber of payload's type and returns
// once all have been enqueued (or ctx is cancelled during enqueue). It never
// fails due to a handler's eventual outcome: publish completes once
// envelopes have been accepted onto the queue, per spec §7.
func (b *Bus) Publish(ctx context.Context, payload any, opts ...message.Option) error {
	if b.shuttingDown.Load() {
		return ErrShutdownInProgress
	}

	env := New(payload, opts...)
	handlers := b.registry.ResolveAll(env.Name)

	for _, h := range handlers {
		select {
		case b.jobs <- envelopeJob{ctx: ctx, env: env, handler: h}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.published.Add(1)
	return nil
}

// Start launches the worker pool and blocks until Stop is called (or ctx is
// cancelled). Use Run for errgroup-style supervision.
func (b *Bus) Start(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrBusAlreadyStarted
	}
	defer b.running.Store(false)
	b.registry.Freeze()

	workerCtx, cancel := context.WithCancel(ctx)
	b.cancelWorker = cancel

	b.logger.InfoContext(ctx, "event bus started",
		logger.Count("workers", b.workers))

	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.runWorker(workerCtx)
	}

	<-workerCtx.Done()
	b.logger.InfoContext(ctx, "event bus shutdown complete")
	return ctx.Err()
}

func (b *Bus) runWorker(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-b.jobs:
			if !ok {
				return
			}
			b.processJob(job)
		}
	}
}

// Stop signals shutdown by cancelling the worker pool and waits for in-flight
// handler invocations to finish, or shutdownTimeout elapses. Jobs still
// queued when the workers are cancelled may be left unrun.
func (b *Bus) Stop() error {
	if !b.running.Load() {
		return ErrBusNotStarted
	}
	if !b.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	if b.cancelWorker != nil {
		b.cancelWorker()
	}

	done := make(chan struct{})
	go func() { b.wg.Wait(); close(done) }()

	select {
	case <-done:
		return nil
	case <-time.After(b.shutdownTimeout):
		return fmt.Errorf("shutdown timeout exceeded after %s", b.shutdownTimeout)
	}
}

// Run adapts the bus to errgroup.Group: it starts the bus and, on ctx
// cancellation, triggers a graceful Stop before returning.
func (b *Bus) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- b.Start(ctx) }()

		select {
		case <-ctx.Done():
			if err := b.Stop(); err != nil {
				b.logger.Error("graceful shutdown failed", logger.Error(err))
			}
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// processJob runs the per-handler retry loop described in spec §4.4: the
// first attempt plus up to maxRetries retries, consulting errorHandler (if
// configured) after each failure, else falling back to internal exponential
// backoff.
func (b *Bus) processJob(job envelopeJob) {
	b.activeHandlers.Add(1)
	defer b.activeHandlers.Add(-1)

	first := time.Now()
	attempt := 0

	for {
		err := b.safeInvoke(job)
		b.lastActivityAt.Store(time.Now().UnixNano())
		if err == nil {
			return
		}

		ec := ErrorContext{
			RetryCount:       attempt,
			MaxRetries:       b.maxRetries,
			Component:        "EventBus",
			FirstFailureTime: first,
			LastFailureTime:  time.Now(),
			Metadata: map[string]any{
				"event_type":   job.env.Name,
				"handler_type": job.handler.Name(),
			},
		}

		var decision Decision
		if b.errorHandler != nil {
			decision = b.errorHandler(err, ec)
		} else {
			if attempt >= b.maxRetries {
				decision = b.fallbackDisposition(err)
			} else {
				decision = RetryAfter(backoffDelay(b.backoffBase, attempt))
			}
		}

		switch decision.kind {
		case decisionRetry:
			if attempt >= b.maxRetries {
				b.failed.Add(1)
				b.logger.ErrorContext(job.ctx, "event handler exhausted retries",
					logger.Action(job.env.Name), logger.Error(err))
				return
			}
			if sleepErr := sleepCtx(job.ctx, decision.delay); sleepErr != nil {
				b.failed.Add(1)
				return
			}
			attempt++
			continue
		case decisionDeadLetter:
			b.deadLettered.Add(1)
			if b.dlq != nil {
				_ = b.dlq.Send(job.ctx, job.env, decision.reason)
			}
			return
		case decisionDiscard:
			b.failed.Add(1)
			return
		case decisionEscalate:
			b.escalated.Add(1)
			b.logger.ErrorContext(job.ctx, "event handler escalated",
				logger.Action(job.env.Name), logger.Error(err))
			return
		}
	}
}

// fallbackDisposition is used once maxRetries is exhausted and no
// ErrorHandler is configured: the spec gives up silently past the ceiling,
// which this module records as a failed-count increment.
func (b *Bus) fallbackDisposition(err error) Decision {
	return Discard("retries exhausted: " + err.Error())
}

func (b *Bus) safeInvoke(job envelopeJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	if eh, ok := job.handler.(EnvelopeHandler); ok {
		return eh.HandleEnvelope(job.ctx, job.env)
	}
	return job.handler.Handle(job.ctx, job.env.Payload)
}

// backoffDelay computes the internal fallback delay (2^attempt seconds),
// used only when no external ErrorHandler is configured.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return time.Duration(float64(base) * math.Pow(2, float64(attempt)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stats returns current bus statistics for observability.
func (b *Bus) Stats() Stats {
	lastActivity := b.lastActivityAt.Load()
	var lastActivityTime time.Time
	if lastActivity > 0 {
		lastActivityTime = time.Unix(0, lastActivity)
	}

	return Stats{
		Published:      b.published.Load(),
		Failed:         b.failed.Load(),
		Escalated:      b.escalated.Load(),
		DeadLettered:   b.deadLettered.Load(),
		ActiveHandlers: b.activeHandlers.Load(),
		QueueDepth:     len(b.jobs),
		IsRunning:      b.running.Load(),
		LastActivityAt: lastActivityTime,
	}
}

// Healthcheck reports whether the bus is running and has processed activity
// within staleThreshold (once any handler invocation has run).
func (b *Bus) Healthcheck(context.Context) error {
	stats := b.Stats()
	if !stats.IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrBusNotStarted)
	}
	if !stats.LastActivityAt.IsZero() {
		if since := time.Since(stats.LastActivityAt); since > b.staleThreshold {
			return fmt.Errorf("%w: %w: last activity %s ago (threshold %s)",
				ErrHealthcheckFailed, ErrBusStale, since.Round(time.Second), b.staleThreshold)
		}
	}
	return nil
}
