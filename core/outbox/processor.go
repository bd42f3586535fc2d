package outbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/foundation/core/logger"
	"github.com/dmitrymomot/foundation/core/message"
	"github.com/dmitrymomot/foundation/core/retry"
)

const (
	// DefaultBatchSize is the maximum Pending entries claimed per poll tick.
	DefaultBatchSize = 100

	// DefaultWorkerQueueCapacity bounds the in-memory hand-off from poller to
	// worker pool.
	DefaultWorkerQueueCapacity = 100

	// DefaultActivePollInterval is used after a tick that found work.
	DefaultActivePollInterval = 100 * time.Millisecond

	// DefaultIdlePollInterval is used after a tick that found no work.
	DefaultIdlePollInterval = time.Second

	// DefaultErrorPollInterval is used after an unexpected polling error.
	DefaultErrorPollInterval = 5 * time.Second

	// PriorityDirectThreshold is the Options.Priority value above which
	// publish_to_outbox additionally enqueues directly into the worker pool.
	PriorityDirectThreshold = 5

	// DefaultMaxBackoff caps the retry delay computed when Options.RetryDelay
	// is unset.
	DefaultMaxBackoff = 30 * time.Second
)

// DispatchFunc hands an internal-dispatch entry (empty Destination) to the
// application's command/event dispatcher in a freshly scoped context.
type DispatchFunc func(ctx context.Context, env message.Envelope) error

// TransportFunc hands an external-dispatch entry to the named destination.
type TransportFunc func(ctx context.Context, destination string, env message.Envelope) error

// Processor is the outbox processor (spec §4.6): a poller claiming Pending
// entries in batches and a bounded worker pool dispatching them, cooperating
// through the Storage boundary's exclusive-claim guarantee.
type Processor struct {
	storage   Storage
	dispatch  DispatchFunc
	transport TransportFunc

	workers   int
	batchSize int
	queueCap  int

	activeInterval time.Duration
	idleInterval   time.Duration
	errorInterval  time.Duration

	logger *slog.Logger

	jobs            chan Entry
	shutdownTimeout time.Duration

	running      atomic.Bool
	shuttingDown atomic.Bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	processed      atomic.Int64
	failed         atomic.Int64
	retried        atomic.Int64
	lastActivityAt atomic.Int64
}

// Stats reports processor observability counters.
type Stats struct {
	Processed      int64
	Failed         int64
	Retried        int64
	QueueDepth     int
	IsRunning      bool
	LastActivityAt time.Time
}

// NewProcessor creates an outbox processor backed by storage.
func NewProcessor(storage Storage, opts ...ProcessorOption) *Processor {
	p := &Processor{
		storage:         storage,
		workers:         runtime.NumCPU(),
		batchSize:       DefaultBatchSize,
		queueCap:        DefaultWorkerQueueCapacity,
		activeInterval:  DefaultActivePollInterval,
		idleInterval:    DefaultIdlePollInterval,
		errorInterval:   DefaultErrorPollInterval,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.jobs = make(chan Entry, p.queueCap)
	return p
}

// ProcessorOption configures a Processor at construction time.
type ProcessorOption func(*Processor)

// WithDispatchFunc installs the internal-dispatch branch used for entries
// with an empty Destination.
func WithDispatchFunc(fn DispatchFunc) ProcessorOption {
	return func(p *Processor) { p.dispatch = fn }
}

// WithTransportFunc installs the external-dispatch branch used for entries
// with a non-empty Destination.
func WithTransportFunc(fn TransportFunc) ProcessorOption {
	return func(p *Processor) { p.transport = fn }
}

// WithWorkerCount overrides the default worker pool size (runtime.NumCPU()).
func WithWorkerCount(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithBatchSize overrides the default 100-entry poll batch.
func WithBatchSize(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithProcessorLogger sets the processor's structured logger.
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProcessorShutdownTimeout overrides how long Stop waits for in-flight work.
func WithProcessorShutdownTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) { p.shutdownTimeout = d }
}

// PublishToOutbox persists env as a new entry and, when opts.Priority
// exceeds PriorityDirectThreshold, additionally enqueues it directly into
// the worker pool without waiting for the next poll tick (spec §4.6,
// "high-priority path"). Build env with command.New or event.New depending
// on which dispatcher should ultimately receive it.
func (p *Processor) PublishToOutbox(ctx context.Context, env message.Envelope, opts Options) (Entry, error) {
	entry, err := p.storage.Add(ctx, env, opts)
	if err != nil {
		return Entry{}, err
	}

	if opts.Priority > PriorityDirectThreshold {
		select {
		case p.jobs <- entry:
		default:
			// Worker pool is saturated; the entry remains Pending and the
			// next poll tick will pick it up.
		}
	}

	return entry, nil
}

// Start launches the poller and worker pool. Blocking; use Run for
// errgroup-style supervision.
func (p *Processor) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrProcessorAlreadyStarted
	}
	defer p.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.InfoContext(ctx, "outbox processor started", logger.Count("workers", p.workers))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx)
	}

	p.pollLoop(ctx)

	p.logger.InfoContext(ctx, "outbox processor poller stopped, draining worker pool")
	close(p.jobs)
	p.wg.Wait()
	return ctx.Err()
}

func (p *Processor) pollLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entries, err := p.storage.GetPending(ctx, p.batchSize)
		interval := p.idleInterval

		switch {
		case err != nil:
			p.logger.ErrorContext(ctx, "outbox poll failed", logger.Error(err))
			interval = p.errorInterval
		case len(entries) > 0:
			for _, e := range entries {
				select {
				case p.jobs <- e:
				case <-ctx.Done():
					return
				}
			}
			interval = p.activeInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (p *Processor) runWorker(ctx context.Context) {
	defer p.wg.Done()
	for e := range p.jobs {
		p.processEntry(ctx, e)
	}
}

func (p *Processor) processEntry(ctx context.Context, e Entry) {
	err := p.dispatchEntry(ctx, e)
	p.lastActivityAt.Store(time.Now().UnixNano())

	if err == nil {
		if markErr := p.storage.MarkProcessed(ctx, e.ID); markErr != nil {
			p.logger.ErrorContext(ctx, "failed to mark outbox entry processed", logger.Error(markErr))
		}
		p.processed.Add(1)
		return
	}

	maxRetries := e.Options.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	if e.RetryCount+1 >= maxRetries {
		if markErr := p.storage.MarkFailed(ctx, e.ID, err.Error()); markErr != nil {
			p.logger.ErrorContext(ctx, "failed to mark outbox entry failed", logger.Error(markErr))
		}
		p.failed.Add(1)
		return
	}

	delay := e.Options.RetryDelay
	if delay <= 0 {
		delay = retry.Backoff{Base: time.Second, MaxDelay: DefaultMaxBackoff, Jitter: 0.3}.Delay(e.RetryCount)
	}
	if updErr := p.storage.UpdateRetry(ctx, e.ID, e.RetryCount+1, time.Now().Add(delay)); updErr != nil {
		p.logger.ErrorContext(ctx, "failed to reschedule outbox entry", logger.Error(updErr))
	}
	p.retried.Add(1)
}

func (p *Processor) dispatchEntry(ctx context.Context, e Entry) error {
	if e.Options.Destination != "" {
		if p.transport == nil {
			return ErrTransportFuncNil
		}
		return p.transport(ctx, e.Options.Destination, e.Message)
	}

	if e.Message.Kind != message.KindCommand && e.Message.Kind != message.KindEvent {
		p.logger.WarnContext(ctx, "outbox entry is neither command nor event, acknowledging without dispatch",
			logger.Type(string(e.Message.Kind)), logger.Action(e.Message.Name))
		return nil
	}

	if p.dispatch == nil {
		return ErrDispatchFuncNil
	}
	return p.dispatch(ctx, e.Message)
}

// Stop cancels the poller and waits for the worker pool to drain in-flight
// work, or shutdownTimeout elapses. Entries still Processing when the
// timeout fires remain claimed until the store's visibility timeout expires.
func (p *Processor) Stop() error {
	if !p.running.Load() {
		return ErrProcessorNotStarted
	}
	if !p.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() { p.wg.Wait(); close(done) }()

	select {
	case <-done:
		return nil
	case <-time.After(p.shutdownTimeout):
		return fmt.Errorf("shutdown timeout exceeded after %s", p.shutdownTimeout)
	}
}

// Run adapts the processor to errgroup.Group.
func (p *Processor) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- p.Start(ctx) }()

		select {
		case <-ctx.Done():
			if err := p.Stop(); err != nil {
				p.logger.Error("graceful shutdown failed", logger.Error(err))
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

// Stats returns current processor statistics for observability.
func (p *Processor) Stats() Stats {
	lastActivity := p.lastActivityAt.Load()
	var lastActivityTime time.Time
	if lastActivity > 0 {
		lastActivityTime = time.Unix(0, lastActivity)
	}
	return Stats{
		Processed:      p.processed.Load(),
		Failed:         p.failed.Load(),
		Retried:        p.retried.Load(),
		QueueDepth:     len(p.jobs),
		IsRunning:      p.running.Load(),
		LastActivityAt: lastActivityTime,
	}
}

// Healthcheck reports whether the processor is running.
func (p *Processor) Healthcheck(context.Context) error {
	if !p.running.Load() {
		return errors.Join(ErrHealthcheckFailed, ErrProcessorNotStarted)
	}
	return nil
}
