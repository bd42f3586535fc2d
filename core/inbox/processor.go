package inbox

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/dmitrymomot/foundation/core/logger"
	"github.com/dmitrymomot/foundation/core/message"
)

// DispatchFunc hands a newly-seen (non-duplicate) envelope to the
// application's command/event dispatcher.
type DispatchFunc func(ctx context.Context, env message.Envelope) error

// Processor gates incoming envelopes through a Storage-backed dedup check
// before dispatch (spec §4.7). Unlike the outbox/queue processors it has no
// background loop: Receive is called synchronously on message arrival, so
// there is no Start/Stop lifecycle to supervise.
type Processor struct {
	storage  Storage
	dispatch DispatchFunc
	logger   *slog.Logger

	processed  atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

// ProcessorOption configures a Processor at construction time.
type ProcessorOption func(*Processor)

// WithDispatchFunc installs the function invoked for non-duplicate envelopes.
func WithDispatchFunc(fn DispatchFunc) ProcessorOption {
	return func(p *Processor) { p.dispatch = fn }
}

// WithProcessorLogger sets the processor's structured logger.
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProcessor creates an inbox processor backed by storage.
func NewProcessor(storage Storage, opts ...ProcessorOption) *Processor {
	p := &Processor{
		storage: storage,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Receive checks env's MessageID against the store; duplicates are dropped
// (incrementing the duplicate counter) and new arrivals are marked
// processed then dispatched. The check-then-write pair relies on the
// store's MarkProcessed being atomic with respect to concurrent duplicate
// arrivals.
func (p *Processor) Receive(ctx context.Context, env message.Envelope) error {
	isNew, err := p.storage.MarkProcessed(ctx, env.MessageID)
	if err != nil {
		p.failed.Add(1)
		return err
	}
	if !isNew {
		p.duplicates.Add(1)
		p.logger.DebugContext(ctx, "dropped duplicate inbound message",
			logger.ID("message_id", env.MessageID.String()), logger.Action(env.Name))
		return nil
	}

	if p.dispatch == nil {
		p.failed.Add(1)
		return ErrDispatchFuncNil
	}

	if err := p.dispatch(ctx, env); err != nil {
		p.failed.Add(1)
		return err
	}

	p.processed.Add(1)
	return nil
}

// Stats reports processor observability counters, including the
// deduplication_rate named by spec §4.7.
type Stats struct {
	Processed         int64
	Duplicates        int64
	Failed            int64
	DeduplicationRate float64
}

// Stats returns current processor statistics.
func (p *Processor) Stats() Stats {
	processed := p.processed.Load()
	duplicates := p.duplicates.Load()

	var rate float64
	if total := processed + duplicates; total > 0 {
		rate = float64(duplicates) / float64(total)
	}

	return Stats{
		Processed:         processed,
		Duplicates:        duplicates,
		Failed:            p.failed.Load(),
		DeduplicationRate: rate,
	}
}

// Healthcheck reports whether the processor has a dispatch target configured.
func (p *Processor) Healthcheck(context.Context) error {
	if p.dispatch == nil {
		return ErrHealthcheckFailed
	}
	return nil
}
