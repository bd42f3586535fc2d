package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrymomot/foundation/core/message"
)

// Processor is the queue processor: named, long-lived FIFO queues for
// workload decoupling. Each named queue owns its own bounded
// worker pool, independently started and stopped, built out of the
// package's Worker/Enqueuer primitives bound to a single queue name apiece.
//
// Unlike Worker (which can pull from several queues at once for a single
// pool), Processor gives every queue name its own pool so StopQueue("x")
// never pauses delivery on queue "y".
type Processor struct {
	storage  Storage
	enqueuer *Enqueuer

	mu      sync.RWMutex
	workers map[string]*Worker
}

// NewProcessor creates a queue processor backed by storage. storage must
// satisfy both EnqueuerRepository and WorkerRepository (the package's
// Storage interface already composes both).
func NewProcessor(storage Storage, enqueuerOpts ...EnqueuerOption) (*Processor, error) {
	enq, err := NewEnqueuer(storage, enqueuerOpts...)
	if err != nil {
		return nil, fmt.Errorf("queue: new processor: %w", err)
	}
	return &Processor{
		storage:  storage,
		enqueuer: enq,
		workers:  make(map[string]*Worker),
	}, nil
}

// Enqueue persists env onto the named queue. The entry's routing name is
// pinned to queueName rather than env.Name so the single handler StartQueue
// registers for that queue receives every envelope enqueued onto it,
// regardless of message type.
func (p *Processor) Enqueue(ctx context.Context, queueName string, env message.Envelope, opts ...EnqueueOption) error {
	allOpts := append([]EnqueueOption{WithQueue(queueName), WithName(queueName)}, opts...)
	return p.enqueuer.Enqueue(ctx, env, allOpts...)
}

// StartQueue creates (if needed) and starts the worker pool for name,
// registering handler as the sole consumer of every envelope enqueued onto
// that queue via Enqueue. Calling StartQueue again for a running queue is a
// no-op.
func (p *Processor) StartQueue(ctx context.Context, name string, handler EnvelopeHandlerFunc, opts ...WorkerOption) error {
	p.mu.Lock()
	if _, running := p.workers[name]; running {
		p.mu.Unlock()
		return nil
	}

	allOpts := append([]WorkerOption{WithQueues(name)}, opts...)
	w, err := NewWorker(p.storage, allOpts...)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("queue: start queue %q: %w", name, err)
	}
	if err := w.RegisterHandler(NewEnvelopeHandler(name, handler)); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("queue: start queue %q: %w", name, err)
	}
	p.workers[name] = w
	p.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()

	select {
	case err := <-errCh:
		p.mu.Lock()
		delete(p.workers, name)
		p.mu.Unlock()
		return fmt.Errorf("queue: start queue %q: %w", name, err)
	default:
		return nil
	}
}

// StopQueue signals the named queue's worker pool to finish in-flight work
// and awaits drain. Stopping a queue that isn't running is a no-op.
func (p *Processor) StopQueue(name string) error {
	p.mu.Lock()
	w, ok := p.workers[name]
	if ok {
		delete(p.workers, name)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	if err := w.Stop(); err != nil {
		return fmt.Errorf("queue: stop queue %q: %w", name, err)
	}
	return nil
}

// ActiveQueues returns the names of queues with a running worker pool.
func (p *Processor) ActiveQueues() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.workers))
	for name := range p.workers {
		names = append(names, name)
	}
	return names
}

// Stats returns per-queue worker statistics for every active queue.
func (p *Processor) Stats() map[string]WorkerStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]WorkerStats, len(p.workers))
	for name, w := range p.workers {
		out[name] = w.Stats()
	}
	return out
}

// Healthcheck reports an error if any active queue's worker pool is
// unhealthy.
func (p *Processor) Healthcheck(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for name, w := range p.workers {
		if err := w.Healthcheck(ctx); err != nil {
			return fmt.Errorf("queue: queue %q: %w", name, err)
		}
	}
	return nil
}

// Stop stops every active queue, awaiting drain for each in turn.
func (p *Processor) Stop() error {
	for _, name := range p.ActiveQueues() {
		if err := p.StopQueue(name); err != nil {
			return err
		}
	}
	return nil
}
