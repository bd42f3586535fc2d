package outbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/foundation/core/message"
)

// MemoryStorage is an in-memory reference Storage implementation, adapting
// core/queue.MemoryStorage's locked-map-plus-lease-expiration-goroutine
// design to the outbox's entry shape. Suitable for tests and single-process
// deployments; it satisfies the open question in spec §9 about lease
// reclamation by releasing Processing entries back to Pending once
// VisibilityTimeout elapses.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry

	visibilityTimeout time.Duration
	logger            *slog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	leasesReclaimed atomic.Int64
}

// MemoryStorageOption configures a MemoryStorage.
type MemoryStorageOption func(*MemoryStorage)

// WithVisibilityTimeout overrides the default lease duration (30s) a claimed
// entry remains invisible to other claimers before becoming re-eligible.
func WithVisibilityTimeout(d time.Duration) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if d > 0 {
			ms.visibilityTimeout = d
		}
	}
}

// WithMemoryStorageLogger sets the logger used by the lease-expiration sweep.
func WithMemoryStorageLogger(l *slog.Logger) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if l != nil {
			ms.logger = l
		}
	}
}

// NewMemoryStorage creates an in-memory outbox store. Call Start to begin
// the background lease-expiration sweep that reclaims crashed claims.
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		entries:           make(map[uuid.UUID]*Entry),
		visibilityTimeout: 30 * time.Second,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// Add persists a new Pending entry.
func (ms *MemoryStorage) Add(_ context.Context, msg message.Envelope, opts Options) (Entry, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	e := Entry{
		ID:        uuid.New(),
		Message:   msg,
		Options:   opts,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	ms.entries[e.ID] = &e

	cp := e
	return cp, nil
}

// GetPending atomically claims up to limit Pending entries, ordered by
// priority descending with created_at ascending as a tiebreak.
func (ms *MemoryStorage) GetPending(_ context.Context, limit int) ([]Entry, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var candidates []*Entry
	for _, e := range ms.entries {
		if e.Status != StatusPending {
			continue
		}
		if !e.NextRetryAt.IsZero() && e.NextRetryAt.After(now) {
			continue
		}
		candidates = append(candidates, e)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Options.Priority != candidates[j].Options.Priority {
			return candidates[i].Options.Priority > candidates[j].Options.Priority
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	claimedBy := uuid.New()
	out := make([]Entry, 0, len(candidates))
	for _, e := range candidates {
		e.Status = StatusProcessing
		e.LockedUntil = now.Add(ms.visibilityTimeout)
		e.LockedBy = claimedBy
		out = append(out, *e)
	}
	return out, nil
}

// MarkProcessed transitions id from Processing to Processed.
func (ms *MemoryStorage) MarkProcessed(_ context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.entries[id]
	if !ok {
		return fmt.Errorf("outbox entry %s not found", id)
	}
	e.Status = StatusProcessed
	e.LockedUntil = time.Time{}
	return nil
}

// MarkFailed transitions id from Processing to Failed.
func (ms *MemoryStorage) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.entries[id]
	if !ok {
		return fmt.Errorf("outbox entry %s not found", id)
	}
	e.Status = StatusFailed
	e.LastError = reason
	e.LockedUntil = time.Time{}
	return nil
}

// UpdateRetry transitions id from Processing back to Pending.
func (ms *MemoryStorage) UpdateRetry(_ context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.entries[id]
	if !ok {
		return fmt.Errorf("outbox entry %s not found", id)
	}
	e.Status = StatusPending
	e.RetryCount = retryCount
	e.NextRetryAt = nextRetryAt
	e.LockedUntil = time.Time{}
	return nil
}

// GetPendingCount reports entries currently Pending.
func (ms *MemoryStorage) GetPendingCount(context.Context) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	n := 0
	for _, e := range ms.entries {
		if e.Status == StatusPending {
			n++
		}
	}
	return n, nil
}

// Start runs the lease-expiration sweep until ctx is cancelled. Blocking;
// use Run for errgroup-style supervision.
func (ms *MemoryStorage) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	ms.cancel = cancel
	ms.running.Store(true)
	defer ms.running.Store(false)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ms.reclaimExpiredLeases()
		}
	}
}

// Stop cancels the lease-expiration sweep.
func (ms *MemoryStorage) Stop() error {
	if ms.cancel != nil {
		ms.cancel()
	}
	return nil
}

// Run adapts the sweep to errgroup.Group.
func (ms *MemoryStorage) Run(ctx context.Context) func() error {
	return func() error {
		err := ms.Start(ctx)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	}
}

func (ms *MemoryStorage) reclaimExpiredLeases() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for _, e := range ms.entries {
		if e.Status == StatusProcessing && !e.LockedUntil.IsZero() && e.LockedUntil.Before(now) {
			e.Status = StatusPending
			e.LockedUntil = time.Time{}
			ms.leasesReclaimed.Add(1)
			ms.logger.Warn("outbox entry lease expired, reclaiming",
				slog.String("entry_id", e.ID.String()))
		}
	}
}

// LeasesReclaimed reports how many Processing entries were returned to
// Pending after their visibility timeout expired (crash recovery signal).
func (ms *MemoryStorage) LeasesReclaimed() int64 { return ms.leasesReclaimed.Load() }
