package deadletter

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/foundation/core/message"
)

// MemoryStorage is an in-memory reference Store implementation.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
}

// NewMemoryStorage creates an empty in-memory dead-letter store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[uuid.UUID]*Entry)}
}

// Send records a new Active entry.
func (ms *MemoryStorage) Send(_ context.Context, env message.Envelope, dlCtx Context) (uuid.UUID, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if dlCtx.FailureTime.IsZero() {
		dlCtx.FailureTime = time.Now()
	}

	id := uuid.New()
	ms.entries[id] = &Entry{
		ID:        id,
		Message:   env,
		Context:   dlCtx,
		Status:    StatusActive,
		CreatedAt: time.Now(),
	}
	return id, nil
}

// List returns up to limit entries, most recently created first.
func (ms *MemoryStorage) List(_ context.Context, limit int) ([]Entry, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]Entry, 0, len(ms.entries))
	for _, e := range ms.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Retry transitions id from Active to Retried.
func (ms *MemoryStorage) Retry(_ context.Context, id uuid.UUID) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.entries[id]
	if !ok || e.Status != StatusActive {
		return false, nil
	}
	e.Status = StatusRetried
	e.RetriedAt = time.Now()
	return true, nil
}

// Discard transitions id from Active to Discarded.
func (ms *MemoryStorage) Discard(_ context.Context, id uuid.UUID) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.entries[id]
	if !ok || e.Status != StatusActive {
		return false, nil
	}
	e.Status = StatusDiscarded
	e.DiscardedAt = time.Now()
	return true, nil
}

// Count reports entries currently Active.
func (ms *MemoryStorage) Count(_ context.Context) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	n := 0
	for _, e := range ms.entries {
		if e.Status == StatusActive {
			n++
		}
	}
	return n, nil
}

// Statistics reports entry counts by status.
func (ms *MemoryStorage) Statistics(_ context.Context) (Statistics, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var stats Statistics
	for _, e := range ms.entries {
		switch e.Status {
		case StatusActive:
			stats.Active++
		case StatusRetried:
			stats.Retried++
		case StatusDiscarded:
			stats.Discarded++
		}
	}
	stats.Total = len(ms.entries)
	return stats, nil
}
