package inbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory reference Storage implementation. A single
// mutex serializes the check-then-write so concurrent duplicate arrivals
// never both observe "not yet processed".
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[uuid.UUID]Entry
}

// NewMemoryStorage creates an empty in-memory inbox store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[uuid.UUID]Entry)}
}

// HasBeenProcessed reports whether id has an inbox entry.
func (ms *MemoryStorage) HasBeenProcessed(_ context.Context, id uuid.UUID) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	_, ok := ms.entries[id]
	return ok, nil
}

// MarkProcessed atomically records id, returning false if it was already present.
func (ms *MemoryStorage) MarkProcessed(_ context.Context, id uuid.UUID) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.entries[id]; exists {
		return false, nil
	}
	ms.entries[id] = Entry{MessageID: id, ProcessedAt: time.Now()}
	return true, nil
}

// Len reports the number of recorded entries, mainly for tests.
func (ms *MemoryStorage) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.entries)
}
