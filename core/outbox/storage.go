package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/foundation/core/message"
)

// Storage is the §6 OutboxStorage contract. GetPending's returned entries
// are exclusively claimed by the caller for the store's visibility timeout:
// two processor instances must never both advance the same entry to
// Processing, whether the implementation enforces that with a conditional
// update or a lease.
type Storage interface {
	// Add persists a new Pending entry for message and returns it.
	Add(ctx context.Context, msg message.Envelope, opts Options) (Entry, error)

	// GetPending atomically claims up to limit Pending entries and
	// transitions them to Processing. The order of the batch is up to the
	// implementation: MemoryStorage orders by priority descending, then
	// created_at ascending; store/redisstore orders by readiness time.
	GetPending(ctx context.Context, limit int) ([]Entry, error)

	// MarkProcessed transitions id from Processing to Processed.
	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// MarkFailed transitions id from Processing to Failed, recording reason.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// UpdateRetry transitions id from Processing back to Pending with an
	// incremented retry count and the given next_retry_at.
	UpdateRetry(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time) error

	// GetPendingCount reports the number of entries currently Pending.
	GetPendingCount(ctx context.Context) (int, error)
}
