package deadletter

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/foundation/core/message"
)

// Store is the §6 DeadLetterQueue contract.
type Store interface {
	// Send records a new Active entry for env and returns its id.
	Send(ctx context.Context, env message.Envelope, dlCtx Context) (uuid.UUID, error)

	// List returns up to limit entries, most recent first.
	List(ctx context.Context, limit int) ([]Entry, error)

	// Retry transitions id to Retried. Returns false if id is not Active.
	Retry(ctx context.Context, id uuid.UUID) (bool, error)

	// Discard transitions id to Discarded. Returns false if id is not Active.
	Discard(ctx context.Context, id uuid.UUID) (bool, error)

	// Count reports the number of currently Active entries.
	Count(ctx context.Context) (int, error)

	// Statistics reports entry counts by status.
	Statistics(ctx context.Context) (Statistics, error)
}
