// Package inbox implements the inbox processor (spec §4.7): idempotent
// reception that checks-then-writes a message_id before allowing dispatch,
// dropping duplicates rather than reprocessing them. The check-then-write
// pair is the same atomic-dedup shape as core/registry's exclusive
// registration, here applied to a per-message_id store entry instead of a
// per-type handler slot.
package inbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage is the §6 InboxStorage contract. MarkProcessed is the atomic
// dedup primitive: it returns false without error when id was already
// marked, letting the processor distinguish "first sighting" from
// "duplicate" without a separate has_been_processed round trip.
type Storage interface {
	// HasBeenProcessed reports whether id already has an inbox entry.
	HasBeenProcessed(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkProcessed atomically records id as processed. Returns false if id
	// was already recorded (duplicate), true if this call recorded it.
	MarkProcessed(ctx context.Context, id uuid.UUID) (bool, error)
}

// Entry is a durable inbox record (spec §3, InboxEntry).
type Entry struct {
	MessageID   uuid.UUID
	ProcessedAt time.Time
}
