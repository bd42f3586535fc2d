package saga

import (
	"context"
	"time"
)

// Repository is the §6 SagaRepository<S> contract, generalized over the
// domain field type D. Implementations own exclusive storage of Instance[D]
// records; the orchestrator only ever touches borrowed references returned
// by these methods.
type Repository[D any] interface {
	// Find returns the saga persisted under correlationID, or ErrNotFound.
	Find(ctx context.Context, correlationID string) (*Instance[D], error)

	// FindByState returns every non-deleted saga currently in state.
	FindByState(ctx context.Context, state State) ([]*Instance[D], error)

	// Save persists a brand-new saga. It fails with ErrAlreadyExists if one
	// already exists for inst.CorrelationID.
	Save(ctx context.Context, inst *Instance[D]) error

	// Update persists a mutation to an existing saga, enforcing optimistic
	// concurrency: inst.Version must equal the version currently stored, or
	// Update fails with *ConcurrencyError and leaves the stored state
	// untouched. On success, the stored version is incremented and
	// inst.Version/inst.UpdatedAt are updated in place to match.
	Update(ctx context.Context, inst *Instance[D]) error

	// Delete removes the saga persisted under correlationID.
	Delete(ctx context.Context, correlationID string) error

	// FindStale returns every non-completed saga whose UpdatedAt is older
	// than now - olderThan, enabling timeout sweeps.
	FindStale(ctx context.Context, olderThan time.Duration) ([]*Instance[D], error)
}
