package deadletter

import "errors"

var (
	// ErrEntryNotFound reports that no dead-letter entry exists for an id.
	// MemoryStorage.Retry and Discard report that case as (false, nil)
	// instead of returning this error.
	ErrEntryNotFound = errors.New("dead-letter entry not found")

	// ErrEntryNotActive reports that an entry has already left the Active
	// state. MemoryStorage.Retry and Discard report that case as
	// (false, nil) instead of returning this error.
	ErrEntryNotActive = errors.New("dead-letter entry is not active")
)
