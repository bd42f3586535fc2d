package saga

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Repository.Find (and Delete) when no saga
	// is persisted under the given correlation id.
	ErrNotFound = errors.New("saga not found")

	// ErrAlreadyExists is returned by Repository.Save when a saga already
	// exists for the correlation id (Save is create-only; Update is the
	// mutation path).
	ErrAlreadyExists = errors.New("saga already exists")

	// ErrNoCorrelationID is logged (not returned to the event bus, per
	// spec §4.9 step 1: "If empty: log warning, return") when neither the
	// envelope nor the configured extractor yields a correlation id.
	ErrNoCorrelationID = errors.New("event carries no correlation id")

	// ErrHealthcheckFailed wraps any condition Healthcheck reports.
	ErrHealthcheckFailed = errors.New("saga orchestrator healthcheck failed")
)

// ConcurrencyError is raised by Repository.Update when the version the
// caller loaded no longer matches the persisted version (spec §4.9 step 7,
// §7 "SagaConcurrencyError"). The caller may retry the whole dispatch.
type ConcurrencyError struct {
	CorrelationID string
	Expected      int64
	Actual        int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("saga %s: concurrency conflict: expected version %d, store has %d",
		e.CorrelationID, e.Expected, e.Actual)
}

// IsConcurrencyError reports whether err is (or wraps) a *ConcurrencyError.
func IsConcurrencyError(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}
