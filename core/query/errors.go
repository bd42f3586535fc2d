package query

import "errors"

var (
	// ErrHandlerNotFound is returned when no handler is registered for a
	// query name, corresponding to the spec's NoHandlerRegistered kind.
	ErrHandlerNotFound = errors.New("handler not found for query")

	// ErrDuplicateHandler names the condition of registering a second handler
	// for a query name that already has one; WithHandler panics in that case
	// rather than returning an error.
	ErrDuplicateHandler = errors.New("handler already registered for query")

	// ErrDispatcherNotStarted is returned by Stop when the dispatcher was
	// never started.
	ErrDispatcherNotStarted = errors.New("query dispatcher not started")

	// ErrDispatcherAlreadyStarted is returned by Start when it is called on
	// an already-running dispatcher.
	ErrDispatcherAlreadyStarted = errors.New("query dispatcher already started")

	// ErrShutdownInProgress is returned by Send once Stop has been called.
	ErrShutdownInProgress = errors.New("query dispatcher is shutting down")

	// ErrHealthcheckFailed wraps any condition Healthcheck reports.
	ErrHealthcheckFailed = errors.New("query dispatcher healthcheck failed")

	// ErrDispatcherStale is joined into Healthcheck's error when no query has
	// been answered within the configured stale threshold.
	ErrDispatcherStale = errors.New("query dispatcher stale")
)
