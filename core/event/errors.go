package event

import "errors"

var (
	// ErrBusAlreadyStarted is returned by Start when it is called on an
	// already-running bus.
	ErrBusAlreadyStarted = errors.New("event bus already started")

	// ErrBusNotStarted is returned by Stop when the bus was never started.
	ErrBusNotStarted = errors.New("event bus not started")

	// ErrShutdownInProgress is returned by Publish once Stop has been called.
	ErrShutdownInProgress = errors.New("event bus is shutting down")

	// ErrHealthcheckFailed wraps any condition Healthcheck reports.
	ErrHealthcheckFailed = errors.New("event bus healthcheck failed")

	// ErrBusStale is joined into Healthcheck's error when no handler
	// invocation has run within the configured stale threshold, once at
	// least one has run.
	ErrBusStale = errors.New("event bus stale")
)
