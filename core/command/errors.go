package command

import "errors"

var (
	// ErrHandlerNotFound is returned when no handler is registered for a
	// command name, corresponding to the spec's NoHandlerRegistered kind.
	ErrHandlerNotFound = errors.New("handler not found for command")

	// ErrDuplicateHandler names the condition of registering a second handler
	// for a command name that already has one; WithHandler panics in that
	// case rather than returning an error.
	ErrDuplicateHandler = errors.New("handler already registered for command")

	// ErrQueueFull is returned by Send when the bounded submission queue
	// (capacity 100) is full and ctx is cancelled before room frees up.
	ErrQueueFull = errors.New("command queue is full")

	// ErrDispatcherNotStarted is returned by Stop when the dispatcher was
	// never started.
	ErrDispatcherNotStarted = errors.New("command dispatcher not started")

	// ErrDispatcherAlreadyStarted is returned by Start when it is called on
	// an already-running dispatcher.
	ErrDispatcherAlreadyStarted = errors.New("command dispatcher already started")

	// ErrShutdownInProgress is returned by Send once Stop has been called.
	ErrShutdownInProgress = errors.New("command dispatcher is shutting down")

	// ErrHealthcheckFailed wraps any condition Healthcheck reports.
	ErrHealthcheckFailed = errors.New("command dispatcher healthcheck failed")

	// ErrDispatcherStale is joined into Healthcheck's error when no command
	// has been processed within the configured stale threshold.
	ErrDispatcherStale = errors.New("command dispatcher stale")
)
