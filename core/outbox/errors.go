package outbox

import "errors"

var (
	// ErrProcessorAlreadyStarted is returned by Start on an already-running processor.
	ErrProcessorAlreadyStarted = errors.New("outbox processor already started")

	// ErrProcessorNotStarted is returned by Stop on a processor that was never started.
	ErrProcessorNotStarted = errors.New("outbox processor not started")

	// ErrHealthcheckFailed wraps any condition Healthcheck reports.
	ErrHealthcheckFailed = errors.New("outbox processor healthcheck failed")

	// ErrDispatchFuncNil is returned when an internal-dispatch entry (empty
	// Destination) has no DispatchFunc configured to hand it to.
	ErrDispatchFuncNil = errors.New("outbox has no dispatch function configured for internal delivery")

	// ErrTransportFuncNil is returned when an entry names a Destination but
	// no TransportFunc is configured to deliver to external destinations.
	ErrTransportFuncNil = errors.New("outbox has no transport function configured for external delivery")
)
