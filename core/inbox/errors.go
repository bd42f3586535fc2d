package inbox

import "errors"

var (
	// ErrDispatchFuncNil is returned when no DispatchFunc is configured.
	ErrDispatchFuncNil = errors.New("inbox has no dispatch function configured")

	// ErrHealthcheckFailed wraps any condition Healthcheck reports.
	ErrHealthcheckFailed = errors.New("inbox processor healthcheck failed")
)
