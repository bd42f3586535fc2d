package queue

import "errors"

var (
	// ErrRepositoryNil is returned by constructors when no repository is supplied.
	ErrRepositoryNil = errors.New("queue: repository is nil")

	// ErrInvalidPriority is returned when a Priority outside its valid range is supplied.
	ErrInvalidPriority = errors.New("queue: invalid priority")

	// ErrNoHandlers is returned by Start when a worker has no registered handlers.
	ErrNoHandlers = errors.New("queue: worker has no registered handlers")

	// ErrHandlerNotFound is returned when a claimed entry names no registered handler.
	ErrHandlerNotFound = errors.New("queue: no handler registered for entry")

	// ErrNoTaskToClaim is returned by a repository when no pending entry is ready to claim.
	ErrNoTaskToClaim = errors.New("queue: no entry to claim")

	// ErrHealthcheckFailed wraps any condition Healthcheck reports.
	ErrHealthcheckFailed = errors.New("queue: healthcheck failed")

	// ErrWorkerNotRunning is returned by Stop, or joined into Healthcheck,
	// when the worker is not currently running.
	ErrWorkerNotRunning = errors.New("queue: worker not running")

	// ErrWorkerOverloaded is joined into Healthcheck when every concurrent
	// entry slot is occupied and the worker cannot make further claims.
	ErrWorkerOverloaded = errors.New("queue: worker at max concurrent entries")
)
