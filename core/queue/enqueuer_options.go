package queue

import "time"

// enqueuerOptions holds the defaults a new Enqueuer applies to every entry it
// builds unless an EnqueueOption overrides them.
type enqueuerOptions struct {
	defaultQueue    string
	defaultPriority Priority
}

// EnqueuerOption configures an Enqueuer at construction time.
type EnqueuerOption func(*enqueuerOptions)

// WithDefaultQueue overrides the queue new entries land on when Enqueue's
// caller doesn't specify one via WithQueue.
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if queue != "" {
			o.defaultQueue = queue
		}
	}
}

// WithDefaultPriority overrides the priority new entries get when Enqueue's
// caller doesn't specify one via WithPriority.
func WithDefaultPriority(priority Priority) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if priority.Valid() {
			o.defaultPriority = priority
		}
	}
}

// enqueueOptions holds the per-call overrides applied to a single entry.
type enqueueOptions struct {
	queue       string
	priority    Priority
	maxRetries  int8
	name        string
	scheduledAt *time.Time
	delay       time.Duration
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

// WithQueue routes the entry onto the named queue instead of the Enqueuer's default.
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) { o.queue = queue }
}

// WithPriority overrides the entry's priority for this call only.
func WithPriority(priority Priority) EnqueueOption {
	return func(o *enqueueOptions) { o.priority = priority }
}

// WithName overrides the handler routing name a claimed entry is dispatched
// by; the default is the envelope's own Name.
func WithName(name string) EnqueueOption {
	return func(o *enqueueOptions) { o.name = name }
}

// WithMaxRetries overrides the number of attempts before an entry moves to
// the dead letter queue.
func WithMaxRetries(maxRetries int8) EnqueueOption {
	return func(o *enqueueOptions) { o.maxRetries = maxRetries }
}

// WithDelay schedules the entry to become claimable after d has elapsed.
// Mutually exclusive with WithScheduledAt; whichever is applied last wins.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		o.delay = d
		o.scheduledAt = nil
	}
}

// WithScheduledAt schedules the entry to become claimable at exactly t.
// Mutually exclusive with WithDelay; whichever is applied last wins.
func WithScheduledAt(t time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.scheduledAt = &t
		o.delay = 0
	}
}
