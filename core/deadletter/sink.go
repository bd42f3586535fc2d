package deadletter

import (
	"context"

	"github.com/dmitrymomot/foundation/core/message"
)

// Sink adapts a Store to the narrower Send(ctx, env, reason) error shape
// core/pipeline.DeadLetterSink and core/event.DeadLetterSink both expect,
// so a single dead-letter store can back the pipeline's ErrorHandling
// decorator and the event bus's WithDeadLetterSink option alike.
type Sink struct {
	store     Store
	component string
}

// NewSink wraps store for use as a pipeline/event dead-letter sink. component
// is recorded on every entry's Context for later triage.
func NewSink(store Store, component string) *Sink {
	return &Sink{store: store, component: component}
}

// Send records env as a new Active dead-letter entry with reason, discarding
// the generated id to satisfy the narrower sink interfaces. Use the
// underlying Store directly when the id is needed.
func (s *Sink) Send(ctx context.Context, env message.Envelope, reason string) error {
	_, err := s.store.Send(ctx, env, Context{
		Reason:    reason,
		Component: s.component,
		Metadata:  env.Metadata,
	})
	return err
}
