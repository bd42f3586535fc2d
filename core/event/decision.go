package event

import (
	"context"
	"time"

	"github.com/dmitrymomot/foundation/core/message"
)

// Decision is the disposition an ErrorHandler chooses for a handler
// invocation that just failed, mirroring the spec's {Retry,
// SendToDeadLetter, Discard, Escalate} set and core/pipeline's ErrorAction.
type Decision struct {
	kind   decisionKind
	delay  time.Duration
	reason string
}

type decisionKind int

const (
	decisionRetry decisionKind = iota
	decisionDeadLetter
	decisionDiscard
	decisionEscalate
)

// RetryAfter requests another attempt after delay.
func RetryAfter(delay time.Duration) Decision { return Decision{kind: decisionRetry, delay: delay} }

// SendToDeadLetter requests the event be moved to the dead-letter sink.
func SendToDeadLetter(reason string) Decision {
	return Decision{kind: decisionDeadLetter, reason: reason}
}

// Discard requests the event be dropped without further action.
func Discard(reason string) Decision { return Decision{kind: decisionDiscard, reason: reason} }

// Escalate requests the failure be logged at error level and counted as
// escalated. The bus never propagates a handler failure to Publish's caller
// (publish completes once envelopes are enqueued, per spec §4.4/§7), so
// Escalate is the bus's equivalent of "rethrow": it is the loudest, most
// visible disposition available, not a panic across goroutines.
func Escalate() Decision { return Decision{kind: decisionEscalate} }

// ErrorContext describes a failed handler invocation to an ErrorHandler.
type ErrorContext struct {
	RetryCount       int
	MaxRetries       int
	Component        string
	FirstFailureTime time.Time
	LastFailureTime  time.Time
	Metadata         map[string]any
}

// DeadLetterSink persists an event whose handler invocation exhausted its
// retry budget or was explicitly dead-lettered by an ErrorHandler.
type DeadLetterSink interface {
	Send(ctx context.Context, env message.Envelope, reason string) error
}

// ErrorHandler decides the disposition of a handler invocation that failed.
type ErrorHandler func(err error, ec ErrorContext) Decision
