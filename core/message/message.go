// Package message defines the canonical envelope shared by commands, queries
// and events: identity, timestamp, correlation/causation linkage and metadata.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the three message shapes the dispatcher core understands.
type Kind string

const (
	KindCommand Kind = "command"
	KindQuery   Kind = "query"
	KindEvent   Kind = "event"
)

// Metadata is a string-keyed, order-irrelevant bag of values attached to a message.
type Metadata map[string]any

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Envelope is the common supertype of all traffic flowing through the dispatcher
// core. MessageID never mutates after creation.
type Envelope struct {
	MessageID     uuid.UUID `json:"message_id"`
	Kind          Kind      `json:"kind"`
	Name          string    `json:"name"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
	Metadata      Metadata  `json:"metadata,omitempty"`
	Payload       any       `json:"payload"`
}

// New builds an Envelope of the given kind and name around payload.
func New(kind Kind, name string, payload any, opts ...Option) Envelope {
	e := Envelope{
		MessageID: uuid.New(),
		Kind:      kind,
		Name:      name,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Option configures an Envelope at construction time.
type Option func(*Envelope)

// WithCorrelationID attaches a correlation id grouping this message with others
// in the same logical conversation.
func WithCorrelationID(id string) Option {
	return func(e *Envelope) { e.CorrelationID = id }
}

// WithCausationID attaches the id of the message that caused this one.
func WithCausationID(id string) Option {
	return func(e *Envelope) { e.CausationID = id }
}

// WithMetadata merges md into the envelope's metadata.
func WithMetadata(md Metadata) Option {
	return func(e *Envelope) {
		if len(md) == 0 {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(Metadata, len(md))
		}
		for k, v := range md {
			e.Metadata[k] = v
		}
	}
}

// ProcessingContext is an immutable per-dispatch record threaded through the
// pipeline. It carries no mutable state; decorators derive new contexts rather
// than mutating this one in place.
type ProcessingContext struct {
	StartTime   time.Time
	RetryCount  int
	Component   string
	Attributes  Metadata
}

// WithRetry returns a copy of ctx with RetryCount incremented.
func (c ProcessingContext) WithRetry() ProcessingContext {
	c.RetryCount++
	return c
}

// NewProcessingContext starts a fresh context for component at the current time.
func NewProcessingContext(component string) ProcessingContext {
	return ProcessingContext{StartTime: time.Now(), Component: component}
}

// ProcessingResult is the tagged union every pipeline stage must return:
// either Successful or Failed(err). It is the in-Go analogue of the spec's
// ProcessingResult variant, replacing unchecked-exception control flow.
type ProcessingResult struct {
	ok  bool
	err error
}

// Successful constructs a successful ProcessingResult.
func Successful() ProcessingResult { return ProcessingResult{ok: true} }

// Failed constructs a failed ProcessingResult wrapping err.
func Failed(err error) ProcessingResult { return ProcessingResult{ok: false, err: err} }

// IsSuccess reports whether the result represents success.
func (r ProcessingResult) IsSuccess() bool { return r.ok }

// Err returns the wrapped error, or nil on success.
func (r ProcessingResult) Err() error { return r.err }
