// Package event implements the event bus (spec §4.4): zero-or-more-handler,
// fan-out delivery over a bounded parallel worker pool, with a per-handler
// retry loop and a pluggable ErrorHandler deciding the disposition of a
// handler that keeps failing. It replaces the teacher's original
// channel-backed pub/sub processor (which delivered raw JSON over a single
// unbuffered topic) with the message.Envelope-based shape shared by
// core/command and core/query, generalized to fan-out delivery.
package event

import (
	"reflect"

	"github.com/dmitrymomot/foundation/core/message"
)

// NameOf derives an event's name from its payload type via reflection,
// following the same convention as command.NameOf/query.NameOf.
func NameOf(payload any) string {
	return getEventName(reflect.TypeOf(payload))
}

// New builds an event Envelope around payload, deriving its Name via NameOf.
func New(payload any, opts ...message.Option) message.Envelope {
	return message.New(message.KindEvent, NameOf(payload), payload, opts...)
}

func getEventName(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
