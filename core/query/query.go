// Package query implements the query dispatcher (spec §4.3): an
// exactly-one-handler-per-name, single-slot, FIFO-ordered router returning a
// typed response. It mirrors core/command's dispatcher shape, adding a
// rolling latency window and a cache-hit counter the calling pipeline
// increments (the dispatcher never caches on its own).
package query

import (
	"reflect"

	"github.com/dmitrymomot/foundation/core/message"
)

// NameOf derives a query's name from its payload type via reflection,
// following the same convention as command.NameOf.
func NameOf(payload any) string {
	return getQueryName(reflect.TypeOf(payload))
}

// New builds a query Envelope around payload, deriving its Name via NameOf.
func New(payload any, opts ...message.Option) message.Envelope {
	return message.New(message.KindQuery, NameOf(payload), payload, opts...)
}

func getQueryName(t reflect.Type) string {
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
