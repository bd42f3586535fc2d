// Package command implements the command dispatcher (spec §4.2): an
// at-most-one-handler-per-name, single-slot, FIFO-ordered router with a
// bounded submission queue. Unlike the teacher's original pull-based
// async dispatcher (which spawned one goroutine per inbound command), Send
// blocks the caller until the single worker has run the handler to
// completion, giving every submission a caller-visible promise as required
// by the spec.
package command

import (
	"reflect"

	"github.com/dmitrymomot/foundation/core/message"
)

// NameOf derives a command's name from its payload type via reflection,
// following the teacher's getCommandName convention: named types use their
// type name, pointers are dereferenced first.
func NameOf(payload any) string {
	return getCommandName(reflect.TypeOf(payload))
}

// New builds a command Envelope around payload, deriving its Name via NameOf.
func New(payload any, opts ...message.Option) message.Envelope {
	return message.New(message.KindCommand, NameOf(payload), payload, opts...)
}
