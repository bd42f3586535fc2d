package saga_test

import (
	"github.com/dmitrymomot/foundation/core/message"
)

// envelopeFor builds a test event envelope carrying correlationID both on
// the envelope itself and (by construction) via the payload's own
// CorrelationID field, exercising the orchestrator's primary extraction
// path (spec §4.9 step 1: "Preferred: e.correlation_id").
func envelopeFor(name string, payload any, correlationID string) message.Envelope {
	var opts []message.Option
	if correlationID != "" {
		opts = append(opts, message.WithCorrelationID(correlationID))
	}
	return message.New(message.KindEvent, name, payload, opts...)
}
