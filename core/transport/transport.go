// Package transport declares the §6 MessageTransport contract: the broker
// driver boundary between this module's dispatchers and an external queue
// or bus (AMQP, SQS, Kafka). No concrete driver ships here — security's
// MessageSigner/MessageEncryptor are meant to wrap a Transport's envelope
// body, not replace it, and outbox/inbox/queue processors call Dispatch
// functions that a Transport-backed implementation would satisfy over the
// wire instead of in-process.
package transport

import "context"

// State is a MessageTransport connection's lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
	Faulted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Envelope is the wire shape a Transport sends and receives, distinct from
// message.Envelope: it carries only what a broker needs to route and a
// caller needs to acknowledge, not the dispatcher-internal metadata.
type Envelope struct {
	MessageID     string
	CorrelationID string
	ContentType   string
	Headers       map[string]string
	Body          []byte
	RoutingKey    string
}

// Ack is how a Consumer settles a delivered Envelope.
type Ack int

const (
	// Acknowledge confirms successful processing.
	Acknowledge Ack = iota
	// Requeue negative-acknowledges a transient failure, asking the
	// broker to redeliver.
	Requeue
	// DeadLetter negative-acknowledges a permanent failure, routing the
	// envelope to the broker's dead-letter destination instead of
	// redelivering it.
	DeadLetter
)

// Handler processes a delivered Envelope and reports how to settle it.
type Handler func(ctx context.Context, env Envelope) Ack

// SubscribeOptions configures a Subscribe call (prefetch count, consumer
// group, and similar broker-specific knobs); left opaque here since it
// varies per driver.
type SubscribeOptions map[string]any

// Topology describes the queues, exchanges and bindings a driver should
// provision before traffic flows; left opaque for the same reason as
// SubscribeOptions.
type Topology map[string]any

// Consumer represents an active Subscribe registration that can be
// cancelled independently of the Transport's own lifecycle.
type Consumer interface {
	Cancel(ctx context.Context) error
}

// Transport is the §6 MessageTransport (broker driver) contract.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	Send(ctx context.Context, destination string, env Envelope) error
	Publish(ctx context.Context, topic string, env Envelope) error
	Subscribe(ctx context.Context, source string, handler Handler, opts SubscribeOptions) (Consumer, error)

	ConfigureTopology(ctx context.Context, topo Topology) error
	Health(ctx context.Context) error
	State() State
}
