package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/foundation/core/message"
	"github.com/dmitrymomot/foundation/core/pipeline"
	"github.com/dmitrymomot/foundation/core/queue"
	"github.com/dmitrymomot/foundation/core/retry"
)

// Ping is the broker's smoke-test command: a single handler logs its
// sequence number and returns nil, giving the command dispatcher's FIFO guarantee (spec
// §8 scenario 1) something trivial to exercise end to end.
type Ping struct {
	Sequence int
}

// ServerTime is the broker's smoke-test query.
type ServerTime struct{}

// ServerTimeView is ServerTime's typed response.
type ServerTimeView struct {
	Now time.Time
}

// WelcomeEmail is a background job routed through the named queue
// processor (spec §4.8) rather than dispatched inline.
type WelcomeEmail struct {
	OrderID string
}

// OrderPlaced starts an OrderSaga instance (spec §8 scenario 6).
type OrderPlaced struct {
	OrderID string
	Amount  int64
}

// PaymentProcessed advances an OrderSaga from AwaitingPayment to
// AwaitingInventory, registering a RefundPayment compensation.
type PaymentProcessed struct {
	OrderID   string
	PaymentID string
}

// InventoryReservationFailed triggers the OrderSaga's compensation path.
type InventoryReservationFailed struct {
	OrderID string
	Reason  string
}

func newPingHandler(log *slog.Logger) func(ctx context.Context, cmd Ping) error {
	return func(ctx context.Context, cmd Ping) error {
		log.InfoContext(ctx, "ping handled", slog.Int("sequence", cmd.Sequence))
		return nil
	}
}

func newServerTimeHandler() func(ctx context.Context, q ServerTime) (ServerTimeView, error) {
	return func(ctx context.Context, q ServerTime) (ServerTimeView, error) {
		return ServerTimeView{Now: time.Now().UTC()}, nil
	}
}

// newWelcomeEmailHandler adapts to queue.EnvelopeHandlerFunc: the queue
// hands back a message.Envelope whose Payload round-tripped through JSON,
// so it is decoded into WelcomeEmail before use rather than type-asserted.
func newWelcomeEmailHandler(log *slog.Logger) queue.EnvelopeHandlerFunc {
	return func(ctx context.Context, env message.Envelope) error {
		var we WelcomeEmail
		if raw, err := json.Marshal(env.Payload); err == nil {
			_ = json.Unmarshal(raw, &we)
		}
		log.InfoContext(ctx, "welcome email sent", slog.String("order_id", we.OrderID))
		return nil
	}
}

// paymentGateway is the saga's one external collaborator, modeled here as
// an interface so the OrderSaga's action closures stay testable without a
// real payment processor (mirrors §6's AuthorizationProvider/transport
// capability-interface shape applied to a domain collaborator).
type paymentGateway interface {
	Refund(ctx context.Context, paymentID string) error
}

type logOnlyGateway struct{ log *slog.Logger }

func (g logOnlyGateway) Refund(ctx context.Context, paymentID string) error {
	g.log.InfoContext(ctx, "payment refunded", slog.String("payment_id", paymentID))
	return nil
}

func fmtOrderID(prefix string, n int) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}

// classifyingErrorHandler turns core/retry's Transient/Critical/Permanent
// classification into the pipeline's ErrorHandling disposition, so the
// broker's decorator stack never needs an application-specific ErrorHandler
// for the common case.
func classifyingErrorHandler(ctx context.Context, err error, ec pipeline.ErrorContext) pipeline.ErrorAction {
	switch retry.Classify(err) {
	case retry.ClassCritical:
		return pipeline.Escalate()
	case retry.ClassTransient:
		if ec.RetryCount < ec.MaxRetries {
			return pipeline.RetryAfter(retry.DefaultBackoff().Delay(ec.RetryCount))
		}
		return pipeline.SendToDeadLetter("transient retries exhausted")
	default:
		return pipeline.SendToDeadLetter("permanent failure")
	}
}
