package main

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/foundation/core/event"
	"github.com/dmitrymomot/foundation/core/saga"
)

// OrderSagaData is the OrderSaga's domain-specific fields (spec §3's
// Saga "...domain fields"), carried alongside the generic correlation
// id/state/version/timestamps every Instance already has.
type OrderSagaData struct {
	OrderID   string
	Amount    int64
	PaymentID string
}

const (
	stateAwaitingPayment   saga.State = "AwaitingPayment"
	stateAwaitingInventory saga.State = "AwaitingInventory"
	stateCompleted         saga.State = "Completed"
	stateFailed            saga.State = "Failed"
)

// newOrderSagaDefinition builds the state graph for spec §8 scenario 6:
// OrderPlaced moves a fresh instance to AwaitingPayment; PaymentProcessed
// registers a RefundPayment compensation and moves to AwaitingInventory;
// InventoryReservationFailed runs the compensation stack and finalizes the
// saga as Failed.
func newOrderSagaDefinition(gateway paymentGateway) *saga.Definition[OrderSagaData] {
	def := saga.NewDefinition[OrderSagaData](saga.State("New"))

	def.AddTransition(saga.State("New"), saga.Transition[OrderSagaData]{
		Trigger: event.NameOf(OrderPlaced{}),
		Action: func(sc saga.StateContext[OrderSagaData]) error {
			evt, ok := sc.Event.(OrderPlaced)
			if !ok {
				return fmt.Errorf("ordersaga: unexpected event payload %T", sc.Event)
			}
			sc.Instance.Data.OrderID = evt.OrderID
			sc.Instance.Data.Amount = evt.Amount
			return nil
		},
		To: stateAwaitingPayment,
	})

	def.AddTransition(stateAwaitingPayment, saga.Transition[OrderSagaData]{
		Trigger: event.NameOf(PaymentProcessed{}),
		Action: func(sc saga.StateContext[OrderSagaData]) error {
			evt, ok := sc.Event.(PaymentProcessed)
			if !ok {
				return fmt.Errorf("ordersaga: unexpected event payload %T", sc.Event)
			}
			sc.Instance.Data.PaymentID = evt.PaymentID
			sc.Compensation.Add("RefundPayment", func(ctx context.Context) error {
				return gateway.Refund(ctx, evt.PaymentID)
			})
			return nil
		},
		To: stateAwaitingInventory,
	})

	def.AddTransition(stateAwaitingInventory, saga.Transition[OrderSagaData]{
		Trigger: event.NameOf(InventoryReservationFailed{}),
		Action: func(sc saga.StateContext[OrderSagaData]) error {
			// RefundPayment (pushed in the prior transition) runs exactly
			// once here, LIFO, before the saga finalizes as Failed.
			return sc.Compensation.Compensate(context.Background(), false)
		},
		To:       stateFailed,
		Finalize: true,
	})

	return def
}
