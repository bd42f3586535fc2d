package saga_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/foundation/core/saga"
)

type orderData struct {
	OrderID string
	Refunds int
}

const (
	stateNew               saga.State = "New"
	stateAwaitingPayment   saga.State = "AwaitingPayment"
	stateAwaitingInventory saga.State = "AwaitingInventory"
	stateCompleted         saga.State = "Completed"
	stateFailed            saga.State = "Failed"
)

type orderPlaced struct{ CorrelationID string }
type paymentProcessed struct{ CorrelationID string }
type inventoryReservationFailed struct{ CorrelationID string }
type inventoryReserved struct{ CorrelationID string }

// newOrderSagaDefinition builds the OrderSaga of spec §8 scenario 6:
// OrderPlaced -> AwaitingPayment; PaymentProcessed registers a RefundPayment
// compensation and moves to AwaitingInventory; InventoryReservationFailed
// invokes the compensation and finalizes into Failed.
func newOrderSagaDefinition(refundCalls *int) *saga.Definition[orderData] {
	def := saga.NewDefinition[orderData](stateNew)

	def.AddTransition(stateNew, saga.Transition[orderData]{
		Trigger: "orderPlaced",
		Action: func(sc saga.StateContext[orderData]) error {
			evt := sc.Event.(orderPlaced)
			sc.Instance.Data.OrderID = evt.CorrelationID
			return nil
		},
		To: stateAwaitingPayment,
	})

	def.AddTransition(stateAwaitingPayment, saga.Transition[orderData]{
		Trigger: "paymentProcessed",
		Action: func(sc saga.StateContext[orderData]) error {
			sc.Compensation.Add("RefundPayment", func(context.Context) error {
				*refundCalls++
				return nil
			})
			return nil
		},
		To: stateAwaitingInventory,
	})

	def.AddTransition(stateAwaitingInventory, saga.Transition[orderData]{
		Trigger: "inventoryReserved",
		To:      stateCompleted,
		Finalize: true,
	})

	def.AddTransition(stateAwaitingInventory, saga.Transition[orderData]{
		Trigger: "inventoryReservationFailed",
		Action: func(sc saga.StateContext[orderData]) error {
			return sc.Compensation.Compensate(context.Background(), false)
		},
		To:       stateFailed,
		Finalize: true,
	})

	return def
}

func TestOrchestrator_CompensationOnLateFailure(t *testing.T) {
	var refundCalls int
	def := newOrderSagaDefinition(&refundCalls)
	repo := saga.NewMemoryStorage[orderData]()
	orch := saga.NewOrchestrator(def, repo)

	ctx := context.Background()
	correlationID := "order-42"

	require.NoError(t, orch.HandleEnvelope(ctx, envelopeFor("orderPlaced", orderPlaced{CorrelationID: correlationID}, correlationID)))
	require.NoError(t, orch.HandleEnvelope(ctx, envelopeFor("paymentProcessed", paymentProcessed{CorrelationID: correlationID}, correlationID)))
	require.NoError(t, orch.HandleEnvelope(ctx, envelopeFor("inventoryReservationFailed", inventoryReservationFailed{CorrelationID: correlationID}, correlationID)))

	assert.Equal(t, 1, refundCalls, "RefundPayment must run exactly once")

	inst, err := repo.Find(ctx, correlationID)
	require.NoError(t, err)
	assert.Equal(t, stateFailed, inst.CurrentState)
	assert.True(t, inst.IsCompleted)
}

func TestOrchestrator_HappyPathCompletes(t *testing.T) {
	var refundCalls int
	def := newOrderSagaDefinition(&refundCalls)
	repo := saga.NewMemoryStorage[orderData]()
	orch := saga.NewOrchestrator(def, repo)

	ctx := context.Background()
	correlationID := "order-7"

	require.NoError(t, orch.HandleEnvelope(ctx, envelopeFor("orderPlaced", orderPlaced{CorrelationID: correlationID}, correlationID)))
	require.NoError(t, orch.HandleEnvelope(ctx, envelopeFor("paymentProcessed", paymentProcessed{CorrelationID: correlationID}, correlationID)))
	require.NoError(t, orch.HandleEnvelope(ctx, envelopeFor("inventoryReserved", inventoryReserved{CorrelationID: correlationID}, correlationID)))

	assert.Equal(t, 0, refundCalls)

	inst, err := repo.Find(ctx, correlationID)
	require.NoError(t, err)
	assert.Equal(t, stateCompleted, inst.CurrentState)
	assert.True(t, inst.IsCompleted)
}

func TestOrchestrator_MissingCorrelationIDIsIgnored(t *testing.T) {
	var refundCalls int
	def := newOrderSagaDefinition(&refundCalls)
	repo := saga.NewMemoryStorage[orderData]()
	orch := saga.NewOrchestrator(def, repo)

	err := orch.HandleEnvelope(context.Background(), envelopeFor("orderPlaced", orderPlaced{}, ""))
	require.NoError(t, err)
	assert.Equal(t, int64(1), orch.Stats().Ignored)
}

func TestOrchestrator_ConcurrencyConflictLeavesNoVisibleMutation(t *testing.T) {
	def := saga.NewDefinition[orderData](stateNew)
	def.AddTransition(stateNew, saga.Transition[orderData]{Trigger: "orderPlaced", To: stateAwaitingPayment})

	repo := saga.NewMemoryStorage[orderData]()
	ctx := context.Background()

	inst := &saga.Instance[orderData]{CorrelationID: "order-9", CurrentState: stateNew}
	require.NoError(t, repo.Save(ctx, inst))

	stale := &saga.Instance[orderData]{CorrelationID: "order-9", CurrentState: stateAwaitingPayment, Version: inst.Version}
	require.NoError(t, repo.Update(ctx, inst)) // bump the stored version out from under `stale`

	err := repo.Update(ctx, stale)
	var concErr *saga.ConcurrencyError
	require.True(t, errors.As(err, &concErr))

	current, findErr := repo.Find(ctx, "order-9")
	require.NoError(t, findErr)
	assert.Equal(t, stateAwaitingPayment, current.CurrentState)
}

func TestCompensationStack_EmptyIsNoop(t *testing.T) {
	stack := saga.NewCompensationStack()
	assert.NoError(t, stack.Compensate(context.Background(), true))
}

func TestCompensationStack_LIFOOrder(t *testing.T) {
	stack := saga.NewCompensationStack()
	var order []string
	stack.Add("first", func(context.Context) error { order = append(order, "first"); return nil })
	stack.Add("second", func(context.Context) error { order = append(order, "second"); return nil })

	require.NoError(t, stack.Compensate(context.Background(), true))
	assert.Equal(t, []string{"second", "first"}, order)
}
