package inbox_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/foundation/core/event"
	"github.com/dmitrymomot/foundation/core/inbox"
	"github.com/dmitrymomot/foundation/core/message"
)

type paymentReceived struct {
	PaymentID string
}

func TestProcessor_DropsDuplicateByMessageID(t *testing.T) {
	storage := inbox.NewMemoryStorage()

	var calls atomic.Int32
	proc := inbox.NewProcessor(storage, inbox.WithDispatchFunc(func(ctx context.Context, env message.Envelope) error {
		calls.Add(1)
		return nil
	}))

	env := event.New(paymentReceived{PaymentID: "pay-1"})

	require.NoError(t, proc.Receive(context.Background(), env))
	require.NoError(t, proc.Receive(context.Background(), env))

	require.Equal(t, int32(1), calls.Load())
	stats := proc.Stats()
	require.Equal(t, int64(1), stats.Processed)
	require.Equal(t, int64(1), stats.Duplicates)
	require.InDelta(t, 0.5, stats.DeduplicationRate, 0.0001)
}

func TestProcessor_DistinctMessageIDsBothDispatch(t *testing.T) {
	storage := inbox.NewMemoryStorage()

	var calls atomic.Int32
	proc := inbox.NewProcessor(storage, inbox.WithDispatchFunc(func(ctx context.Context, env message.Envelope) error {
		calls.Add(1)
		return nil
	}))

	require.NoError(t, proc.Receive(context.Background(), event.New(paymentReceived{PaymentID: "pay-1"})))
	require.NoError(t, proc.Receive(context.Background(), event.New(paymentReceived{PaymentID: "pay-2"})))

	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, int64(0), proc.Stats().Duplicates)
}

func TestProcessor_NoDispatchFuncFailsHealthcheck(t *testing.T) {
	storage := inbox.NewMemoryStorage()
	proc := inbox.NewProcessor(storage)

	require.Error(t, proc.Healthcheck(context.Background()))

	err := proc.Receive(context.Background(), event.New(paymentReceived{PaymentID: "pay-3"}))
	require.ErrorIs(t, err, inbox.ErrDispatchFuncNil)
}
