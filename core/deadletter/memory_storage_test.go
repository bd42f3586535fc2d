package deadletter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/foundation/core/deadletter"
	"github.com/dmitrymomot/foundation/core/event"
)

type shipmentFailed struct {
	ShipmentID string
}

func TestMemoryStorage_SendListRetryDiscard(t *testing.T) {
	store := deadletter.NewMemoryStorage()
	ctx := context.Background()

	env := event.New(shipmentFailed{ShipmentID: "ship-1"})
	id, err := store.Send(ctx, env, deadletter.Context{Reason: "handler exhausted retries", Component: "EventBus"})
	require.NoError(t, err)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	entries, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, deadletter.StatusActive, entries[0].Status)

	ok, err := store.Retry(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Retried)
	require.Equal(t, 0, stats.Active)

	ok, err = store.Discard(ctx, id)
	require.NoError(t, err)
	require.False(t, ok, "entry is no longer Active after Retry")
}

func TestSink_SatisfiesPipelineAndEventSinkShape(t *testing.T) {
	store := deadletter.NewMemoryStorage()
	sink := deadletter.NewSink(store, "TestComponent")

	env := event.New(shipmentFailed{ShipmentID: "ship-2"})
	err := sink.Send(context.Background(), env, "exhausted retries")
	require.NoError(t, err)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
