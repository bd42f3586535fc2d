package outbox_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/foundation/core/event"
	"github.com/dmitrymomot/foundation/core/message"
	"github.com/dmitrymomot/foundation/core/outbox"
)

type orderPlaced struct {
	OrderID string
}

// TestProcessor_AtLeastOnceOverSimulatedRestart exercises spec §8 scenario 3:
// enqueue 10 entries, let a processor complete 5 then stop (simulating a
// crash), start a fresh processor against the same storage, and confirm no
// entry is left pending once the second processor has run.
func TestProcessor_AtLeastOnceOverSimulatedRestart(t *testing.T) {
	storage := outbox.NewMemoryStorage(outbox.WithVisibilityTimeout(50 * time.Millisecond))

	for i := 0; i < 10; i++ {
		env := event.New(orderPlaced{OrderID: "order-1"})
		_, err := storage.Add(context.Background(), env, outbox.Options{MaxRetries: 3})
		require.NoError(t, err)
	}

	var dispatchCount atomic.Int64
	dispatch := func(ctx context.Context, env message.Envelope) error {
		dispatchCount.Add(1)
		return nil
	}

	first := outbox.NewProcessor(storage,
		outbox.WithWorkerCount(1),
		outbox.WithBatchSize(10),
		outbox.WithDispatchFunc(dispatch),
	)

	ctx1, cancel1 := context.WithCancel(context.Background())
	go func() { _ = first.Start(ctx1) }()

	require.Eventually(t, func() bool {
		return first.Stats().Processed >= 5
	}, time.Second, time.Millisecond, "first processor should complete at least 5 entries before being stopped")

	// Simulate a crash: stop without waiting for the remaining entries.
	cancel1()
	_ = first.Stop()

	second := outbox.NewProcessor(storage,
		outbox.WithWorkerCount(1),
		outbox.WithBatchSize(10),
		outbox.WithDispatchFunc(dispatch),
	)
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	go func() { _ = second.Start(ctx2) }()

	require.Eventually(t, func() bool {
		count, err := storage.GetPendingCount(context.Background())
		return err == nil && count == 0
	}, 2*time.Second, 10*time.Millisecond, "all 10 entries should eventually reach a terminal state")

	cancel2()
}

func TestProcessor_InternalDispatchAndRetry(t *testing.T) {
	storage := outbox.NewMemoryStorage()

	var calls atomic.Int32
	dispatch := func(ctx context.Context, env message.Envelope) error {
		n := calls.Add(1)
		if n < 3 {
			return errors.New("transient dispatch failure")
		}
		return nil
	}

	proc := outbox.NewProcessor(storage,
		outbox.WithWorkerCount(1),
		outbox.WithBatchSize(10),
		outbox.WithDispatchFunc(dispatch),
	)

	env := event.New(orderPlaced{OrderID: "order-2"})
	entry, err := proc.PublishToOutbox(context.Background(), env, outbox.Options{MaxRetries: 5, RetryDelay: time.Millisecond})
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = proc.Start(ctx) }()

	require.Eventually(t, func() bool {
		return proc.Stats().Processed == 1
	}, time.Second, time.Millisecond, "entry should eventually be processed after transient failures")

	require.Equal(t, int32(3), calls.Load())
}

func TestProcessor_ExhaustedRetriesMarksFailed(t *testing.T) {
	storage := outbox.NewMemoryStorage()

	proc := outbox.NewProcessor(storage,
		outbox.WithWorkerCount(1),
		outbox.WithBatchSize(10),
		outbox.WithDispatchFunc(func(ctx context.Context, env message.Envelope) error {
			return errors.New("permanent failure")
		}),
	)

	env := event.New(orderPlaced{OrderID: "order-3"})
	_, err := proc.PublishToOutbox(context.Background(), env, outbox.Options{MaxRetries: 2, RetryDelay: time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = proc.Start(ctx) }()

	require.Eventually(t, func() bool {
		return proc.Stats().Failed == 1
	}, time.Second, time.Millisecond, "entry should be marked failed after exhausting retries")
}

func TestProcessor_HighPriorityDirectEnqueue(t *testing.T) {
	storage := outbox.NewMemoryStorage()

	var dispatched atomic.Bool
	proc := outbox.NewProcessor(storage,
		outbox.WithWorkerCount(1),
		outbox.WithDispatchFunc(func(ctx context.Context, env message.Envelope) error {
			dispatched.Store(true)
			return nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = proc.Start(ctx) }()

	env := event.New(orderPlaced{OrderID: "urgent"})
	_, err := proc.PublishToOutbox(context.Background(), env, outbox.Options{Priority: 9})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return dispatched.Load()
	}, 500*time.Millisecond, time.Millisecond, "high-priority entry should be dispatched without waiting for the idle poll interval")
}
