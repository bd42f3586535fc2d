package event_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/foundation/core/event"
)

type orderPlaced struct{ ID string }

func TestBus_FanOutWithPerHandlerRetry(t *testing.T) {
	var h1Calls, h2Calls atomic.Int32

	bus := event.NewBus(
		event.WithHandler(event.NewHandlerFunc(func(ctx context.Context, e orderPlaced) error {
			h1Calls.Add(1)
			return nil
		})),
		event.WithHandler(event.NewHandlerFunc(func(ctx context.Context, e orderPlaced) error {
			n := h2Calls.Add(1)
			if n < 3 {
				return errors.New("timeout talking to downstream")
			}
			return nil
		})),
		event.WithMaxRetries(3),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go bus.Start(ctx)
	t.Cleanup(func() { cancel(); _ = bus.Stop() })

	require.NoError(t, bus.Publish(context.Background(), orderPlaced{ID: "1"}))

	// h2's two retries wait 1s then 2s under the bus's internal backoff.
	require.Eventually(t, func() bool {
		return h1Calls.Load() == 1 && h2Calls.Load() == 3
	}, 5*time.Second, time.Millisecond, "expected h1=1 h2=3 invocations")

	assert.Equal(t, int64(1), bus.Stats().Published)
}

func TestBus_ErrorHandlerEscalate(t *testing.T) {
	escalated := make(chan struct{}, 1)

	bus := event.NewBus(
		event.WithHandler(event.NewHandlerFunc(func(ctx context.Context, e orderPlaced) error {
			return errors.New("boom")
		})),
		event.WithErrorHandler(func(err error, ec event.ErrorContext) event.Decision {
			return event.Escalate()
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go bus.Start(ctx)
	t.Cleanup(func() { cancel(); _ = bus.Stop() })

	go func() {
		for {
			if bus.Stats().Escalated > 0 {
				escalated <- struct{}{}
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	require.NoError(t, bus.Publish(context.Background(), orderPlaced{ID: "2"}))

	select {
	case <-escalated:
	case <-time.After(time.Second):
		t.Fatal("expected escalated count to increment")
	}
}

func TestBus_NoSubscribersIsNotAnError(t *testing.T) {
	bus := event.NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	go bus.Start(ctx)
	t.Cleanup(func() { cancel(); _ = bus.Stop() })

	assert.NoError(t, bus.Publish(context.Background(), orderPlaced{ID: "3"}))
}
