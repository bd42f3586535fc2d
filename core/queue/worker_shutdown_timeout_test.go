package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/foundation/core/queue"
)

func TestWorker_ShutdownTimeout(t *testing.T) {
	t.Parallel()

	t.Run("returns error when shutdown timeout exceeded", func(t *testing.T) {
		t.Parallel()

		mockRepo := new(MockWorkerRepository)
		defer mockRepo.AssertExpectations(t)

		// Create a long-running entry
		payload := testPayload{Message: "long-running", Value: 1}
		entry := newTestEntry(queue.DefaultQueueName, payload, nil)

		mockRepo.On("ClaimEntry", mock.Anything, mock.Anything, []string{queue.DefaultQueueName}, mock.Anything).
			Return(entry, nil).Once()
		// Using .Maybe() for catch-all polls after entry is claimed
		mockRepo.On("ClaimEntry", mock.Anything, mock.Anything, []string{queue.DefaultQueueName}, mock.Anything).
			Return(nil, queue.ErrNoTaskToClaim).Maybe()
		// CompleteEntry may or may not be called depending on timing (entry completes after timeout)
		// Using .Maybe() because shutdown timeout may occur before entry completes
		mockRepo.On("CompleteEntry", mock.Anything, entry.ID).Return(nil).Maybe()

		// Use short timeout
		worker, err := queue.NewWorker(mockRepo,
			queue.WithPullInterval(10*time.Millisecond),
			queue.WithShutdownTimeout(50*time.Millisecond),
		)
		require.NoError(t, err)

		entryStarted := make(chan struct{})
		handler := queue.NewTypedHandler(func(ctx context.Context, payload testPayload) error {
			close(entryStarted)
			time.Sleep(200 * time.Millisecond) // Longer than shutdown timeout
			return nil
		})
		err = worker.RegisterHandler(handler)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			if err := worker.Start(ctx); err != nil {
				t.Logf("worker error: %v", err)
			}
		}()

		// Wait for entry to start
		<-entryStarted

		// Stop should timeout
		err = worker.Stop()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "shutdown timeout")
	})
}
