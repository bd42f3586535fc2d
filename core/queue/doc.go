// Package queue implements the queue processor: named, long-lived FIFO
// queues used to decouple producers from slower consumers. It is built from
// two cooperating pieces sharing a Storage backend (EnqueuerRepository and
// WorkerRepository in one):
//
//   - Enqueuer persists entries carrying a message.Envelope, defaulting
//     queue/priority per call.
//   - Worker claims and processes entries from one or more named queues with
//     a bounded concurrent-entry pool, retrying on failure before moving an
//     entry to the dead letter queue (MemoryStorage delays each retry by
//     30s times the entry's retry count).
//
// Processor offers a one-pool-per-queue facade on top of Worker and Enqueuer
// for callers that want independent start/stop control per queue name
// instead of one pool spanning several queues.
//
// NewMemoryStorage provides an in-memory Storage for tests and local
// development; production deployments back Storage with a durable store
// (see store/redisstore for the pattern the outbox and inbox processors use).
//
//	storage := queue.NewMemoryStorage()
//	go storage.Start(ctx)
//
//	enqueuer, _ := queue.NewEnqueuer(storage, queue.WithDefaultQueue("emails"))
//	worker, _ := queue.NewWorker(storage, queue.WithQueues("emails"))
//	worker.RegisterHandler(queue.NewTypedHandler(handleEmail))
//	go worker.Start(ctx)
//
//	env := message.New(message.KindEvent, "main.EmailPayload", EmailPayload{To: "user@example.com"})
//	enqueuer.Enqueue(ctx, env)
package queue
