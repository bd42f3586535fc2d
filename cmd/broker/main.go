// Command broker is the composition root: it wires the command dispatcher,
// query dispatcher, event bus, outbox/inbox/queue processors and the
// OrderSaga orchestrator into one supervised errgroup, mirroring the
// teacher's own app/simple composition root (one main.go assembling
// independently-usable core packages rather than a monolith).
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/foundation/core/command"
	"github.com/dmitrymomot/foundation/core/deadletter"
	"github.com/dmitrymomot/foundation/core/event"
	"github.com/dmitrymomot/foundation/core/health"
	"github.com/dmitrymomot/foundation/core/inbox"
	"github.com/dmitrymomot/foundation/core/message"
	"github.com/dmitrymomot/foundation/core/outbox"
	"github.com/dmitrymomot/foundation/core/pipeline"
	"github.com/dmitrymomot/foundation/core/query"
	"github.com/dmitrymomot/foundation/core/queue"
	"github.com/dmitrymomot/foundation/core/saga"
)

func main() {
	cfg := loadConfig()

	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("broker exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, log *slog.Logger) error {
	dlqStore := deadletter.NewMemoryStorage()
	dlq := deadletter.NewSink(dlqStore, "broker")

	// --- command dispatcher (spec §4.2) ---
	cmdDispatcher := command.NewDispatcher(
		command.WithHandler(command.NewHandlerFunc(newPingHandler(log))),
		command.WithDispatcherLogger(log),
		command.WithDecorators(
			pipeline.Logging(log, slog.LevelInfo),
			pipeline.ErrorHandling(classifyingErrorHandler, dlq, 3),
		),
	)

	// --- query dispatcher (spec §4.3) ---
	queryDispatcher := query.NewDispatcher(
		query.WithHandler(query.NewHandlerFunc(newServerTimeHandler())),
		query.WithDispatcherLogger(log),
		query.WithDecorators(pipeline.Logging(log, slog.LevelInfo)),
	)

	// --- OrderSaga orchestrator (spec §4.9, §8 scenario 6) ---
	gateway := logOnlyGateway{log: log}
	orderDef := newOrderSagaDefinition(gateway)
	orderRepo := saga.NewMemoryStorage[OrderSagaData]()
	orderSaga := saga.NewOrchestrator(orderDef, orderRepo,
		saga.WithOrchestratorLogger[OrderSagaData](log),
		saga.WithStaleThreshold[OrderSagaData](cfg.StaleSagaThreshold),
	)

	// --- event bus (spec §4.4): the saga's trigger adapters are registered
	// as ordinary subscribers alongside any other handler ---
	busOpts := []event.Option{
		event.WithBusLogger(log),
		event.WithDeadLetterSink(dlq),
	}
	for _, sub := range orderSaga.Subscribers() {
		busOpts = append(busOpts, event.WithHandler(sub))
	}
	bus := event.NewBus(busOpts...)

	// --- inbox processor (spec §4.7): dedupes before handing to the
	// command/event dispatchers ---
	inboxStorage := inbox.NewMemoryStorage()
	inboxProcessor := inbox.NewProcessor(inboxStorage,
		inbox.WithDispatchFunc(func(ctx context.Context, env message.Envelope) error {
			return routeEnvelope(ctx, cmdDispatcher, bus, env)
		}),
		inbox.WithProcessorLogger(log),
	)

	// --- outbox processor (spec §4.6): durable at-least-once dispatch,
	// internal-dispatch branch routes back into the dispatcher/bus ---
	outboxStorage := outbox.NewMemoryStorage()
	outboxProcessor := outbox.NewProcessor(outboxStorage,
		outbox.WithWorkerCount(cfg.OutboxWorkers),
		outbox.WithProcessorLogger(log),
		outbox.WithDispatchFunc(func(ctx context.Context, env message.Envelope) error {
			return routeEnvelope(ctx, cmdDispatcher, bus, env)
		}),
	)

	// --- queue processor (spec §4.8): named FIFO queue for background work ---
	queueStorage := queue.NewMemoryStorage()
	queueProcessor, err := queue.NewProcessor(queueStorage)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(cmdDispatcher.Run(gctx))
	g.Go(queryDispatcher.Run(gctx))
	g.Go(bus.Run(gctx))
	g.Go(outboxProcessor.Run(gctx))
	g.Go(func() error {
		return queueProcessor.StartQueue(gctx, "welcome-email", newWelcomeEmailHandler(log))
	})

	// Demo traffic: one OrderPlaced -> PaymentProcessed -> Inventory
	// failure sequence exercising the saga's compensation path end to end,
	// plus a WelcomeEmail event passed through the inbox and a separate
	// welcome-email job enqueued on the named queue.
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-time.After(50 * time.Millisecond):
		}
		return demoTraffic(gctx, cmdDispatcher, queryDispatcher, bus, inboxProcessor, queueProcessor, log)
	})

	// Periodic composite health log (spec §4.11); a real deployment would
	// serve this over the operator's own health-check surface (§1, an
	// external collaborator) instead of logging it.
	g.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				reportHealth(gctx, log, cmdDispatcher, queryDispatcher, bus, outboxProcessor, queueProcessor)
			}
		}
	})

	<-gctx.Done()
	log.Info("broker shutting down")

	_ = queueProcessor.Stop()
	_ = outboxProcessor.Stop()
	_ = bus.Stop()
	_ = queryDispatcher.Stop()
	_ = cmdDispatcher.Stop()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// routeEnvelope dispatches env according to its Kind, the internal-dispatch
// branch used by both the outbox processor's empty-Destination entries and
// the inbox processor's post-dedup handoff (spec §4.6, §4.7).
func routeEnvelope(ctx context.Context, cmdDispatcher *command.Dispatcher, bus *event.Bus, env message.Envelope) error {
	switch env.Kind {
	case message.KindCommand:
		return cmdDispatcher.Send(ctx, env.Payload)
	case message.KindEvent:
		return bus.Publish(ctx, env.Payload,
			message.WithCorrelationID(env.CorrelationID),
			message.WithCausationID(env.MessageID.String()))
	default:
		return nil
	}
}

func demoTraffic(
	ctx context.Context,
	cmdDispatcher *command.Dispatcher,
	queryDispatcher *query.Dispatcher,
	bus *event.Bus,
	inboxProcessor *inbox.Processor,
	queueProcessor *queue.Processor,
	log *slog.Logger,
) error {
	if err := cmdDispatcher.Send(ctx, Ping{Sequence: 1}); err != nil {
		return err
	}
	if _, err := query.Send[ServerTimeView](ctx, queryDispatcher, ServerTime{}); err != nil {
		return err
	}

	orderID := fmtOrderID("order", 1)
	if err := bus.Publish(ctx, OrderPlaced{OrderID: orderID, Amount: 4200},
		message.WithCorrelationID(orderID)); err != nil {
		return err
	}
	if err := bus.Publish(ctx, PaymentProcessed{OrderID: orderID, PaymentID: "pay-1"},
		message.WithCorrelationID(orderID)); err != nil {
		return err
	}
	if err := bus.Publish(ctx, InventoryReservationFailed{OrderID: orderID, Reason: "out of stock"},
		message.WithCorrelationID(orderID)); err != nil {
		return err
	}

	if err := inboxProcessor.Receive(ctx, message.New(message.KindEvent, "WelcomeEmail", WelcomeEmail{OrderID: orderID})); err != nil {
		log.WarnContext(ctx, "inbox receive failed", slog.Any("error", err))
	}
	return queueProcessor.Enqueue(ctx, "welcome-email", message.New(message.KindEvent, "WelcomeEmail", WelcomeEmail{OrderID: orderID}))
}

func reportHealth(
	ctx context.Context,
	log *slog.Logger,
	cmdDispatcher *command.Dispatcher,
	queryDispatcher *query.Dispatcher,
	bus *event.Bus,
	outboxProcessor *outbox.Processor,
	queueProcessor *queue.Processor,
) {
	checks := map[string]health.Check{
		"command_dispatcher": health.CheckFunc(cmdDispatcher.Healthcheck),
		"query_dispatcher":   health.CheckFunc(queryDispatcher.Healthcheck),
		"event_bus":          health.CheckFunc(bus.Healthcheck),
		"outbox":             health.CheckFunc(outboxProcessor.Healthcheck),
		"queue":              health.CheckFunc(queueProcessor.Healthcheck),
	}
	composite := health.Aggregate(ctx, checks)
	log.InfoContext(ctx, "broker health", slog.String("status", composite.Status.String()))
}
