// Package health provides the shared rolling-latency window, atomic
// counter snapshot conventions, and composite health aggregation used by
// every processor in this module (spec §4.11).
//
// Window tracks a rolling fixed-capacity sample set for latency metrics,
// consumed by core/pipeline's MetricsRecorder, which the Metrics decorator
// feeds. Aggregate combines
// each processor's Healthcheck into one {Healthy, Degraded, Unhealthy}
// composite:
//
//	checks := map[string]health.Check{
//		"dispatcher": health.CheckFunc(dispatcher.Healthcheck),
//		"outbox":     health.CheckFunc(outboxProcessor.Healthcheck),
//	}
//	composite := health.Aggregate(ctx, checks)
//	if !composite.Ready() {
//		// fail the readiness probe
//	}
//
// Serving that composite over HTTP or gRPC is the caller's concern — the
// health-check transport surface is an external collaborator this package
// does not implement.
package health
