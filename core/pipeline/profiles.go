package pipeline

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/foundation/core/circuitbreaker"
	"github.com/dmitrymomot/foundation/core/retry"
)

// ProfileOptions supplies the shared dependencies a predefined profile wires
// into its decorators. Callers leave fields nil to fall back to sane
// defaults (a discard logger, no validators, no dead-letter sink).
type ProfileOptions struct {
	Logger         *slog.Logger
	Validators     []Validator
	DeadLetterSink DeadLetterSink
	ErrorHandler   ErrorHandler
}

func (o ProfileOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Minimal applies no decorators: the terminal processor runs bare.
func Minimal(terminal Stage) *Pipeline {
	return New("minimal", terminal)
}

// HighThroughput applies Metrics and a Retry of at most 1 retry,
// favoring low per-message overhead over resilience depth.
func HighThroughput(terminal Stage, opts ProfileOptions) *Pipeline {
	rec := NewMetricsRecorder()
	return New("high_throughput", terminal,
		Metrics(rec),
		Retry(retry.Linear(1, 0)),
	)
}

// Development applies debug-level Logging, Validation (when opts.Validators
// is non-empty) and a Retry of up to 2 retries, favoring visibility during
// iteration over throughput.
func Development(terminal Stage, opts ProfileOptions) *Pipeline {
	decorators := []Decorator{
		Logging(opts.logger(), slog.LevelDebug),
	}
	if len(opts.Validators) > 0 {
		decorators = append(decorators, Validation(opts.Validators...))
	}
	decorators = append(decorators, Retry(retry.Linear(2, 500*time.Millisecond)))
	return New("development", terminal, decorators...)
}

// Integration applies Metrics, info-level Logging, Validation (when
// opts.Validators is non-empty), a circuit breaker (5 failures / 50% rate /
// 30s break / minimum throughput 10), error handling (when opts.ErrorHandler
// is set; up to 3 retries) and exponential-backoff retry (max 3 retries,
// base 2s, cap 1m) — the spec's defaults for service-to-service integrations.
func Integration(terminal Stage, opts ProfileOptions) *Pipeline {
	br := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold:     5,
		FailureRateThreshold: 0.5,
		MinimumThroughput:    10,
		BreakDuration:        30 * time.Second,
	})
	decorators := []Decorator{
		Metrics(NewMetricsRecorder()),
		Logging(opts.logger(), slog.LevelInfo),
	}
	if len(opts.Validators) > 0 {
		decorators = append(decorators, Validation(opts.Validators...))
	}
	decorators = append(decorators, CircuitBreaker(br))
	if opts.ErrorHandler != nil {
		decorators = append(decorators, ErrorHandling(opts.ErrorHandler, opts.DeadLetterSink, 3))
	}
	decorators = append(decorators, Retry(retry.ExponentialBackoff(3, retry.Backoff{
		Base: 2 * time.Second, MaxDelay: time.Minute, Jitter: 0.3,
	})))
	return New("integration", terminal, decorators...)
}

// CriticalBusiness applies the fullest decorator set: Metrics, payload-level
// info Logging, Validation (when opts.Validators is non-empty), a stricter
// circuit breaker (10 failures / 30% rate / 1m break / minimum throughput
// 20), error handling (when opts.ErrorHandler is set; up to 5 retries) and
// an exponential-backoff retry of up to 5 retries — for flows where losing a
// message is unacceptable.
func CriticalBusiness(terminal Stage, opts ProfileOptions) *Pipeline {
	br := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold:     10,
		FailureRateThreshold: 0.3,
		MinimumThroughput:    20,
		BreakDuration:        time.Minute,
	})
	decorators := []Decorator{
		Metrics(NewMetricsRecorder()),
		WithPayload(opts.logger(), slog.LevelInfo),
	}
	if len(opts.Validators) > 0 {
		decorators = append(decorators, Validation(opts.Validators...))
	}
	decorators = append(decorators, CircuitBreaker(br))
	if opts.ErrorHandler != nil {
		decorators = append(decorators, ErrorHandling(opts.ErrorHandler, opts.DeadLetterSink, 5))
	}
	decorators = append(decorators, Retry(retry.ExponentialBackoff(5, retry.DefaultBackoff())))
	return New("critical_business", terminal, decorators...)
}
