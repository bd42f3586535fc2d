package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/foundation/core/circuitbreaker"
	"github.com/dmitrymomot/foundation/core/health"
	"github.com/dmitrymomot/foundation/core/logger"
	"github.com/dmitrymomot/foundation/core/message"
	"github.com/dmitrymomot/foundation/core/retry"
)

// Logging wraps every invocation with start/success/failure log lines at the
// given level, following core/command/middleware.go's LoggingMiddleware.
func Logging(log *slog.Logger, level slog.Level) Decorator {
	return func(next Stage) Stage {
		return func(ctx context.Context, env message.Envelope, pctx message.ProcessingContext) message.ProcessingResult {
			start := time.Now()
			log.Log(ctx, level, "processing message",
				logger.Component(pctx.Component),
				logger.Type(string(env.Kind)),
				logger.Action(env.Name),
				logger.ID("message_id", env.MessageID.String()),
			)
			result := next(ctx, env, pctx)
			attrs := []any{
				logger.Component(pctx.Component),
				logger.Action(env.Name),
				logger.Duration(time.Since(start)),
			}
			if result.IsSuccess() {
				log.Log(ctx, level, "message processed", attrs...)
			} else {
				attrs = append(attrs, logger.Error(result.Err()))
				log.Error("message processing failed", attrs...)
			}
			return result
		}
	}
}

// WithPayload is a Logging variant for the CriticalBusiness profile, which
// additionally logs the envelope payload.
func WithPayload(log *slog.Logger, level slog.Level) Decorator {
	return func(next Stage) Stage {
		return func(ctx context.Context, env message.Envelope, pctx message.ProcessingContext) message.ProcessingResult {
			log.Log(ctx, level, "processing message",
				logger.Component(pctx.Component),
				logger.Action(env.Name),
				slog.Any("payload", env.Payload),
			)
			return next(ctx, env, pctx)
		}
	}
}

// Validator validates an envelope's payload before it reaches the handler.
// Implementations return a validation error describing the failure.
type Validator interface {
	Validate(ctx context.Context, env message.Envelope) error
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(ctx context.Context, env message.Envelope) error

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, env message.Envelope) error { return f(ctx, env) }

// ErrValidationFailed is returned (wrapped) when a Validator rejects a message.
type ErrValidationFailed struct{ Reason error }

func (e *ErrValidationFailed) Error() string { return "validation failed: " + e.Reason.Error() }
func (e *ErrValidationFailed) Unwrap() error { return e.Reason }

// Validation rejects envelopes failing any of validators before invoking next.
func Validation(validators ...Validator) Decorator {
	return func(next Stage) Stage {
		return func(ctx context.Context, env message.Envelope, pctx message.ProcessingContext) message.ProcessingResult {
			for _, v := range validators {
				if err := v.Validate(ctx, env); err != nil {
					return message.Failed(&ErrValidationFailed{Reason: err})
				}
			}
			return next(ctx, env, pctx)
		}
	}
}

// Retry re-invokes next according to policy until it succeeds, the policy
// refuses another attempt, or ctx is cancelled. It mirrors
// core/retry.Classify/Backoff's suspension-point convention: every sleep
// between attempts goes through retry.Sleep so cancellation surfaces promptly.
func Retry(policy retry.Policy) Decorator {
	return func(next Stage) Stage {
		return func(ctx context.Context, env message.Envelope, pctx message.ProcessingContext) message.ProcessingResult {
			attempt := 0
			for {
				result := next(ctx, env, pctx)
				if result.IsSuccess() {
					return result
				}
				if !policy.ShouldRetry(result.Err(), attempt) {
					return result
				}
				if err := retry.Sleep(ctx, policy.Delay(attempt)); err != nil {
					return message.Failed(err)
				}
				attempt++
				pctx = pctx.WithRetry()
			}
		}
	}
}

// CircuitBreaker fails fast with circuitbreaker.ErrOpen while br is Open,
// otherwise runs next and records the outcome.
func CircuitBreaker(br *circuitbreaker.Breaker) Decorator {
	return func(next Stage) Stage {
		return func(ctx context.Context, env message.Envelope, pctx message.ProcessingContext) message.ProcessingResult {
			if !br.Allow() {
				return message.Failed(circuitbreaker.ErrOpen)
			}
			result := next(ctx, env, pctx)
			br.Execute(ctx, func(context.Context) error {
				if result.IsSuccess() {
					return nil
				}
				return result.Err()
			})
			return result
		}
	}
}

// ErrorAction is the disposition an ErrorHandler chooses for a failed
// invocation, mirroring the spec's {Retry, SendToDeadLetter, Discard,
// Escalate} decision set.
type ErrorAction struct {
	kind   errorActionKind
	delay  time.Duration
	reason string
}

type errorActionKind int

const (
	actionRetry errorActionKind = iota
	actionDeadLetter
	actionDiscard
	actionEscalate
)

// RetryAfter requests another attempt after delay.
func RetryAfter(delay time.Duration) ErrorAction { return ErrorAction{kind: actionRetry, delay: delay} }

// SendToDeadLetter requests the message be moved to the dead-letter sink.
func SendToDeadLetter(reason string) ErrorAction {
	return ErrorAction{kind: actionDeadLetter, reason: reason}
}

// Discard requests the message be dropped without further action.
func Discard(reason string) ErrorAction { return ErrorAction{kind: actionDiscard, reason: reason} }

// Escalate requests the failure propagate as an EscalatedError to the caller.
func Escalate() ErrorAction { return ErrorAction{kind: actionEscalate} }

// ErrorContext describes a failed invocation to an ErrorHandler.
type ErrorContext struct {
	RetryCount       int
	MaxRetries       int
	Component        string
	FirstFailureTime time.Time
	LastFailureTime  time.Time
	Metadata         message.Metadata
}

// ErrorHandler decides the disposition of a failed invocation.
type ErrorHandler func(ctx context.Context, err error, ec ErrorContext) ErrorAction

// DeadLetterSink persists a message that has exhausted its retry budget.
type DeadLetterSink interface {
	Send(ctx context.Context, env message.Envelope, reason string) error
}

// EscalatedError wraps an error an ErrorHandler chose to escalate rather than
// retry, dead-letter, or discard.
type EscalatedError struct{ Cause error }

func (e *EscalatedError) Error() string { return "escalated: " + e.Cause.Error() }
func (e *EscalatedError) Unwrap() error { return e.Cause }

// ErrorHandling applies handler's disposition on failure: Retry loops in
// place (bounded by maxRetries), SendToDeadLetter forwards to dlq and reports
// success to the caller (per the spec, dead-lettering is not a caller-visible
// failure), Discard reports success silently, and Escalate wraps the error in
// EscalatedError. Absent an explicit handler, callers should prefer Retry
// instead; this decorator exists for profiles that need the fuller
// disposition set (Integration, CriticalBusiness).
func ErrorHandling(handler ErrorHandler, dlq DeadLetterSink, maxRetries int) Decorator {
	return func(next Stage) Stage {
		return func(ctx context.Context, env message.Envelope, pctx message.ProcessingContext) message.ProcessingResult {
			first := time.Now()
			for {
				result := next(ctx, env, pctx)
				if result.IsSuccess() {
					return result
				}

				ec := ErrorContext{
					RetryCount:       pctx.RetryCount,
					MaxRetries:       maxRetries,
					Component:        pctx.Component,
					FirstFailureTime: first,
					LastFailureTime:  time.Now(),
					Metadata:         env.Metadata,
				}
				action := handler(ctx, result.Err(), ec)

				switch action.kind {
				case actionRetry:
					if pctx.RetryCount >= maxRetries {
						return result
					}
					if err := retry.Sleep(ctx, action.delay); err != nil {
						return message.Failed(err)
					}
					pctx = pctx.WithRetry()
					continue
				case actionDeadLetter:
					if dlq != nil {
						_ = dlq.Send(ctx, env, action.reason)
					}
					return message.Successful()
				case actionDiscard:
					return message.Successful()
				case actionEscalate:
					return message.Failed(&EscalatedError{Cause: result.Err()})
				default:
					return result
				}
			}
		}
	}
}

// MetricsRecorder receives per-invocation outcomes from the Metrics decorator.
type MetricsRecorder struct {
	window   *health.Window
	counters *metricsCounters
}

type metricsCounters struct {
	processed atomic.Int64
	failed    atomic.Int64
}

// NewMetricsRecorder creates a recorder backed by a rolling 100-sample
// duration window, matching the spec's "latency histograms (rolling
// 100-sample averages)" requirement.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{window: health.NewWindow(100), counters: &metricsCounters{}}
}

// AverageDuration returns the rolling average processing duration.
func (m *MetricsRecorder) AverageDuration() time.Duration {
	return time.Duration(m.window.Average())
}

// Processed returns the total number of invocations observed.
func (m *MetricsRecorder) Processed() int64 { return m.counters.processed.Load() }

// Failed returns the total number of failed invocations observed.
func (m *MetricsRecorder) Failed() int64 { return m.counters.failed.Load() }

// Metrics records invocation counts and a rolling duration average into rec.
func Metrics(rec *MetricsRecorder) Decorator {
	return func(next Stage) Stage {
		return func(ctx context.Context, env message.Envelope, pctx message.ProcessingContext) message.ProcessingResult {
			start := time.Now()
			result := next(ctx, env, pctx)
			rec.window.Add(float64(time.Since(start)))
			rec.counters.processed.Add(1)
			if !result.IsSuccess() {
				rec.counters.failed.Add(1)
			}
			return result
		}
	}
}
