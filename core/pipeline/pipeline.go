// Package pipeline implements the processing pipeline decorator chain (spec
// §4.5): a terminal CoreMessageProcessor wrapped by zero or more decorators
// (logging, validation, retry, circuit breaker, error handling, metrics).
// Composition follows the generic Decorator[T]/ApplyDecorators pattern in
// github.com/dmitrymomot/foundation's core/command/decorator.go: decorators
// are applied in reverse registration order so the first-registered one runs
// outermost.
package pipeline

import (
	"context"

	"github.com/dmitrymomot/foundation/core/message"
)

// Stage processes a single envelope and returns a ProcessingResult. It is the
// unit every decorator wraps and the terminal CoreMessageProcessor implements.
type Stage func(ctx context.Context, env message.Envelope, pctx message.ProcessingContext) message.ProcessingResult

// Decorator wraps a Stage with cross-cutting behavior.
type Decorator func(next Stage) Stage

// Compose builds a single Stage out of terminal and decorators, applying them
// so the first entry in decorators becomes the outermost wrapper:
//
//	Compose(terminal, A, B, C) behaves as A(B(C(terminal)))
//
// This mirrors ApplyDecorators in the teacher's core/command/decorator.go,
// which folds its decorator slice back-to-front for the same reason.
func Compose(terminal Stage, decorators ...Decorator) Stage {
	s := terminal
	for i := len(decorators) - 1; i >= 0; i-- {
		s = decorators[i](s)
	}
	return s
}

// Pipeline is a named, reusable composition of decorators around a terminal
// stage. Dispatchers hold one Pipeline per message kind (or per profile) and
// invoke Process for every envelope they route to a handler.
type Pipeline struct {
	name     string
	terminal Stage
	composed Stage
}

// New builds a Pipeline named name around terminal, wrapped by decorators.
func New(name string, terminal Stage, decorators ...Decorator) *Pipeline {
	return &Pipeline{
		name:     name,
		terminal: terminal,
		composed: Compose(terminal, decorators...),
	}
}

// Name returns the pipeline's profile name, surfaced in logs and stats.
func (p *Pipeline) Name() string { return p.name }

// Process runs env through the composed decorator chain.
func (p *Pipeline) Process(ctx context.Context, env message.Envelope, pctx message.ProcessingContext) message.ProcessingResult {
	return p.composed(ctx, env, pctx)
}
