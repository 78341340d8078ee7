// Package resolver derives the answer of a quiz step from its decoded payload and
// located tables.
//
// Answers come from an ordered list of strategies. The first strategy that
// declares itself applicable decides the answer, later strategies are never
// consulted.
package resolver

import (
	"context"

	"quizagent/internal/components/assert"
	"quizagent/internal/components/telemetry"
	"quizagent/internal/quiz"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const report_resolver_resolve = "resolver.resolve"

var tracer = otel.Tracer("quizagent.internal.resolver")

// Input is everything a strategy may look at.
type Input struct {
	QuizUrl string
	Payload quiz.Payload
	Tables  []quiz.LocatedTable
}

type Strategy interface {
	Name() string
	// Resolve returns false when the strategy does not apply to the input.
	Resolve(ctx context.Context, in Input) (quiz.Answer, bool)
}

type Resolver struct {
	strategies []Strategy
	tel        telemetry.API
}

func New(tel telemetry.API, strategies ...Strategy) Resolver {
	assert.NotNil(tel)
	return Resolver{
		strategies: strategies,
		tel:        telemetry.NewScopedAPI("resolver", tel),
	}
}

func (r Resolver) Resolve(ctx context.Context, in Input) quiz.Answer {
	ctx, span := tracer.Start(ctx, "Resolve")
	defer span.End()

	for _, s := range r.strategies {
		answer, ok := s.Resolve(ctx, in)
		if !ok {
			continue
		}
		span.SetAttributes(
			attribute.String("strategy", s.Name()),
			attribute.String("answer.kind", answer.Kind.String()),
		)
		r.tel.ReportDebug(report_resolver_resolve, s.Name(), answer.Kind.String(), answer.String())
		return answer
	}

	r.tel.ReportWarning(report_resolver_resolve, "no applicable strategy")
	return quiz.Unresolved("no applicable strategy")
}
