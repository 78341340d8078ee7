// Package chain drives a quiz from its first url to the end of its chain of
// continuation urls.
package chain

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"quizagent/internal/components/assert"
	"quizagent/internal/components/telemetry"
	"quizagent/internal/decoder"
	"quizagent/internal/locator"
	"quizagent/internal/quiz"
	"quizagent/internal/resolver"
	"quizagent/lib/textutil"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_orchestrator_step    = "orchestrator.step"
	report_orchestrator_decode  = "orchestrator.decode"
	report_orchestrator_page    = "orchestrator.page"
	report_orchestrator_finish  = "orchestrator.finish"
	report_orchestrator_steps   = "orchestrator.steps"
	report_orchestrator_aborted = "orchestrator.aborted"
)

// pages are logged up to this many bytes at debug level
const debugExcerpt = 500

var (
	tracer = otel.Tracer("quizagent.internal.chain")
	meter  = otel.Meter("quizagent.internal.chain")

	stepCounter, _   = meter.Int64Counter("quiz.steps", metric.WithDescription("quiz steps attempted"))
	answerCounter, _ = meter.Int64Counter("quiz.answers", metric.WithDescription("answers submitted by kind"))
	chainCounter, _  = meter.Int64Counter("quiz.chains", metric.WithDescription("chains finished by outcome"))
)

type Renderer interface {
	Render(ctx context.Context, url string) (quiz.RenderedPage, error)
}

type TableLocator interface {
	Locate(ctx context.Context, payload quiz.Payload, quizUrl string) []quiz.LocatedTable
}

type AnswerResolver interface {
	Resolve(ctx context.Context, in resolver.Input) quiz.Answer
}

type Submitter interface {
	Submit(ctx context.Context, target string, sub quiz.Submission) (quiz.SubmissionResult, error)
}

type Dependencies struct {
	Renderer  Renderer
	Tables    TableLocator
	Resolver  AnswerResolver
	Submitter Submitter
}

type Options struct {
	// MaxSteps aborts a chain with ErrStepLimit once it would run more steps
	// than this, 0 disables the cap.
	MaxSteps int
}

// StepResult describes one completed step.
type StepResult struct {
	Step      int
	Url       string
	SubmitUrl string
	Answer    quiz.Answer
	Tables    []quiz.LocatedTable
	Result    quiz.SubmissionResult
	Duration  time.Duration
}

// Report is the outcome of a full chain. Steps holds every step that reached a
// submission, Err is nil when State is Terminal.
type Report struct {
	RunId   string
	Url     string
	Started time.Time
	Steps   []StepResult
	State   State
	Errors  error
	Err     error
}

// Orchestrator runs quiz chains. It holds no per chain state, so one
// orchestrator can run many chains concurrently.
type Orchestrator struct {
	deps     Dependencies
	maxSteps int
	tel      telemetry.API
}

func New(deps Dependencies, opts Options, tel telemetry.API) *Orchestrator {
	assert.NotNil(deps.Renderer, "renderer")
	assert.NotNil(deps.Tables, "table locator")
	assert.NotNil(deps.Resolver, "resolver")
	assert.NotNil(deps.Submitter, "submitter")
	assert.NotNil(tel)

	return &Orchestrator{
		deps:     deps,
		maxSteps: opts.MaxSteps,
		tel:      tel,
	}
}

func newChainState(url string) *ChainState {
	return &ChainState{
		RunId: uuid.NewString(),
		Url:   url,
		State: Idle,
	}
}

// SolveStep runs exactly one render, decode, resolve and submit cycle for the
// task and does not follow the continuation url.
func (o *Orchestrator) SolveStep(ctx context.Context, task quiz.Task) (StepResult, error) {
	state := newChainState(task.Url)
	state.Step = 1
	tel := telemetry.NewScopedAPI("chain "+state.RunId, o.tel)

	result, err := o.solveStep(ctx, tel, state, task)
	if err != nil {
		tel.ReportBroken(report_orchestrator_aborted, err)
		chainCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", Aborted.String())))
	}
	return result, err
}

// SolveFullQuiz follows the chain until a submission response carries no
// continuation url, a step fails, or the step cap is hit. Steps run strictly in
// sequence since each url is only known once the previous step was submitted.
func (o *Orchestrator) SolveFullQuiz(ctx context.Context, task quiz.Task) Report {
	state := newChainState(task.Url)
	tel := telemetry.NewScopedAPI("chain "+state.RunId, o.tel)

	ctx, span := tracer.Start(ctx, "chain:SolveFullQuiz")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", state.RunId),
		attribute.String("url", task.Url),
	)

	report := Report{RunId: state.RunId, Url: task.Url, Started: time.Now()}
	finish := func(err error) Report {
		report.State = state.State
		report.Errors = state.Errors
		report.Err = err

		outcome := state.State.String()
		chainCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		tel.ReportCount(report_orchestrator_steps, int64(len(report.Steps)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "chain aborted")
			tel.ReportBroken(report_orchestrator_aborted, err)
		} else {
			tel.ReportDebug(report_orchestrator_finish, "steps", len(report.Steps))
		}
		return report
	}

	for step := 1; ; step++ {
		state.Step = step
		if o.maxSteps > 0 && step > o.maxSteps {
			return finish(state.fail(fmt.Errorf("%w: %d", ErrStepLimit, o.maxSteps)))
		}

		stepTask := quiz.Task{Email: task.Email, Secret: task.Secret, Url: state.Url}
		result, err := o.solveStep(ctx, tel, state, stepTask)
		if err != nil {
			return finish(err)
		}
		report.Steps = append(report.Steps, result)

		if result.Result.NextUrl == "" {
			state.State = Terminal
			return finish(nil)
		}

		next, err := resolveNext(state.Url, result.Result.NextUrl)
		if err != nil {
			return finish(state.fail(err))
		}
		state.State = Continuing
		state.Url = next
	}
}

func resolveNext(current, next string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", fmt.Errorf("parse current url: %w", err)
	}
	ref, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("parse continuation url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (o *Orchestrator) solveStep(ctx context.Context, tel telemetry.API, state *ChainState, task quiz.Task) (StepResult, error) {
	ctx, span := tracer.Start(ctx, "chain:SolveStep")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", state.RunId),
		attribute.Int("step", state.Step),
		attribute.String("url", task.Url),
	)

	start := time.Now()
	stepCounter.Add(ctx, 1)

	fail := func(err error) (StepResult, error) {
		err = state.fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "step aborted")
		return StepResult{}, err
	}

	state.State = Rendering
	page, err := o.deps.Renderer.Render(ctx, task.Url)
	if err != nil {
		return fail(err)
	}
	tel.ReportDebug(report_orchestrator_page, "raw", textutil.Truncate(page.Html, debugExcerpt))

	state.State = Decoding
	payload, err := decoder.Decode(page.Html)
	if err != nil {
		state.recover(err)
		tel.ReportWarning(report_orchestrator_decode, err)
	}
	tel.ReportDebug(report_orchestrator_page, "decoded", payload.WasObfuscated, textutil.Truncate(payload.Text, debugExcerpt))

	state.State = Resolving
	submitUrl, err := locator.SubmitUrl(payload.Text)
	if err != nil {
		return fail(err)
	}

	located := o.deps.Tables.Locate(ctx, payload, task.Url)
	answer := o.deps.Resolver.Resolve(ctx, resolver.Input{
		QuizUrl: task.Url,
		Payload: payload,
		Tables:  located,
	})
	answerCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", answer.Kind.String())))
	if answer.Kind == quiz.AnswerUnresolved {
		state.recover(errors.New(answer.Reason))
	}

	state.State = Submitting
	result, err := o.deps.Submitter.Submit(ctx, submitUrl, quiz.Submission{
		Email:  task.Email,
		Secret: task.Secret,
		Url:    task.Url,
		Answer: answer,
	})
	if err != nil {
		return fail(err)
	}

	tel.ReportDebug(
		report_orchestrator_step,
		"step", state.Step,
		"answer", answer.String(),
		"status", string(result.Status),
		"next", result.NextUrl,
	)
	span.SetAttributes(
		attribute.String("answer.kind", answer.Kind.String()),
		attribute.String("status", string(result.Status)),
	)

	return StepResult{
		Step:      state.Step,
		Url:       task.Url,
		SubmitUrl: submitUrl,
		Answer:    answer,
		Tables:    located,
		Result:    result,
		Duration:  time.Since(start),
	}, nil
}
