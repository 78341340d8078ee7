// Package service exposes the quiz chain over HTTP.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"

	"quizagent/internal/chain"
	"quizagent/internal/components/assert"
	"quizagent/internal/components/telemetry"
	"quizagent/internal/quiz"

	"github.com/google/uuid"
)

const (
	report_service_step    = "service.step"
	report_service_chain   = "service.chain"
	report_service_history = "service.history"
)

var (
	ErrUnauthorized = errors.New("invalid secret")
	ErrInvalidTask  = errors.New("email, secret and url are required")
)

type Solver interface {
	SolveStep(ctx context.Context, task quiz.Task) (chain.StepResult, error)
	SolveFullQuiz(ctx context.Context, task quiz.Task) chain.Report
}

// ReportRecorder keeps finished chain reports.
type ReportRecorder interface {
	Record(ctx context.Context, report chain.Report) error
}

// Service checks the shared secret of every task before any chain work starts.
type Service struct {
	solver   Solver
	secret   []byte
	recorder ReportRecorder
	tel      telemetry.API

	// background chains outlive the request that started them but not baseCtx
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewService creates a service, recorder may be nil to not keep chain reports.
func NewService(baseCtx context.Context, solver Solver, sharedSecret string, recorder ReportRecorder, tel telemetry.API) *Service {
	assert.NotNil(solver, "solver")
	assert.NotEmptyStr(sharedSecret, "shared secret")
	assert.NotNil(tel)

	return &Service{
		solver:   solver,
		secret:   []byte(sharedSecret),
		recorder: recorder,
		tel:      telemetry.NewScopedAPI("service", tel),
		baseCtx:  baseCtx,
	}
}

func (s *Service) authorize(task quiz.Task) error {
	if task.Email == "" || task.Secret == "" || task.Url == "" {
		return ErrInvalidTask
	}
	if subtle.ConstantTimeCompare([]byte(task.Secret), s.secret) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Step solves a single step of the task and returns its submission result.
func (s *Service) Step(ctx context.Context, task quiz.Task) (chain.StepResult, error) {
	err := s.authorize(task)
	if err != nil {
		return chain.StepResult{}, err
	}
	result, err := s.solver.SolveStep(ctx, task)
	if err != nil {
		s.tel.ReportWarning(report_service_step, err)
		return chain.StepResult{}, err
	}
	return result, nil
}

// StartChain runs the full chain of the task in the background and returns an
// id that tags its logs.
func (s *Service) StartChain(task quiz.Task) (string, error) {
	err := s.authorize(task)
	if err != nil {
		return "", err
	}

	jobId := uuid.NewString()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		report := s.solver.SolveFullQuiz(s.baseCtx, task)
		if s.recorder != nil {
			err := s.recorder.Record(context.WithoutCancel(s.baseCtx), report)
			if err != nil {
				s.tel.ReportWarning(report_service_history, "job", jobId, err)
			}
		}
		if report.Err != nil {
			s.tel.ReportWarning(report_service_chain, "job", jobId, "run", report.RunId, report.Err)
			return
		}
		s.tel.ReportDebug(report_service_chain, "job", jobId, "run", report.RunId, "steps", len(report.Steps))
	}()
	return jobId, nil
}

// Wait blocks until every background chain has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}
