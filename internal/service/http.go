package service

import (
	"encoding/json"
	"errors"
	"net/http"

	"quizagent/internal/chain"
	"quizagent/internal/quiz"
)

type stepResponse struct {
	Answer    quiz.Answer           `json:"answer"`
	SubmitUrl string                `json:"submit_url"`
	Result    quiz.SubmissionResult `json:"result"`
}

type chainResponse struct {
	JobId string `json:"job_id"`
}

type errorResponse struct {
	Error string `json:"error"`
	Step  int    `json:"step,omitempty"`
	State string `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	res := errorResponse{Error: err.Error()}
	code := http.StatusBadGateway

	var stepErr *chain.StepError
	switch {
	case errors.Is(err, ErrUnauthorized):
		code = http.StatusForbidden
	case errors.Is(err, ErrInvalidTask):
		code = http.StatusBadRequest
	case errors.As(err, &stepErr):
		res.Step = stepErr.Step
		res.State = stepErr.State.String()
	}
	writeJSON(w, code, res)
}

func decodeTask(w http.ResponseWriter, r *http.Request) (quiz.Task, error) {
	var task quiz.Task
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	err := decoder.Decode(&task)
	if err != nil {
		return quiz.Task{}, errors.Join(ErrInvalidTask, err)
	}
	return task, nil
}

// Mount registers the quiz routes on mux.
func (s *Service) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/quiz/step", s.handleStep)
	mux.HandleFunc("POST /v1/quiz/chain", s.handleChain)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *Service) handleStep(w http.ResponseWriter, r *http.Request) {
	task, err := decodeTask(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.Step(r.Context(), task)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{
		Answer:    result.Answer,
		SubmitUrl: result.SubmitUrl,
		Result:    result.Result,
	})
}

func (s *Service) handleChain(w http.ResponseWriter, r *http.Request) {
	task, err := decodeTask(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	jobId, err := s.StartChain(task)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, chainResponse{JobId: jobId})
}
