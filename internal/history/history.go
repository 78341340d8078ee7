// Package history keeps a record of finished chains so past runs can be
// inspected after the process that ran them exited.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quizagent/internal/chain"
	"quizagent/internal/components/assert"
)

type Run struct {
	Id      string
	Url     string
	Started time.Time
	State   string
	Error   string
	Steps   int
}

type Step struct {
	Step       int
	Url        string
	SubmitUrl  string
	Answer     string
	AnswerKind string
	Status     string
	NextUrl    string
	Reason     string
	Duration   time.Duration
}

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	assert.NotNil(database, "database")
	return Store{db: database}
}

// Record stores a chain report and all its steps in one transaction. Recording
// the same run twice replaces the first record.
func (s Store) Record(ctx context.Context, report chain.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var errText string
	if report.Err != nil {
		errText = report.Err.Error()
	}

	_, err = tx.ExecContext(ctx, "delete from step where run_id = ?", report.RunId)
	if err != nil {
		return fmt.Errorf("clear steps: %w", err)
	}
	_, err = tx.ExecContext(
		ctx,
		`insert into run(id, url, started_at, state, error) values (?, ?, ?, ?, ?)
		on conflict(id) do update set url = excluded.url, started_at = excluded.started_at,
		state = excluded.state, error = excluded.error`,
		report.RunId,
		report.Url,
		report.Started.UnixMilli(),
		report.State.String(),
		errText,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, step := range report.Steps {
		_, err = tx.ExecContext(
			ctx,
			`insert into step(run_id, step, url, submit_url, answer, answer_kind, status, next_url, reason, duration_ms)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunId,
			step.Step,
			step.Url,
			step.SubmitUrl,
			step.Answer.String(),
			step.Answer.Kind.String(),
			string(step.Result.Status),
			step.Result.NextUrl,
			step.Result.Reason,
			step.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", step.Step, err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit runs, newest first.
func (s Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select run.id, run.url, run.started_at, run.state, run.error, count(step.step)
		from run left join step on step.run_id = run.id
		group by run.id
		order by run.started_at desc
		limit ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt int64
		err := rows.Scan(&run.Id, &run.Url, &startedAt, &run.State, &run.Error, &run.Steps)
		if err != nil {
			return nil, err
		}
		run.Started = time.UnixMilli(startedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Steps returns the steps of a run in order.
func (s Store) Steps(ctx context.Context, runId string) ([]Step, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select step, url, submit_url, answer, answer_kind, status, next_url, reason, duration_ms
		from step where run_id = ? order by step`,
		runId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var step Step
		var durationMs int64
		err := rows.Scan(
			&step.Step,
			&step.Url,
			&step.SubmitUrl,
			&step.Answer,
			&step.AnswerKind,
			&step.Status,
			&step.NextUrl,
			&step.Reason,
			&durationMs,
		)
		if err != nil {
			return nil, err
		}
		step.Duration = time.Duration(durationMs) * time.Millisecond
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
