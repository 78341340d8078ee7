package chain

import (
	"errors"
	"fmt"
)

// State is where a chain currently is. A chain starts Idle, cycles through
// Rendering, Decoding, Resolving, Submitting and Continuing once per step, and
// ends Terminal or Aborted.
type State int

const (
	Idle State = iota
	Rendering
	Decoding
	Resolving
	Submitting
	Continuing
	Terminal
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	case Decoding:
		return "decoding"
	case Resolving:
		return "resolving"
	case Submitting:
		return "submitting"
	case Continuing:
		return "continuing"
	case Terminal:
		return "terminal"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrStepLimit = errors.New("step limit reached")

// StepError is a step-fatal failure. State is the state the step was in when it
// failed, Err is one of the collaborator sentinels.
type StepError struct {
	Step  int
	Url   string
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) %s: %v", e.Step, e.State, e.Url, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ChainState is owned by a single chain run.
type ChainState struct {
	RunId string
	Url   string
	Step  int
	State State
	// Errors joins the recoverable problems met along the way.
	Errors error
}

func (c *ChainState) recover(err error) {
	c.Errors = errors.Join(c.Errors, fmt.Errorf("step %d: %w", c.Step, err))
}

func (c *ChainState) fail(err error) error {
	stepErr := &StepError{
		Step:  c.Step,
		Url:   c.Url,
		State: c.State,
		Err:   err,
	}
	c.State = Aborted
	return stepErr
}
