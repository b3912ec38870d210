package objects

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrRecordNotFound) || err.Error() == "record not found"
}

// SplitError means the LLM decomposition output could not be turned into a
// valid sub-task plan.
type SplitError struct {
	Reason string
}

func (e *SplitError) Error() string {
	return fmt.Sprintf("split failed: %s", e.Reason)
}

func NewSplitError(format string, args ...interface{}) *SplitError {
	return &SplitError{Reason: fmt.Sprintf(format, args...)}
}

func IsSplitError(err error) bool {
	var se *SplitError
	return errors.As(err, &se)
}

// TransitionError means a conditional status update found the row in a
// different state than expected, usually because another worker claimed it.
type TransitionError struct {
	ID   string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s rejected for %s", e.From, e.To, e.ID)
}

func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// StepError wraps a failure inside a workflow step so the engine can report
// which step broke the stream.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %s", e.Step, e.Err.Error())
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func NewStepError(step string, err error) *StepError {
	return &StepError{Step: step, Err: err}
}
