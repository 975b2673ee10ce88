package goals

import (
	"errors"

	"voice-reminders/internal/telephony"
)

var (
	ErrInvalidInput     = errors.New("goals: invalid input")
	ErrScheduleCreation = errors.New("goals: remote schedule creation failed")
	ErrInvalidGoalID    = errors.New("goals: goal id is not a valid uuid")
	ErrGoalNotFound     = errors.New("goals: goal not found")
	ErrCallLogNotFound  = errors.New("goals: call log not found")
	ErrGoalTerminal     = errors.New("goals: goal is in a terminal state")
	ErrStore            = errors.New("goals: store failure")

	// ErrMissingCallID is shared with the webhook parser.
	ErrMissingCallID = telephony.ErrMissingCallID
)

// StoreError wraps a local persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "goals: " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrGoalNotFound) || errors.Is(err, ErrCallLogNotFound) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
