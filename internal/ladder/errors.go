package ladder

import (
	"errors"
	"fmt"
)

var (
	ErrNotRegistered     = errors.New("player not registered")
	ErrAlreadyRegistered = errors.New("player already registered")
	ErrAlreadyQueued     = errors.New("player already in queue")
	ErrNotQueued         = errors.New("player not in queue")
	ErrSelfReport        = errors.New("cannot report a match against yourself")
	ErrInvalidOutcome    = errors.New("outcome must be win or lose")
	ErrDuplicateReport   = errors.New("report already submitted for this opponent")
	ErrReportConflict    = errors.New("reports disagree on the outcome")
	ErrNoPendingReport   = errors.New("no pending report")
	ErrPersistence       = errors.New("ladder state unavailable")
	ErrInvalidPlayer     = errors.New("invalid player record")
	ErrCorruptSnapshot   = errors.New("corrupt ladder snapshot")
)

// ConflictError is returned when both sides of a pair claim the same outcome.
// Standing is the claim that was already on file and stays there.
type ConflictError struct {
	Standing  PendingReport
	Submitted Outcome
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s already reported %s against %s, got %s",
		ErrReportConflict, e.Standing.Reporter, e.Standing.Outcome, e.Standing.Opponent, e.Submitted)
}

func (e *ConflictError) Unwrap() error { return ErrReportConflict }
