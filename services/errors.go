package services

import (
	"errors"
	"fmt"

	"registration-api/models"
)

// Caller errors surfaced by the lifecycle service. These are never retried
// internally; controllers translate them into user-facing responses.
var (
	ErrNotFound      = errors.New("submission not found")
	ErrMissingReason = errors.New("rejection requires a reason")
	// ErrConcurrentModification signals a lost race on a read-modify-write
	// transition. The lifecycle retries it a bounded number of times before
	// surfacing it.
	ErrConcurrentModification = errors.New("submission modified concurrently")
	// ErrSubmissionClosed guards assign/attach/detach against terminal
	// submissions.
	ErrSubmissionClosed = errors.New("submission is in a terminal state")
)

// IncompleteSubmissionError reports a create attempt that fails the
// category's completeness rules. It carries the full structured verdict so
// callers can render an actionable checklist.
type IncompleteSubmissionError struct {
	Result CompletenessResult
}

func (e *IncompleteSubmissionError) Error() string {
	return fmt.Sprintf("submission incomplete: %d missing fields, %d missing documents",
		len(e.Result.MissingFields), len(e.Result.MissingDocuments))
}

// InvalidTransitionError reports a target status unreachable from the
// current one. Both are carried so callers can explain why the action is
// disallowed.
type InvalidTransitionError struct {
	Current   models.SubmissionStatus
	Attempted models.SubmissionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q", e.Current, e.Attempted)
}
