package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotEligible is returned when feedback is submitted while the
	// project still has open tasks.
	ErrNotEligible = errors.New("project is not ready for completion feedback")

	// ErrDuplicateSubmission is returned when a member already has a
	// feedback record for the project.
	ErrDuplicateSubmission = errors.New("feedback already submitted for this project")

	// ErrNotMember is returned when the acting user does not belong to
	// the project.
	ErrNotMember = errors.New("user is not a member of this project")

	// ErrProjectCompleted is returned when a task mutation is attempted
	// on a completed project.
	ErrProjectCompleted = errors.New("project is completed")
)

// ValidationError reports a bad input value. It is always raised before
// any write is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
