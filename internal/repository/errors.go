package repository

import "errors"

// Common repository errors
var (
	// ErrProjectNotFound is returned when a project is not found
	ErrProjectNotFound = errors.New("project not found")

	// ErrTaskNotFound is returned when a task is not found
	ErrTaskNotFound = errors.New("task not found")

	// ErrFeedbackNotFound is returned when a feedback record is not found
	ErrFeedbackNotFound = errors.New("feedback not found")
)
