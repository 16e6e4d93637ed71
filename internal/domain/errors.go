package domain

import "errors"

var (
	// ErrInvalidSchedule is returned when session parameters or question
	// slots violate the non-overlap invariant at creation time.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrOutOfWindow is returned for submissions outside the QUESTION phase
	// of the targeted slot. Expected and frequent; not a failure.
	ErrOutOfWindow = errors.New("submission outside answer window")
	// ErrDuplicateSubmission is returned for a second answer to the same slot.
	ErrDuplicateSubmission = errors.New("answer already submitted")
	// ErrSessionNotFound is returned when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates the submitted answer matches none of the
	// question's options.
	ErrOptionNotFound = errors.New("option not found")
	// ErrInvalidTransition is returned for illegal session status edges.
	ErrInvalidTransition = errors.New("invalid session status transition")
	// ErrUnavailable wraps storage or time-source failures; retryable by the
	// caller, never a raw driver error.
	ErrUnavailable = errors.New("storage unavailable")
)
