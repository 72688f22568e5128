package service

import (
	"errors"
	"fmt"
	"strings"

	"bookflow/internal/models"
)

var (
	// ErrStaleResult is returned to a caller whose availability response was
	// superseded by a newer request.
	ErrStaleResult        = errors.New("availability result superseded by a newer request")
	ErrNoQuery            = errors.New("no availability query to retry")
	ErrSubmissionInFlight = errors.New("booking submission already in progress")
	ErrNoEligibleStaff    = errors.New("slot has no eligible staff")
	ErrSlotNotInResult    = errors.New("slot is not part of the current availability result")
	ErrInvalidTransition  = errors.New("wizard transition not allowed")
)

// ValidationError reports malformed input caught before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AvailabilityFetchError wraps a transport or server failure while loading slots.
type AvailabilityFetchError struct {
	Params AvailabilityParams
	Err    error
}

func (e *AvailabilityFetchError) Error() string {
	return fmt.Sprintf("fetch availability for %s on %s: %v", e.Params.ServiceID, e.Params.Date, e.Err)
}

func (e *AvailabilityFetchError) Unwrap() error {
	return e.Err
}

// Retryable is always true: the same parameters can be re-issued with Retry.
func (e *AvailabilityFetchError) Retryable() bool {
	return true
}

// IncompleteBookingError blocks the summary and submission.
type IncompleteBookingError struct {
	Missing []string
}

func (e *IncompleteBookingError) Error() string {
	return "incomplete booking: missing " + strings.Join(e.Missing, ", ")
}

// SubmissionError is a failed create-appointment call. Message holds the
// server's text verbatim when it sent one.
type SubmissionError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return "submit booking: " + e.Err.Error()
	}
	return "submit booking failed"
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// TransitionError explains why the wizard refused to move.
type TransitionError struct {
	From    models.Step
	To      models.Step
	Missing []string
}

func (e *TransitionError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("cannot move from %s to %s: missing %s", e.From, e.To, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
