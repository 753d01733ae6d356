package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: the targeted order or call does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a claim was already taken by someone else. Callers show
	// "already taken" instead of a generic failure, so this must stay
	// distinguishable from validation errors.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition: the requested status change is not a legal move
	// from the current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidState: the operation itself is not allowed in the current
	// status (e.g. toggling priority after ready).
	ErrInvalidState = errors.New("invalid state")
)

// ValidationError rejects malformed input before any mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
