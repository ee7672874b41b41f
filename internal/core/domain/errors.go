package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateRequest  = errors.New("duplicate request")
)

// ValidationError lists every problem found in a caller's input.
type ValidationError struct {
	Problems []string
}

func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransitionError reports a rejected status move with both ends of it, so the
// caller can tell the user what the listing is currently at.
type TransitionError struct {
	Type      ListingType
	Current   Status
	Requested Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s listing cannot move from %q to %q",
		ErrInvalidTransition, e.Type, e.Current, e.Requested)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
