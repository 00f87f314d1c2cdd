package recurrence

import (
	"errors"
	"fmt"
)

var (
	ErrEndsBeforeStart    = errors.New("recurrence ends before it starts")
	ErrSpanTooLong        = errors.New("recurrence spans more than one year")
	ErrInvalidInterval    = errors.New("custom interval must be between 1 and 365 days")
	ErrUnknownFrequency   = errors.New("unknown recurrence frequency")
	ErrMissingStart       = errors.New("recurrence has no original start")
	ErrTooManyOccurrences = errors.New("recurrence produces too many occurrences")
	ErrBlockRecurrence    = errors.New("blocks cannot recur")
	ErrInvalidDuration    = errors.New("template must end after it starts")
	ErrNotRecurring       = errors.New("appointment is not part of a recurrence group")
)

// ValidationError is returned before any instance is generated.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("recurrence: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
