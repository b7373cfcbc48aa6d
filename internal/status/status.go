package status

import (
	"errors"
	"fmt"
)

var (
	ErrCapacityExceeded         = errors.New("capacity: not enough seats left on package")
	ErrInvalidArgument          = errors.New("capacity: count must be a positive integer")
	ErrInvalidTransition        = errors.New("booking: invalid status transition")
	ErrInvalidPaymentTransition = errors.New("payment: invalid payment status transition")
	ErrPersistence              = errors.New("store: persistence failure")
	ErrNotFound                 = errors.New("store: record not found")
	ErrConflict                 = errors.New("store: concurrent update lost")
)

// Violation describes a single failed field check on one traveler record.
type Violation struct {
	TravelerIndex int    `json:"traveler_index"`
	Field         string `json:"field"`
	Reason        string `json:"reason"`
}

// ValidationError carries every violation found across all traveler
// records so the caller can report them in one response.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %d violation(s)", len(e.Violations))
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
