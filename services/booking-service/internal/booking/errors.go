package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingField       = errors.New("missing required field")
	ErrIllegalTransition  = errors.New("illegal transition")
	ErrConflict           = errors.New("slot no longer available")
	ErrNotFound           = errors.New("booking not found")
	ErrForbidden          = errors.New("not allowed for this role")
	ErrCancellationNotice = errors.New("cancellation notice period has passed")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrReviewNotEligible  = errors.New("booking is not eligible for review")
	ErrServiceMismatch    = errors.New("service does not match selection")
)

// MissingFieldsError lists every empty required field of a booking request.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool { return target == ErrMissingField }

// TransitionError reports a move that the lifecycle table does not allow.
type TransitionError struct {
	Kind string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition %s -> %s", e.Kind, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrIllegalTransition }
