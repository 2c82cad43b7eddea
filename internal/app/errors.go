package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/rostr/internal/adapters/journal"
	"github.com/okian/rostr/internal/domain/event"
	"github.com/okian/rostr/internal/domain/model"
)

// ErrValidation is the sentinel behind every ValidationError.
var ErrValidation = errors.New("validation failed")

var errNothingToChange = errors.New("nothing to change")

// ValidationError rejects a command before anything is written.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Class groups errors by what the user has to do about them.
type Class string

const (
	// ClassNotApplied means the data is safe and the operation did not apply.
	ClassNotApplied Class = "not-applied"
	// ClassStoreAttention means the journal needs to be restored or repaired.
	ClassStoreAttention Class = "store-attention"
	// ClassInternal covers everything else.
	ClassInternal Class = "internal"
)

// Classify maps an error onto its user-facing class. A nil error has no class.
func Classify(err error) Class {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve),
		errors.Is(err, journal.ErrWriteFailure),
		errors.Is(err, journal.ErrLockTimeout),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ClassNotApplied
	case errors.Is(err, journal.ErrCorrupt),
		errors.Is(err, model.ErrDuplicateID),
		errors.Is(err, model.ErrUnknownEntity),
		errors.Is(err, event.ErrUnknownEventType),
		errors.Is(err, event.ErrMalformedPayload):
		return ClassStoreAttention
	default:
		return ClassInternal
	}
}

// validationError converts the first failed struct tag into a ValidationError.
func validationError(err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return &ValidationError{Reason: err.Error(), Err: err}
	}
	fe := fields[0]
	return &ValidationError{Field: fe.Field(), Reason: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "email":
		return "is not a valid email address"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "gtefield":
		return "must not be before " + toSnake(fe.Param())
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "failed " + fe.Tag()
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
