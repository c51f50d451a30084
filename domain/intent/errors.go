package intent

import (
	"errors"
	"fmt"
	"strings"

	"factoryops/domain/shared"
)

// Sentinel errors of the engine. Use errors.Is against these; the concrete
// values returned by constructors below wrap them and carry a stack.
var (
	ErrUnknownEntityType    = errors.New("unknown entity type")
	ErrAmbiguousReference   = errors.New("ambiguous entity reference")
	ErrNotFound             = shared.ErrNotFound
	ErrValidationRejected   = errors.New("validation rejected")
	ErrTokenNotFound        = errors.New("confirmation token not found")
	ErrTokenExpired         = errors.New("confirmation token expired")
	ErrTokenAlreadyUsed     = errors.New("confirmation token already used")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidFieldValue    = errors.New("invalid field value")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrInternalFailure      = errors.New("internal failure")
)

// engineError is the stack-carrying error returned by the constructors.
type engineError struct {
	sentinel error
	cause    error
	message  string
	fields   []string
	stack    []uintptr
}

func (e *engineError) Error() string {
	return e.message
}

func (e *engineError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.sentinel, e.cause}
	}
	return []error{e.sentinel}
}

// Stack implements shared.Stacker.
func (e *engineError) Stack() []string {
	return shared.FormatStack(e.stack)
}

func newEngineError(sentinel error, message string, fields ...string) *engineError {
	return &engineError{
		sentinel: sentinel,
		message:  message,
		fields:   fields,
		stack:    shared.CaptureStack(4),
	}
}

func NewUnknownEntityTypeError(tag string) error {
	return newEngineError(ErrUnknownEntityType, fmt.Sprintf("unknown entity type %q", tag))
}

func NewAmbiguousReferenceError(t EntityType) error {
	return newEngineError(ErrAmbiguousReference,
		fmt.Sprintf("%s reference needs an id or a business key", t), "entityId")
}

func NewNotFoundError(t EntityType, key string) error {
	return newEngineError(ErrNotFound, fmt.Sprintf("%s %q not found", t, key))
}

// NewMissingFieldsError reports the slots a caller still has to fill.
func NewMissingFieldsError(fields ...string) error {
	return newEngineError(ErrMissingRequiredField,
		"missing required fields: "+strings.Join(fields, ", "), fields...)
}

func NewInvalidFieldValueError(field string, cause error) error {
	e := newEngineError(ErrInvalidFieldValue,
		fmt.Sprintf("field %q has an invalid value: %v", field, cause), field)
	e.cause = cause
	return e
}

func NewUnsupportedOperationError(what string) error {
	return newEngineError(ErrUnsupportedOperation, "unsupported operation: "+what)
}

func NewTokenNotFoundError() error {
	return newEngineError(ErrTokenNotFound, "this confirmation was not found, please retry the operation from the start")
}

func NewTokenExpiredError() error {
	return newEngineError(ErrTokenExpired, "this confirmation has expired, please retry the operation from the start")
}

func NewTokenAlreadyUsedError() error {
	return newEngineError(ErrTokenAlreadyUsed, "this confirmation has already been used, please retry the operation from the start")
}

// NewInternalError wraps an unexpected failure. The cause stays in the chain
// for logging; the message is safe to show.
func NewInternalError(op string, cause error) error {
	e := newEngineError(ErrInternalFailure, op+" failed, the operation was not applied")
	e.cause = cause
	return e
}

// MissingFields extracts the field names carried by a missing-field,
// invalid-value or ambiguous-reference error.
func MissingFields(err error) []string {
	var ee *engineError
	if errors.As(err, &ee) {
		return append([]string(nil), ee.fields...)
	}
	return nil
}

// ValidationError is returned when the validation gateway rejects a mutation.
type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, v.Message)
		}
	}
	if len(msgs) == 0 {
		return "validation rejected"
	}
	return "validation rejected: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationRejected
}
