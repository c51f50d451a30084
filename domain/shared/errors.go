/*
Package shared holds the error primitives and transaction boundary shared by
every domain package.

Errors carry a sentinel for errors.Is and capture the call stack when they are
constructed. Formatting is deferred until a log line actually needs it.
Domain errors never carry transport concepts such as HTTP status codes.
*/
package shared

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	// ErrNotFound resource not found
	ErrNotFound = errors.New("not found")

	// ErrConflict resource conflict (concurrent modification, unique constraint)
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput parameter validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable a backing store or collaborator could not be reached
	ErrUnavailable = errors.New("unavailable")
)

// DomainError is a structured error carrying business context and the stack
// of the point where it was created.
type DomainError struct {
	// Err is the sentinel used by errors.Is.
	Err error

	// Entity names the entity involved, e.g. "material_batch".
	Entity string

	// Message is a human readable description.
	Message string

	// Field optionally names the offending field.
	Field string

	stack []uintptr
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Stack formats the captured frames on demand.
func (e *DomainError) Stack() []string {
	return FormatStack(e.stack)
}

// CaptureStack records the current call stack.
// skip is usually 3: runtime.Callers, CaptureStack, NewXxxError.
func CaptureStack(skip int) []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(skip, pcs[:])
	return pcs[:n]
}

// FormatStack renders frames as "file:line function", dropping runtime frames
// and keeping at most ten entries.
func FormatStack(stack []uintptr) []string {
	if len(stack) == 0 {
		return nil
	}

	frames := runtime.CallersFrames(stack)
	var result []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			result = append(result, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more || len(result) > 10 {
			break
		}
	}
	return result
}

// NewNotFoundError creates a "not found" domain error for entity.
func NewNotFoundError(entity, key string) error {
	return &DomainError{
		Err:     ErrNotFound,
		Entity:  entity,
		Message: entity + " not found: " + key,
		stack:   CaptureStack(3),
	}
}

// NewConflictError creates a "conflict" domain error.
func NewConflictError(entity, message string) error {
	return &DomainError{
		Err:     ErrConflict,
		Entity:  entity,
		Message: message,
		stack:   CaptureStack(3),
	}
}

// NewValidationError creates an "invalid input" domain error.
func NewValidationError(entity, field, reason string) error {
	return &DomainError{
		Err:     ErrInvalidInput,
		Entity:  entity,
		Field:   field,
		Message: reason,
		stack:   CaptureStack(3),
	}
}

// NewUnavailableError wraps a storage or collaborator failure.
func NewUnavailableError(entity string, cause error) error {
	return &DomainError{
		Err:     fmt.Errorf("%w: %w", ErrUnavailable, cause),
		Entity:  entity,
		Message: entity + " store unavailable",
		stack:   CaptureStack(3),
	}
}

// Stacker is implemented by errors that can report where they were created.
type Stacker interface {
	Stack() []string
}
