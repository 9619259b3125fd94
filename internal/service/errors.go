package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/room-reservation/internal/repository"
)

var (
	// ErrNotFound indicates the addressed reservation or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the identity may not perform the action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTransient indicates a storage failure that is worth retrying,
	// such as a lock timeout or a repeated identifier collision.
	ErrTransient = errors.New("temporary storage failure, please retry")
	// ErrConflict indicates a uniqueness violation outside reservations,
	// e.g. a duplicate email.
	ErrConflict = errors.New("conflict")
)

// FieldError is a single validation failure keyed by form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult collects field errors in the order they were found.
type ValidationResult struct {
	Errors []FieldError
}

// OK reports whether no errors were recorded.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

// FirstError returns the message of the earliest recorded error, or "".
func (r ValidationResult) FirstError() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// Fields returns the errors keyed by field name.
func (r ValidationResult) Fields() map[string]string {
	out := make(map[string]string, len(r.Errors))
	for _, fe := range r.Errors {
		out[fe.Field] = fe.Message
	}
	return out
}

// ValidationError is returned by service operations whose input was
// rejected.  Use errors.As to reach the field details.
type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Result.Errors))
	for _, fe := range e.Result.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// fieldError builds a ValidationError holding a single field failure.
func fieldError(field, message string) *ValidationError {
	var r ValidationResult
	r.add(field, message)
	return &ValidationError{Result: r}
}

// ErrorKind names the class of err for structured logs.
func ErrorKind(err error) string {
	var vErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &vErr):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTransient):
		return "transient"
	}
	return "internal"
}

// storeError maps repository sentinels onto service errors.  Anything the
// store reports that is not a business outcome becomes ErrTransient.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrEmailExists):
		return errors.Join(ErrConflict, err)
	case errors.Is(err, ErrTransient):
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
