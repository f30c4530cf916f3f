package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Tempo error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR" // 400
	ErrNotFound   ErrorCode = "NOT_FOUND"        // 404
	ErrConflict   ErrorCode = "CONFLICT"         // 409
	ErrParse      ErrorCode = "PARSE_ERROR"      // 422
	ErrCancelled  ErrorCode = "CANCELLED"        // 499
	ErrInternal   ErrorCode = "INTERNAL"         // 500
)

// TempoError represents a structured error with code, status, and details.
type TempoError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *TempoError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidation creates a 400 error for input that breaks a validation rule.
func NewValidation(msg string) *TempoError {
	return &TempoError{
		Code:    ErrValidation,
		Status:  400,
		Message: msg,
	}
}

// NewBlankInput creates a 400 error for a blank or whitespace-only field.
func NewBlankInput(field string) *TempoError {
	return &TempoError{
		Code:    ErrValidation,
		Status:  400,
		Message: fmt.Sprintf("%s must not be blank", field),
		Details: map[string]any{"field": field},
	}
}

// NewNonPositiveDuration creates a 400 error for a duration setting that is not positive.
func NewNonPositiveDuration(field string, value int) *TempoError {
	return &TempoError{
		Code:    ErrValidation,
		Status:  400,
		Message: fmt.Sprintf("%s must be greater than 0, got %d", field, value),
		Details: map[string]any{"field": field, "value": value},
	}
}

// NewInvalidInterval creates a 400 error when an interval does not end after it starts.
func NewInvalidInterval(start, end string) *TempoError {
	return &TempoError{
		Code:    ErrValidation,
		Status:  400,
		Message: fmt.Sprintf("end (%s) must be after start (%s)", end, start),
		Details: map[string]any{"start": start, "end": end},
	}
}

// NewNotFound creates a 404 error for a missing entity.
func NewNotFound(kind string, id int64) *TempoError {
	return &TempoError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %d", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewFileNotFound creates a 404 error when an import file does not exist.
func NewFileNotFound(path string) *TempoError {
	return &TempoError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *TempoError {
	return &TempoError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewEventOverlap creates a 409 error when a proposed event overlaps an existing one.
func NewEventOverlap(existingID int64, existingTitle string) *TempoError {
	return &TempoError{
		Code:    ErrConflict,
		Status:  409,
		Message: fmt.Sprintf("event overlaps existing event %d (%q)", existingID, existingTitle),
		Details: map[string]any{"conflicting_id": existingID, "conflicting_title": existingTitle},
	}
}

// NewParse creates a 422 error for a malformed document or file.
func NewParse(msg string) *TempoError {
	return &TempoError{
		Code:    ErrParse,
		Status:  422,
		Message: msg,
	}
}

// NewParseField creates a 422 error pointing at the offending field of a document.
func NewParseField(path string, msg string) *TempoError {
	return &TempoError{
		Code:    ErrParse,
		Status:  422,
		Message: fmt.Sprintf("%s: %s", path, msg),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates an error for operations aborted by context cancellation.
func NewCancelled(op string) *TempoError {
	return &TempoError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *TempoError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &TempoError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error is (or wraps) a TempoError with the given code.
func Is(err error, code ErrorCode) bool {
	var tErr *TempoError
	if stderrors.As(err, &tErr) {
		return tErr.Code == code
	}
	return false
}
