package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the structured error carried back to bus callers. It marshals
// to the {status, message} reply shape.
type Error struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Status, e.Message)
}

// ErrInternal is the collapsed client-facing error for create-path and
// enrichment failures. Real detail goes to the logs only.
var ErrInternal = &Error{
	Status:  http.StatusBadRequest,
	Message: "Invalid request, check logs",
}

// ErrNotImplemented is returned by patterns that are bound but stubbed.
var ErrNotImplemented = &Error{
	Status:  http.StatusNotImplemented,
	Message: "Not Implemented",
}

// NewValidation builds a field-level validation error.
func NewValidation(field, message string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("%s: %s", field, message),
	}
}

// NewNotFound builds a not-found error carrying the offending identifier.
func NewNotFound(message string) *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Message: message,
	}
}

// AsError extracts an *Error from err, or nil when err carries none.
func AsError(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
