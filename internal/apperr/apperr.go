// Package apperr defines the error kinds shared by the ingestion and query
// pipelines and their mapping onto HTTP responses.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrPathNotFound       = errors.New("path not found")
	ErrValidation         = errors.New("validation error")
	ErrInvalidFile        = errors.New("invalid file")
	ErrEmptyContent       = errors.New("empty content")
	ErrProcessing         = errors.New("processing error")
	ErrDatabase           = errors.New("database error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrNotFound           = errors.New("not found")
)

// Error carries a kind for classification and a human message for job
// reports and response bodies.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Message returns the outermost human message without the cause chain.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

var statusTable = []struct {
	kind   error
	code   string
	status int
}{
	{ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest},
	{ErrPathNotFound, "PATH_NOT_FOUND", http.StatusBadRequest},
	{ErrInvalidFile, "INVALID_FILE", http.StatusBadRequest},
	{ErrEmptyContent, "EMPTY_CONTENT", http.StatusBadRequest},
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrServiceUnavailable, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
	{ErrDatabase, "DATABASE_ERROR", http.StatusInternalServerError},
	{ErrProcessing, "PROCESSING_ERROR", http.StatusInternalServerError},
}

// HTTPStatus maps an error to the code and status used in error envelopes.
func HTTPStatus(err error) (string, int) {
	for _, row := range statusTable {
		if errors.Is(err, row.kind) {
			return row.code, row.status
		}
	}
	return "INTERNAL_ERROR", http.StatusInternalServerError
}
