package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"intigra/internal/apperr"
)

func TestError_Classification(t *testing.T) {
	cause := errors.New("disk on fire")
	err := apperr.Wrap(apperr.ErrProcessing, "failed to write shard", cause)

	assert.ErrorIs(t, err, apperr.ErrProcessing)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, apperr.ErrDatabase)
	assert.Equal(t, "failed to write shard: disk on fire", err.Error())
	assert.Equal(t, "failed to write shard", apperr.Message(err))
}

func TestMessage_PlainError(t *testing.T) {
	assert.Equal(t, "boom", apperr.Message(errors.New("boom")))
}

func TestMessage_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", apperr.New(apperr.ErrEmptyContent, "Empty file"))
	assert.Equal(t, "Empty file", apperr.Message(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"Validation", apperr.New(apperr.ErrValidation, "Query cannot be empty"), "VALIDATION_ERROR", http.StatusBadRequest},
		{"PathNotFound", apperr.New(apperr.ErrPathNotFound, "Path does not exist"), "PATH_NOT_FOUND", http.StatusBadRequest},
		{"NotFound", fmt.Errorf("job: %w", apperr.ErrNotFound), "NOT_FOUND", http.StatusNotFound},
		{"Unavailable", apperr.Wrap(apperr.ErrServiceUnavailable, "reranker down", errors.New("dial")), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
		{"Database", apperr.New(apperr.ErrDatabase, "insert failed"), "DATABASE_ERROR", http.StatusInternalServerError},
		{"Processing", apperr.New(apperr.ErrProcessing, "query failed"), "PROCESSING_ERROR", http.StatusInternalServerError},
		{"Unknown", errors.New("mystery"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, status := apperr.HTTPStatus(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, status)
		})
	}
}
