package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationHasStableCodeAnd400(t *testing.T) {
	err := Validation("INVALID_PROJECT_ID", "project id must be a UUID")
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "INVALID_PROJECT_ID", err.Code)
}

func TestNotFoundDomainCode(t *testing.T) {
	err := NotFound("TRACE_NOT_FOUND", "trace does not exist")
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.Equal(t, KindNotFound, err.Kind)
}

func TestBackendWrapsCauseWithoutLeakingIt(t *testing.T) {
	cause := errors.New("connection refused")
	err := Backend(OriginDatabase, cause)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Message, "connection refused")
}

func TestAsUnwrapsWrappedAPIError(t *testing.T) {
	inner := Validation("FIELD_LENGTH", "name too long")
	wrapped := errors.New("handler failed: " + inner.Error())
	_, ok := As(wrapped)
	assert.False(t, ok, "a plain wrapped string should not be recovered as *Error")

	var target error = fmt.Errorf("handler failed: %w", inner)
	got, ok := As(target)
	require.True(t, ok)
	assert.Equal(t, "FIELD_LENGTH", got.Code)
}

func TestWriteHTTPSetsRetryAfterForBackpressure(t *testing.T) {
	rec := httptest.NewRecorder()
	bp := Backpressure("TOPIC_FULL", "ingest buffer is full", 5)
	WriteHTTP(rec, bp)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))

	var got body
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "TOPIC_FULL", got.Code)
}

func TestWriteHTTPClassifiesPlainErrorAsBackend(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var got body
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "BACKEND_ERROR", got.Code)
	assert.NotContains(t, got.Message, "boom")
}
