package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickai/internal/types"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestJSON_WritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(rec, req, http.StatusCreated, APIResponse{Data: map[string]string{"id": "c1"}})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"id":"c1"`)
}

func TestError_AppErrorStatusMapping(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	Error(rec, req, types.NewAppError(types.ErrCodeLimitQuotaExceeded, "limit reached", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "limit_quota_exceeded", body.Error.Code)
	assert.Equal(t, "limit reached", body.Error.Message)
}

func TestError_WrappedAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	inner := types.NewAppError(types.ErrCodeNotFoundCreation, "creation not found", nil)
	Error(rec, req, errors.Join(errors.New("outer context"), inner))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found_creation", decodeErrorBody(t, rec).Error.Code)
}

func TestError_GenericErrorDoesNotLeak(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	Error(rec, req, errors.New("pq: password authentication failed for user postgres"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "internal_unexpected_error", body.Error.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "req_abc"))

	Error(rec, req, types.NewAppError(types.ErrCodeAuthTokenMissing, "auth required", nil))

	assert.Equal(t, "req_abc", decodeErrorBody(t, rec).Error.RequestID)
}

// --- DecodeJSON ---

type decodeTarget struct {
	Prompt string `json:"prompt"`
}

func TestDecodeJSON_Valid(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":"hello"}`))
	var dst decodeTarget

	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, "hello", dst.Prompt)
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":"x","extra":1}`))
	var dst decodeTarget

	err := DecodeJSON(httptest.NewRecorder(), req, &dst)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidJSON, appErr.Code)
}

func TestDecodeJSON_RejectsMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":`))
	var dst decodeTarget

	err := DecodeJSON(httptest.NewRecorder(), req, &dst)
	require.Error(t, err)
}

func TestDecodeJSON_RejectsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var dst decodeTarget

	err := DecodeJSON(httptest.NewRecorder(), req, &dst)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidJSON, appErr.Code)
}

func TestDecodeJSON_RejectsTrailingValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":"a"}{"prompt":"b"}`))
	var dst decodeTarget

	err := DecodeJSON(httptest.NewRecorder(), req, &dst)
	require.Error(t, err)
}

func TestDecodeJSON_TypeMismatchDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":42}`))
	var dst decodeTarget

	err := DecodeJSON(httptest.NewRecorder(), req, &dst)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "prompt", appErr.Details["field"])
}
