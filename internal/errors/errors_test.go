package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{Internal("x"), http.StatusInternalServerError},
		{BadRequest("x"), http.StatusBadRequest},
		{NotFoundWrap(stderrors.New("no rows"), "x"), http.StatusNotFound},
		{ConflictWrap(stderrors.New("busy"), "x"), http.StatusConflict},
		{RateLimit("x"), http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode)
		})
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := InternalWrap(cause, "store unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "INTERNAL_ERROR: store unavailable (caused by: disk full)", err.Error())
	assert.Equal(t, "BAD_REQUEST: missing month", BadRequest("missing month").Error())
}

func TestWriteError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		err     error
		status  int
		code    ErrorCode
		message string
	}{
		{
			name:    "app error",
			err:     BadRequest("period must be a positive integer"),
			status:  http.StatusBadRequest,
			code:    CodeBadRequest,
			message: "period must be a positive integer",
		},
		{
			name:    "wrapped app error",
			err:     fmt.Errorf("handler: %w", ConflictWrap(stderrors.New("locked"), "an import is already running")),
			status:  http.StatusConflict,
			code:    CodeConflict,
			message: "an import is already running",
		},
		{
			name:    "plain error",
			err:     stderrors.New("database is locked"),
			status:  http.StatusInternalServerError,
			code:    CodeInternal,
			message: "database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, logger, tt.err, "req-1")

			require.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Error)
			assert.Equal(t, "req-1", body.RequestID)
		})
	}
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]int{"months": 6})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"months":6}}`, w.Body.String())
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteJSON(w, http.StatusOK, map[string]float64{"traffic": math.Inf(1)})

	require.ErrorIs(t, err, ErrEncode)
	assert.False(t, w.Flushed)
	assert.Empty(t, w.Body.String(), "nothing may be written when encoding fails")
	assert.Empty(t, w.Header().Get("Content-Type"))
}

func TestWriteSuccess_UnencodableValue(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessWithHeaders(w, []float64{math.NaN()}, map[string]string{"Cache-Control": "public, max-age=300"})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("Cache-Control"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, CodeInternal, body.Code)
	assert.Equal(t, "failed to encode response", body.Error)
}
