package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/ndassist/internal/model"
)

func TestWriteErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusNotFound, model.NewSessionNotFoundError("nd_session_1_abc"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Success {
		t.Error("success = true, want false")
	}
	if body.Code != model.ErrCodeSessionNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeSessionNotFound)
	}
	if body.Message == "" || body.Action == "" {
		t.Error("message or action is empty")
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}

	var body ErrorResponseBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeValidation, http.StatusBadRequest},
		{model.ErrCodeInvalidRating, http.StatusBadRequest},
		{model.ErrCodeInvalidExportFormat, http.StatusBadRequest},
		{model.ErrCodeSessionNotFound, http.StatusNotFound},
		{model.ErrCodeUserNotFound, http.StatusNotFound},
		{model.ErrCodeGenerationAuth, http.StatusBadGateway},
		{model.ErrCodeGenerationRateLimit, http.StatusTooManyRequests},
		{model.ErrCodeGenerationTimeout, http.StatusGatewayTimeout},
		{model.ErrCodeGenerationUnavailable, http.StatusServiceUnavailable},
		{model.ErrCodeCompositionError, http.StatusInternalServerError},
		{model.ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusForError(&model.APIError{Code: tt.code}); got != tt.want {
				t.Errorf("StatusForError(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
