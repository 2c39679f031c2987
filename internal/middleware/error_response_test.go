package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/stockflow/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// TestWriteAPIError_StatusFollowsCode はエラーコードごとのステータスを検証する。
func TestWriteAPIError_StatusFollowsCode(t *testing.T) {
	tests := []struct {
		name       string
		apiErr     *model.APIError
		wantStatus int
	}{
		{"unauthenticated", model.NewUnauthenticatedError(), http.StatusUnauthorized},
		{"invalid request", model.NewInvalidRequestError(), http.StatusBadRequest},
		{"validation", model.NewValidationError("quantity", "must not be negative"), http.StatusUnprocessableEntity},
		{"item not found", model.NewItemNotFoundError("item-1"), http.StatusNotFound},
		{"internal", model.NewInternalError(), http.StatusInternalServerError},
		{"unknown code", &model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteAPIError(w, tt.apiErr)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeErrorBody(t, w)
			if body.Code != tt.apiErr.Code {
				t.Errorf("code = %q, want %q", body.Code, tt.apiErr.Code)
			}
			if body.Message != tt.apiErr.Message {
				t.Errorf("message = %q, want %q", body.Message, tt.apiErr.Message)
			}
		})
	}
}

func TestWriteAPIError_NilFallsBackToInternal(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAPIError(w, nil)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

func TestWriteErrorResponse_UsesExplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusForbidden, model.NewUnauthenticatedError())

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	body := decodeErrorBody(t, w)
	if body.Category != "auth" {
		t.Errorf("category = %q, want auth", body.Category)
	}
	if body.Action == "" {
		t.Error("action should tell the user what to do")
	}
}

func TestWriteInternalServerError_HidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	body := decodeErrorBody(t, w)
	if body.Message != model.NewInternalError().Message {
		t.Errorf("message = %q, want the generic internal message", body.Message)
	}
}

func TestErrorResponseBody_JSONFieldNames(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAPIError(w, model.NewItemNotFoundError("abc"))

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	for _, field := range []string{"code", "message", "category", "action"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing field %q in %v", field, raw)
		}
	}
}
