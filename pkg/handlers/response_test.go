package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		errorCode  string
		message    string
	}{
		{"bad request", http.StatusBadRequest, "invalid_action", "unknown action"},
		{"unprocessable", http.StatusUnprocessableEntity, "missing_snapshot", "UPDATE requires before and after"},
		{"internal error", http.StatusInternalServerError, "internal_error", "something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			if err := ErrorResponse(w, tt.statusCode, tt.errorCode, tt.message); err != nil {
				t.Fatalf("ErrorResponse returned error: %v", err)
			}

			if w.Code != tt.statusCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.statusCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}
			if body["error"] != tt.errorCode || body["message"] != tt.message {
				t.Errorf("unexpected body %v", body)
			}
		})
	}
}

func TestWriteJSON_NoHTMLEscaping(t *testing.T) {
	w := httptest.NewRecorder()

	if err := WriteJSON(w, http.StatusCreated, map[string]string{"note": "<b>&</b>"}); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}
	if w.Code != http.StatusCreated {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"note":"<b>&</b>"}` {
		t.Errorf("body = %s", got)
	}
}

func TestDecodeBody_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"CREATE","bogus":1}`))

	var body recordRequest
	if err := decodeBody(req, &body); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
