package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		message string
	}{
		{name: "bad request", code: http.StatusBadRequest, message: "Invalid input"},
		{name: "unauthorized", code: http.StatusUnauthorized, message: "Authentication required"},
		{name: "too many requests", code: http.StatusTooManyRequests, message: "Rate limit exceeded"},
		{name: "internal server error", code: http.StatusInternalServerError, message: "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondWithError(w, tt.code, tt.message)

			if w.Code != tt.code {
				t.Errorf("RespondWithError() status = %d, want %d", w.Code, tt.code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("RespondWithError() Content-Type = %s, want application/json", ct)
			}

			var response ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Error != tt.message {
				t.Errorf("RespondWithError() message = %q, want %q", response.Error, tt.message)
			}
		})
	}
}

func TestRespondWithJSON(t *testing.T) {
	w := httptest.NewRecorder()
	payload := map[string]any{"score": 80, "issues": []string{"too vague"}}

	if err := RespondWithJSON(w, http.StatusOK, payload); err != nil {
		t.Fatalf("RespondWithJSON() error = %v", err)
	}

	if w.Code != http.StatusOK {
		t.Errorf("RespondWithJSON() status = %d, want %d", w.Code, http.StatusOK)
	}

	var decoded map[string]any
	if err := json.NewDecoder(w.Body).Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if decoded["score"].(float64) != 80 {
		t.Errorf("RespondWithJSON() score = %v, want 80", decoded["score"])
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Prompt string `json:"prompt"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":"hello"}`))
	var p payload
	if err := DecodeJSONBody(req, &p); err != nil {
		t.Fatalf("DecodeJSONBody() error = %v", err)
	}
	if p.Prompt != "hello" {
		t.Errorf("DecodeJSONBody() prompt = %q, want %q", p.Prompt, "hello")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":"hello","extra":true}`))
	if err := DecodeJSONBody(req, &p); err == nil {
		t.Error("DecodeJSONBody() accepted unknown field, want error")
	}
}
