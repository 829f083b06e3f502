package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/provider"
)

func TestToAPIError(t *testing.T) {
	provErr := &provider.ProviderError{Provider: "openai", StatusCode: 401, Message: "invalid api key"}

	tests := []struct {
		name        string
		err         error
		wantType    api.ErrorType
		wantCode    string
		wantMessage string
	}{
		{"api error passes through", api.NewInvalidRequestError("message", "empty"), api.ErrorTypeInvalidRequest, "", "empty"},
		{"wrapped api error", fmt.Errorf("engine: %w", api.NewInvalidRequestError("message", "too long")), api.ErrorTypeInvalidRequest, "", "too long"},
		{"provider error", provErr, api.ErrorTypeProviderError, "401", ""},
		{"wrapped provider error", fmt.Errorf("streaming: %w", provErr), api.ErrorTypeProviderError, "401", ""},
		{"internal text hidden", errors.New("pq: password authentication failed for user admin"), api.ErrorTypeServerError, "", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAPIError(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", got.Type, tt.wantType)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *api.APIError {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("error body has no error object")
	}
	return resp.Error
}

func TestWriteErrorResponseExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorResponse(rec, api.NewInvalidRequestError("body", "too large"), http.StatusRequestEntityTooLarge)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if got := decodeError(t, rec); got.Param != "body" {
		t.Errorf("param = %q, want body", got.Param)
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   api.ErrorType
	}{
		{"invalid request", api.NewInvalidRequestError("message", "is required"), http.StatusBadRequest, api.ErrorTypeInvalidRequest},
		{"forbidden", api.NewForbiddenError("login required"), http.StatusForbidden, api.ErrorTypeForbidden},
		{"not found", api.NewNotFoundError("no route"), http.StatusNotFound, api.ErrorTypeNotFound},
		{"vendor failure", &provider.ProviderError{Provider: "mistral", StatusCode: 429, Message: "slow down"}, http.StatusBadGateway, api.ErrorTypeProviderError},
		{"store failure", errors.New("redis: connection refused"), http.StatusInternalServerError, api.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decodeError(t, rec); got.Type != tt.wantType {
				t.Errorf("type = %q, want %q", got.Type, tt.wantType)
			}
		})
	}
}
