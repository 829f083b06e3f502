package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/provider/mockvendor"
)

func decodeError(t *testing.T, resp *http.Response) *api.APIError {
	t.Helper()
	defer resp.Body.Close()
	var errResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if errResp.Error == nil {
		t.Fatal("error object is nil")
	}
	return errResp.Error
}

func TestErrors_InvalidMessage(t *testing.T) {
	s := newStack(t, "ollama", stackOptions{extra: map[string]any{"MAX_MESSAGE_LENGTH": 10}})

	tests := []struct {
		name    string
		message string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t"},
		{"too long", strings.Repeat("x", 11)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(t, newClient(t), s, tt.message, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", resp.StatusCode, readBody(t, resp))
			}
			if apiErr := decodeError(t, resp); apiErr.Type != api.ErrorTypeInvalidRequest {
				t.Errorf("error.type = %q, want %q", apiErr.Type, api.ErrorTypeInvalidRequest)
			}
		})
	}

	if n := s.store.Len(); n != 0 {
		t.Errorf("rejected messages created %d conversations", n)
	}
}

func TestErrors_InvalidJSON(t *testing.T) {
	s := newStack(t, "ollama", stackOptions{})

	resp, err := http.Post(s.server.URL+"/chat/", "application/json", strings.NewReader(`{invalid json`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", resp.StatusCode, readBody(t, resp))
	}
	if apiErr := decodeError(t, resp); apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error.type = %q, want %q", apiErr.Type, api.ErrorTypeInvalidRequest)
	}
}

func TestErrors_VendorUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	for _, kind := range allProviders {
		t.Run(kind, func(t *testing.T) {
			s := newStack(t, kind, stackOptions{baseURL: deadURL})
			c := newClient(t)

			resp := send(t, c, s, "hello", nil)
			if resp.StatusCode != http.StatusBadGateway {
				t.Fatalf("status = %d, want 502: %s", resp.StatusCode, readBody(t, resp))
			}
			if apiErr := decodeError(t, resp); apiErr.Type != api.ErrorTypeProviderError {
				t.Errorf("error.type = %q, want %q", apiErr.Type, api.ErrorTypeProviderError)
			}

			// The user turn is kept even though no reply arrived.
			view, err := c.Get(s.server.URL + "/chat/")
			if err != nil {
				t.Fatalf("GET /chat/: %v", err)
			}
			body := readBody(t, view)
			if !strings.Contains(body, `"content":"hello"`) {
				t.Errorf("user turn missing after vendor failure: %s", body)
			}
		})
	}
}

func TestErrors_VendorFailsMidStream(t *testing.T) {
	failing := httptest.NewServer(mockvendor.Handler(mockvendor.Options{FailAfter: 2}))
	defer failing.Close()

	for _, kind := range allProviders {
		t.Run(kind, func(t *testing.T) {
			s := newStack(t, kind, stackOptions{baseURL: failing.URL})
			c := newClient(t)

			resp := send(t, c, s, "one two three four", nil)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200 once streaming started", resp.StatusCode)
			}
			frames := parseSSE(readBody(t, resp))
			text, terminal := streamedText(frames)
			if terminal != "error" {
				t.Fatalf("terminal event = %q, want error; frames = %+v", terminal, frames)
			}
			if want := "You said: "; text != want {
				t.Errorf("partial text = %q, want %q", text, want)
			}

			var errResp api.ErrorResponse
			if err := json.Unmarshal([]byte(frames[len(frames)-1].data), &errResp); err != nil {
				t.Fatalf("decoding error frame: %v", err)
			}
			if errResp.Error == nil || errResp.Error.Type != api.ErrorTypeProviderError {
				t.Errorf("error frame = %+v, want provider_error", errResp.Error)
			}

			// The partial reply is committed.
			view, err := c.Get(s.server.URL + "/chat/")
			if err != nil {
				t.Fatalf("GET /chat/: %v", err)
			}
			var v struct {
				Conversation api.Conversation `json:"conversation"`
			}
			if err := json.NewDecoder(view.Body).Decode(&v); err != nil {
				t.Fatalf("decode: %v", err)
			}
			view.Body.Close()
			if len(v.Conversation) != 2 || v.Conversation[1].Content != "You said: " {
				t.Errorf("conversation = %+v, want user turn plus partial reply", v.Conversation)
			}
		})
	}
}

func TestErrors_LoginRequired(t *testing.T) {
	s := newStack(t, "openai", stackOptions{extra: map[string]any{
		"LOGIN_REQUIRED": true,
		"AUTH_TYPE":      "apikey",
		"API_KEYS":       map[string]string{"secret-key": "alice"},
	}})

	t.Run("anonymous rejected", func(t *testing.T) {
		resp := send(t, newClient(t), s, "hi", nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d, want 403: %s", resp.StatusCode, readBody(t, resp))
		}
		if apiErr := decodeError(t, resp); apiErr.Type != api.ErrorTypeForbidden {
			t.Errorf("error.type = %q, want %q", apiErr.Type, api.ErrorTypeForbidden)
		}
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		h := http.Header{"Authorization": {"Bearer nope"}}
		resp := send(t, newClient(t), s, "hi", h)
		readBody(t, resp)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("valid key streams", func(t *testing.T) {
		h := http.Header{"Authorization": {"Bearer secret-key"}}
		resp := send(t, newClient(t), s, "hi", h)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", resp.StatusCode, readBody(t, resp))
		}
		if text, _ := streamedText(parseSSE(readBody(t, resp))); text != "You said: hi" {
			t.Errorf("streamed text = %q", text)
		}
	})

	t.Run("health bypasses login", func(t *testing.T) {
		resp, err := http.Get(s.server.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz: %v", err)
		}
		readBody(t, resp)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})
}

func TestErrors_LoginRequiredWithoutAuthenticator(t *testing.T) {
	s := newStack(t, "openai", stackOptions{extra: map[string]any{"LOGIN_REQUIRED": true}})

	h := http.Header{"Authorization": {"Bearer anything"}}
	resp := send(t, newClient(t), s, "hi", h)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", resp.StatusCode, readBody(t, resp))
	}
	if apiErr := decodeError(t, resp); apiErr.Type != api.ErrorTypeForbidden {
		t.Errorf("error.type = %q, want %q", apiErr.Type, api.ErrorTypeForbidden)
	}
}
