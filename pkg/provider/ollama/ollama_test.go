package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/provider"
)

func collect(t *testing.T, ch <-chan provider.Event) ([]string, error) {
	t.Helper()
	var deltas []string
	var err error
	for ev := range ch {
		if ev.Err != nil {
			err = ev.Err
			continue
		}
		deltas = append(deltas, ev.Delta)
	}
	return deltas, err
}

func TestOllamaProvider_New_MissingModel(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, provider.ErrMissingModel) {
		t.Fatalf("expected ErrMissingModel, got %v", err)
	}
}

func TestOllamaProvider_Defaults(t *testing.T) {
	p, err := New(Config{Model: "llama3.2"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", p.cfg.BaseURL, DefaultBaseURL)
	}
	if p.Name() != "ollama" {
		t.Errorf("Name() = %q, want ollama", p.Name())
	}
}

func TestOllamaProvider_Stream(t *testing.T) {
	var received chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("expected path /api/chat, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"llama3.2","message":{"role":"assistant","content":"Hel"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3.2","message":{"role":"assistant","content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","eval_count":2}`)
	}))
	defer srv.Close()

	p, err := New(Config{BaseURL: srv.URL + "/", Model: "llama3.2"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	ch, err := p.Stream(context.Background(), &provider.Request{
		Messages:  []api.Message{api.NewSystemMessage("be nice"), api.NewUserMessage("hi")},
		MaxTokens: 4096,
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	deltas, streamErr := collect(t, ch)
	if streamErr != nil {
		t.Fatalf("unexpected error: %v", streamErr)
	}
	if got := strings.Join(deltas, ""); got != "Hello" {
		t.Errorf("text = %q, want Hello", got)
	}
	if len(deltas) != 3 {
		t.Errorf("expected 3 fragments (last one empty), got %q", deltas)
	}

	if !received.Stream {
		t.Error("expected stream=true")
	}
	if received.Model != "llama3.2" {
		t.Errorf("model = %q", received.Model)
	}
	if len(received.Messages) != 2 || received.Messages[0].Role != "system" || received.Messages[0].Content != "be nice" {
		t.Errorf("system prompt should be the first list entry, got %+v", received.Messages)
	}
}

func TestOllamaProvider_Stream_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model \"nope\" not found, try pulling it first"}`)
	}))
	defer srv.Close()

	p, _ := New(Config{BaseURL: srv.URL, Model: "nope"})
	_, err := p.Stream(context.Background(), &provider.Request{Messages: []api.Message{api.NewUserMessage("hi")}})

	var pe *provider.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *provider.ProviderError, got %T", err)
	}
	if pe.StatusCode != http.StatusNotFound || !strings.Contains(pe.Message, "not found") {
		t.Errorf("unexpected error: %+v", pe)
	}
}

func TestParseNDJSONStream_MidStreamError(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"par"},"done":false}
not json
{"error":"out of memory"}
{"message":{"role":"assistant","content":"never"},"done":false}
`
	ch := make(chan provider.Event, 8)
	go func() {
		defer close(ch)
		parseNDJSONStream(context.Background(), "ollama", strings.NewReader(body), ch)
	}()

	deltas, err := collect(t, ch)
	if strings.Join(deltas, "") != "par" {
		t.Errorf("deltas = %q, want [par]", deltas)
	}

	var pe *provider.ProviderError
	if !errors.As(err, &pe) || pe.Message != "out of memory" {
		t.Errorf("expected ProviderError(out of memory), got %v", err)
	}
}

func TestParseNDJSONStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan provider.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		parseNDJSONStream(ctx, "ollama", strings.NewReader(`{"message":{"content":"x"}}`+"\n"), ch)
	}()
	<-done
}
