//go:build !nogeminiapi

package gemini

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

func collect(ch <-chan provider.Event) ([]string, error) {
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

func TestGeminiProvider_Stream(t *testing.T) {
	var received generateRequest
	var path, query, key string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		query = r.URL.RawQuery
		key = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&received)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Gu\"}],\"role\":\"model\"}}]}\r\n\r\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"ten \"},{\"text\":\"Tag\"}],\"role\":\"model\"},\"finishReason\":\"STOP\"}]}\r\n\r\n")
	}))
	defer srv.Close()

	p, err := New(Config{APIKey: "g-key", Model: "gemini-2.0-flash", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if p.Name() != "google" {
		t.Errorf("Name() = %q, want google", p.Name())
	}

	ch, err := p.Stream(context.Background(), &provider.Request{
		Messages: []api.Message{
			api.NewSystemMessage("Reply in German."),
			api.NewUserMessage("hi"),
			api.NewAssistantMessage("hallo"),
			api.NewUserMessage("wie gehts"),
		},
		MaxTokens: 300,
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	deltas, streamErr := collect(ch)
	if streamErr != nil {
		t.Fatalf("unexpected error: %v", streamErr)
	}
	if len(deltas) != 2 || strings.Join(deltas, "") != "Guten Tag" {
		t.Errorf("deltas = %q", deltas)
	}

	if path != "/v1beta/models/gemini-2.0-flash:streamGenerateContent" {
		t.Errorf("path = %q", path)
	}
	if query != "alt=sse" {
		t.Errorf("query = %q, want alt=sse", query)
	}
	if key != "g-key" {
		t.Errorf("x-goog-api-key = %q", key)
	}
	if received.SystemInstruction == nil || received.SystemInstruction.Parts[0].Text != "Reply in German." {
		t.Errorf("systemInstruction = %+v", received.SystemInstruction)
	}
	if received.GenerationConfig == nil || received.GenerationConfig.MaxOutputTokens != 300 {
		t.Errorf("generationConfig = %+v", received.GenerationConfig)
	}
	wantRoles := []string{"user", "model", "user"}
	if len(received.Contents) != len(wantRoles) {
		t.Fatalf("contents = %+v", received.Contents)
	}
	for i, want := range wantRoles {
		if received.Contents[i].Role != want {
			t.Errorf("contents[%d].role = %q, want %q", i, received.Contents[i].Role, want)
		}
	}
}

func TestTranslate_SkipsEmptyTurns(t *testing.T) {
	gr := translate(&provider.Request{Messages: []api.Message{
		api.NewUserMessage("first"),
		api.NewAssistantMessage(""),
		api.NewUserMessage("second"),
	}})

	if len(gr.Contents) != 2 {
		t.Fatalf("contents = %+v, want two user turns", gr.Contents)
	}
	for i, want := range []string{"first", "second"} {
		c := gr.Contents[i]
		if c.Role != roleUser || len(c.Parts) != 1 || c.Parts[0].Text != want {
			t.Errorf("contents[%d] = %+v, want user %q", i, c, want)
		}
	}
}

func TestGeminiProvider_DisableNative(t *testing.T) {
	_, err := New(Config{APIKey: "k", Model: "m", DisableNative: true})
	if !errors.Is(err, ErrIntegrationUnavailable) {
		t.Fatalf("expected ErrIntegrationUnavailable, got %v", err)
	}
}

func TestGeminiProvider_MissingAPIKey(t *testing.T) {
	_, err := New(Config{Model: "m"})
	if !errors.Is(err, provider.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if errors.Is(err, ErrIntegrationUnavailable) {
		t.Fatal("a missing key must not look like an unavailable integration")
	}
}

func TestNewCompat_Stream(t *testing.T) {
	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	p, err := NewCompat(Config{APIKey: "g-key", Model: "gemini-2.0-flash", BaseURL: srv.URL + "/v1beta/openai"})
	if err != nil {
		t.Fatalf("NewCompat: %v", err)
	}
	defer p.Close()

	if p.Name() != "google" {
		t.Errorf("Name() = %q, want google", p.Name())
	}

	ch, err := p.Stream(context.Background(), &provider.Request{Messages: []api.Message{api.NewUserMessage("x")}})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	deltas, _ := collect(ch)
	if strings.Join(deltas, "") != "ok" {
		t.Errorf("deltas = %q", deltas)
	}
	if path != "/v1beta/openai/chat/completions" {
		t.Errorf("path = %q", path)
	}
	if auth != "Bearer g-key" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestParseSSEStream_Blocked(t *testing.T) {
	body := "data: {\"promptFeedback\":{\"blockReason\":\"SAFETY\"}}\n\n"
	ch := make(chan provider.Event, 4)
	go func() {
		defer close(ch)
		parseSSEStream(context.Background(), "google", strings.NewReader(body), ch)
	}()

	_, err := collect(ch)
	var pe *provider.ProviderError
	if !errors.As(err, &pe) || !strings.Contains(pe.Message, "SAFETY") {
		t.Errorf("expected blocked ProviderError, got %v", err)
	}
}

func TestParseSSEStream_InBandError(t *testing.T) {
	body := "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"a\"}]}}]}\n\n" +
		"data: {\"error\":{\"code\":503,\"message\":\"The model is overloaded.\",\"status\":\"UNAVAILABLE\"}}\n\n"
	ch := make(chan provider.Event, 4)
	go func() {
		defer close(ch)
		parseSSEStream(context.Background(), "google", strings.NewReader(body), ch)
	}()

	deltas, err := collect(ch)
	if strings.Join(deltas, "") != "a" {
		t.Errorf("deltas = %q", deltas)
	}
	var pe *provider.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != 503 {
		t.Errorf("expected 503 ProviderError, got %v", err)
	}
}
