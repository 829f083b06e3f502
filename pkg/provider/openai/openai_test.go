package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/provider"
	"github.com/rhuss/aichat/pkg/provider/openaicompat"
)

func TestOpenAIProvider_Name(t *testing.T) {
	p, err := New(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer p.Close()

	if p.Name() != "openai" {
		t.Errorf("expected name %q, got %q", "openai", p.Name())
	}
}

func TestOpenAIProvider_New_MissingAPIKey(t *testing.T) {
	_, err := New(Config{Model: "gpt-4o-mini"})
	if !errors.Is(err, provider.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestOpenAIProvider_Stream(t *testing.T) {
	var received openaicompat.ChatCompletionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":null}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hi there\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p, err := New(Config{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer p.Close()

	ch, err := p.Stream(context.Background(), &provider.Request{
		Messages:  []api.Message{api.NewSystemMessage("sys"), api.NewUserMessage("hello")},
		MaxTokens: 4096,
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var got []string
	for ev := range ch {
		if ev.Err != nil {
			t.Fatalf("unexpected error: %v", ev.Err)
		}
		got = append(got, ev.Delta)
	}

	if len(got) != 2 || got[0] != "" || got[1] != "Hi there" {
		t.Errorf("deltas = %q, want [\"\" \"Hi there\"]", got)
	}
	if received.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want configured default %q", received.Model, "gpt-4o-mini")
	}
	if received.MaxCompletionTokens == nil || *received.MaxCompletionTokens != 4096 {
		t.Errorf("expected max_completion_tokens=4096, got %v", received.MaxCompletionTokens)
	}
	if received.MaxTokens != nil {
		t.Error("max_tokens must not be sent to OpenAI")
	}
	if received.Messages[0].Role != "system" {
		t.Errorf("system prompt should lead the message list, got %+v", received.Messages)
	}
}
