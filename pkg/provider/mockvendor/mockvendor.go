// Package mockvendor is a deterministic fake LLM vendor. It speaks the
// streaming dialects of every supported provider and answers each prompt
// by echoing it back word by word. It backs cmd/mock-backend and the
// end-to-end tests.
package mockvendor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Options tune the fake streams.
type Options struct {
	// Delay pauses between tokens.
	Delay time.Duration

	// FailAfter aborts the stream with a vendor error after this many
	// tokens. Zero or negative never fails.
	FailAfter int
}

// Handler returns the fake vendor's routes:
//
//	POST /v1/chat/completions, /chat/completions,
//	     /v1beta/openai/chat/completions   OpenAI-style SSE (openai, mistral, google compat)
//	POST /api/chat                         Ollama NDJSON
//	POST /v1/messages                      Anthropic typed SSE
//	POST /v1beta/models/{model}:streamGenerateContent  Gemini SSE
func Handler(o Options) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", o.handleOpenAI)
	mux.HandleFunc("POST /chat/completions", o.handleOpenAI)
	mux.HandleFunc("POST /v1beta/openai/chat/completions", o.handleOpenAI)
	mux.HandleFunc("POST /api/chat", o.handleOllama)
	mux.HandleFunc("POST /v1/messages", o.handleAnthropic)
	mux.HandleFunc("POST /v1beta/models/{action}", o.handleGemini)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

// Reply returns the text the fake vendor streams for a system prompt and
// the last user message.
func Reply(system, lastUser string) string {
	return strings.Join(reply(system, lastUser), "")
}

// --- Request types ---

// message covers the flat role/content shape shared by the OpenAI,
// Mistral, Ollama and Anthropic dialects.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type flatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	System   string    `json:"system,omitempty"` // Anthropic only
}

type geminiRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"systemInstruction,omitempty"`
}

// --- Reply generation ---

// reply builds the deterministic answer: the system prompt, if any, in
// brackets, then the last user message echoed back.
func reply(system, lastUser string) []string {
	text := "You said: " + lastUser
	if system != "" {
		text = "[" + system + "] " + text
	}
	return tokenize(text)
}

// tokenize splits text into word tokens that keep their trailing space,
// so that concatenating them restores text.
func tokenize(text string) []string {
	var tokens []string
	for len(text) > 0 {
		i := strings.IndexByte(text, ' ')
		if i < 0 {
			tokens = append(tokens, text)
			break
		}
		tokens = append(tokens, text[:i+1])
		text = text[i+1:]
	}
	return tokens
}

func fromFlat(req *flatRequest) []string {
	system := req.System
	last := ""
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "user":
			last = m.Content
		}
	}
	return reply(system, last)
}

// stream emits tokens through emit, honoring the configured delay and
// failure point. It returns false when the stream was aborted.
func (o Options) stream(ctx context.Context, tokens []string, emit func(string)) bool {
	for i, tok := range tokens {
		if o.FailAfter > 0 && i >= o.FailAfter {
			return false
		}
		if o.Delay > 0 {
			select {
			case <-time.After(o.Delay):
			case <-ctx.Done():
				return false
			}
		}
		emit(tok)
	}
	return true
}

func startSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

func writeData(w http.ResponseWriter, f http.Flusher, event string, v any) {
	data, _ := json.Marshal(v)
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}

// --- OpenAI Chat Completions (openai, mistral, google compat) ---

func (o Options) handleOpenAI(w http.ResponseWriter, r *http.Request) {
	var req flatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}
	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	chunk := func(delta map[string]any, finish any) map[string]any {
		return map[string]any{
			"id":      "chatcmpl-mock",
			"object":  "chat.completion.chunk",
			"model":   req.Model,
			"choices": []any{map[string]any{"index": 0, "delta": delta, "finish_reason": finish}},
		}
	}

	writeData(w, flusher, "", chunk(map[string]any{"role": "assistant"}, nil))
	if !o.stream(r.Context(), fromFlat(&req), func(tok string) {
		writeData(w, flusher, "", chunk(map[string]any{"content": tok}, nil))
	}) {
		writeData(w, flusher, "", map[string]any{"error": map[string]any{"message": "mock failure", "type": "server_error"}})
		return
	}
	writeData(w, flusher, "", chunk(map[string]any{}, "stop"))
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// --- Ollama NDJSON ---

func (o Options) handleOllama(w http.ResponseWriter, r *http.Request) {
	var req flatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request"}`, http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")

	enc := json.NewEncoder(w)
	if !o.stream(r.Context(), fromFlat(&req), func(tok string) {
		enc.Encode(map[string]any{
			"model":   req.Model,
			"message": message{Role: "assistant", Content: tok},
			"done":    false,
		})
		flusher.Flush()
	}) {
		enc.Encode(map[string]any{"error": "mock failure"})
		flusher.Flush()
		return
	}
	enc.Encode(map[string]any{"model": req.Model, "done": true, "done_reason": "stop"})
	flusher.Flush()
}

// --- Anthropic Messages ---

func (o Options) handleAnthropic(w http.ResponseWriter, r *http.Request) {
	var req flatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"type":"error","error":{"type":"invalid_request_error","message":"invalid request"}}`, http.StatusBadRequest)
		return
	}
	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	writeData(w, flusher, "message_start", map[string]any{
		"type":    "message_start",
		"message": map[string]any{"id": "msg_mock", "role": "assistant", "model": req.Model},
	})
	writeData(w, flusher, "content_block_start", map[string]any{
		"type": "content_block_start", "index": 0,
		"content_block": map[string]any{"type": "text", "text": ""},
	})
	if !o.stream(r.Context(), fromFlat(&req), func(tok string) {
		writeData(w, flusher, "content_block_delta", map[string]any{
			"type": "content_block_delta", "index": 0,
			"delta": map[string]any{"type": "text_delta", "text": tok},
		})
	}) {
		writeData(w, flusher, "error", map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "overloaded_error", "message": "mock failure"},
		})
		return
	}
	writeData(w, flusher, "content_block_stop", map[string]any{"type": "content_block_stop", "index": 0})
	writeData(w, flusher, "message_stop", map[string]any{"type": "message_stop"})
}

// --- Gemini streamGenerateContent ---

func (o Options) handleGemini(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.PathValue("action"), ":streamGenerateContent") {
		http.NotFound(w, r)
		return
	}
	var req geminiRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"code":400,"message":"invalid request","status":"INVALID_ARGUMENT"}}`, http.StatusBadRequest)
		return
	}

	system := ""
	if req.SystemInstruction != nil && len(req.SystemInstruction.Parts) > 0 {
		system = req.SystemInstruction.Parts[0].Text
	}
	last := ""
	for _, c := range req.Contents {
		if c.Role == "user" && len(c.Parts) > 0 {
			last = c.Parts[0].Text
		}
	}

	flusher, ok := startSSE(w)
	if !ok {
		return
	}
	if !o.stream(r.Context(), reply(system, last), func(tok string) {
		writeData(w, flusher, "", map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": tok}}},
			}},
		})
	}) {
		writeData(w, flusher, "", map[string]any{"error": map[string]any{"code": 503, "message": "mock failure", "status": "UNAVAILABLE"}})
		return
	}
	writeData(w, flusher, "", map[string]any{
		"candidates": []any{map[string]any{"finishReason": "STOP"}},
	})
}
