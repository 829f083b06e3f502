package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/rhuss/aichat/pkg/debug"
	"github.com/rhuss/aichat/pkg/provider"
)

// MaxLineSize bounds a single SSE line. Vendor chunks are small, but an
// in-band error payload can exceed bufio's 64 KiB default.
const MaxLineSize = 1 << 20

// NewLineScanner returns a line scanner sized for vendor streams.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return scanner
}

// ParseSSEStream reads Chat Completions SSE chunks from the given reader,
// translates each chunk to an Event, and sends it on ch.
// The channel is NOT closed by this function; the caller is responsible
// for closing it.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Every chunk that carries a choice yields exactly one Event; a null or
// missing delta.content becomes "". Malformed chunks are logged and
// skipped. Context cancellation stops reading immediately.
func ParseSSEStream(ctx context.Context, providerName string, body io.Reader, ch chan<- provider.Event) {
	scanner := NewLineScanner(body)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		// SSE lines that don't start with "data:" are ignored
		// (e.g., empty lines, comments starting with ":").
		payload, ok := DataPayload(line)
		if !ok {
			continue
		}

		if payload == "[DONE]" {
			return
		}

		debug.Trace("streaming", "sse chunk", "provider", providerName, "data", payload)

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"provider", providerName,
				"error", err.Error(),
				"data", Truncate(payload, 200),
			)
			continue
		}

		if len(chunk.Error) > 0 && string(chunk.Error) != "null" {
			provider.Emit(ctx, ch, provider.Event{Err: &provider.ProviderError{
				Provider: providerName,
				Message:  errorMessageFromRaw(chunk.Error),
			}})
			return
		}

		ev, ok := TranslateChunk(&chunk)
		if !ok {
			continue
		}
		if !provider.Emit(ctx, ch, ev) {
			return
		}
	}

	// Scanner error (e.g., connection dropped).
	if err := scanner.Err(); err != nil {
		// Context cancellation is not an error from our perspective.
		if ctx.Err() != nil {
			return
		}
		provider.Emit(ctx, ch, provider.Event{Err: &provider.ProviderError{
			Provider: providerName,
			Message:  "stream read error",
			Err:      err,
		}})
	}
}

// TranslateChunk converts a single ChatCompletionChunk into an Event.
// It returns false for chunks without choices (e.g., the usage-only final
// chunk sent with stream_options.include_usage).
func TranslateChunk(chunk *ChatCompletionChunk) (provider.Event, bool) {
	if len(chunk.Choices) == 0 {
		return provider.Event{}, false
	}
	return provider.Event{Delta: ExtractDeltaContent(chunk.Choices[0].Delta.Content)}, true
}

// DataPayload extracts the payload of an SSE "data:" line. The space
// after the colon is optional in the SSE wire format.
func DataPayload(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "), true
}

// ExtractDeltaContent safely extracts the content string from a delta pointer.
func ExtractDeltaContent(content *string) string {
	if content == nil {
		return ""
	}
	return *content
}

// Truncate limits a string to maxLen characters for log output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
