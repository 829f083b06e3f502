package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/rhuss/aichat/pkg/debug"
	"github.com/rhuss/aichat/pkg/provider"
	"github.com/rhuss/aichat/pkg/provider/openaicompat"
)

// parseSSEStream reads Messages API SSE events and emits the text of every
// text_delta. The channel is NOT closed by this function.
//
// SSE format expected:
//
//	event: content_block_delta
//	data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}
//
// The event type is taken from the "event:" line; the stream ends with
// message_stop.
func parseSSEStream(ctx context.Context, providerName string, body io.Reader, ch chan<- provider.Event) {
	scanner := openaicompat.NewLineScanner(body)
	var currentEvent string

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Text()

		if strings.HasPrefix(line, "event:") {
			currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}

		data, ok := openaicompat.DataPayload(line)
		if !ok {
			// Empty lines are SSE delimiters, ignore them.
			continue
		}

		eventType := currentEvent
		currentEvent = ""
		if eventType == "" {
			eventType = typeFromPayload(data)
		}

		debug.Trace("streaming", "anthropic event", "event", eventType, "data", data)

		switch eventType {
		case eventMessageStart:
			var d messageStartData
			if err := json.Unmarshal([]byte(data), &d); err == nil {
				debug.Log("providers", "anthropic stream started", "id", d.Message.ID, "model", d.Message.Model)
			}

		case eventContentBlockDelta:
			var d contentBlockDeltaData
			if err := json.Unmarshal([]byte(data), &d); err != nil {
				slog.Warn("skipping malformed content_block_delta",
					"provider", providerName,
					"error", err.Error(),
					"data", openaicompat.Truncate(data, 200),
				)
				continue
			}
			if d.Delta.Type != deltaTypeText {
				continue
			}
			if !provider.Emit(ctx, ch, provider.Event{Delta: d.Delta.Text}) {
				return
			}

		case eventError:
			var d errorData
			msg := "stream error"
			if err := json.Unmarshal([]byte(data), &d); err == nil && d.Error.Message != "" {
				msg = d.Error.Message
			}
			provider.Emit(ctx, ch, provider.Event{Err: &provider.ProviderError{
				Provider: providerName,
				Message:  msg,
			}})
			return

		case eventMessageStop:
			return
		}
	}

	if err := scanner.Err(); err != nil {
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

// typeFromPayload reads the "type" member that every Messages API event
// also carries in its data, for servers that omit the event line.
func typeFromPayload(data string) string {
	var v struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return ""
	}
	return v.Type
}
