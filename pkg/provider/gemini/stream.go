package gemini

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

// parseSSEStream reads streamGenerateContent chunks and emits the joined
// text parts of the first candidate, one Event per chunk. The stream ends
// when the body does; there is no [DONE] sentinel.
func parseSSEStream(ctx context.Context, providerName string, body io.Reader, ch chan<- provider.Event) {
	scanner := openaicompat.NewLineScanner(body)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		data, ok := openaicompat.DataPayload(scanner.Text())
		if !ok {
			continue
		}

		debug.Trace("streaming", "gemini chunk", "data", data)

		var chunk generateResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"provider", providerName,
				"error", err.Error(),
				"data", openaicompat.Truncate(data, 200),
			)
			continue
		}

		if chunk.Error != nil {
			provider.Emit(ctx, ch, provider.Event{Err: &provider.ProviderError{
				Provider:   providerName,
				StatusCode: chunk.Error.Code,
				Message:    chunk.Error.Message,
			}})
			return
		}

		if len(chunk.Candidates) == 0 {
			if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
				provider.Emit(ctx, ch, provider.Event{Err: &provider.ProviderError{
					Provider: providerName,
					Message:  "prompt blocked: " + chunk.PromptFeedback.BlockReason,
				}})
				return
			}
			continue
		}

		var sb strings.Builder
		for _, p := range chunk.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		if !provider.Emit(ctx, ch, provider.Event{Delta: sb.String()}) {
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
