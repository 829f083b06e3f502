package ollama

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

// parseNDJSONStream reads newline-delimited chat chunks from body and
// sends one Event per content-bearing line. The channel is NOT closed by
// this function.
func parseNDJSONStream(ctx context.Context, providerName string, body io.Reader, ch chan<- provider.Event) {
	scanner := openaicompat.NewLineScanner(body)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		debug.Trace("streaming", "ndjson chunk", "provider", providerName, "data", line)

		var chunk chatChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			slog.Warn("skipping malformed NDJSON chunk",
				"provider", providerName,
				"error", err.Error(),
				"data", openaicompat.Truncate(line, 200),
			)
			continue
		}

		if chunk.Error != "" {
			provider.Emit(ctx, ch, provider.Event{Err: &provider.ProviderError{
				Provider: providerName,
				Message:  chunk.Error,
			}})
			return
		}

		if chunk.Message != nil {
			if !provider.Emit(ctx, ch, provider.Event{Delta: chunk.Message.Content}) {
				return
			}
		}

		if chunk.Done {
			debug.Log("providers", "ollama stream done",
				"reason", chunk.DoneReason, "eval_count", chunk.EvalCount, "prompt_eval_count", chunk.PromptEvalCount)
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
