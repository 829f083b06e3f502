package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Logging returns middleware that emits one structured log entry per
// exchange with the request ID, session, duration, number of fragments
// written and outcome.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatHandler) ChatHandler {
		return WithSubmit(next, func(ctx context.Context, sessionID, text string, w FragmentWriter) error {
			start := time.Now()
			cw := &countingWriter{FragmentWriter: w}

			err := next.Submit(ctx, sessionID, text, cw)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("session", sessionID),
				slog.Int("input_chars", len(text)),
				slog.Int("fragments", cw.n),
				slog.Duration("duration", time.Since(start)),
			}

			switch {
			case err != nil:
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "exchange failed", attrs...)
			case errors.Is(ctx.Err(), context.Canceled):
				logger.LogAttrs(ctx, slog.LevelInfo, "exchange cancelled", attrs...)
			default:
				logger.LogAttrs(ctx, slog.LevelInfo, "exchange completed", attrs...)
			}

			return err
		})
	}
}

type countingWriter struct {
	FragmentWriter
	n int
}

func (c *countingWriter) WriteFragment(ctx context.Context, chunk string) error {
	c.n++
	return c.FragmentWriter.WriteFragment(ctx, chunk)
}
