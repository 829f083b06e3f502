package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/rhuss/aichat/pkg/api"
)

// Recovery returns middleware that catches panics in Submit and converts
// them to server errors. The server continues to accept new requests
// after a panic is recovered.
func Recovery() Middleware {
	return func(next ChatHandler) ChatHandler {
		return WithSubmit(next, func(ctx context.Context, sessionID, text string, w FragmentWriter) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic in chat handler",
						"request_id", RequestIDFromContext(ctx),
						"panic", fmt.Sprint(r),
						"stack", string(debug.Stack()),
					)
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.Submit(ctx, sessionID, text, w)
		})
	}
}
