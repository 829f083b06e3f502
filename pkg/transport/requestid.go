package transport

import (
	"context"

	"github.com/google/uuid"
)

// MaxRequestIDLength bounds client-supplied request IDs.
const MaxRequestIDLength = 128

type requestIDKey struct{}

// ContextWithRequestID returns a copy of ctx carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewRequestID returns a fresh request ID.
func NewRequestID() string {
	return uuid.NewString()
}

// ValidRequestID reports whether a client-supplied ID may be adopted. IDs
// end up in log lines and response headers, so only short strings of
// letters, digits and "-_.:" are accepted.
func ValidRequestID(id string) bool {
	if id == "" || len(id) > MaxRequestIDLength {
		return false
	}
	for _, c := range []byte(id) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

// RequestID assigns a request ID to exchanges whose context has none, as
// happens when the handler is driven without the HTTP adapter.
func RequestID() Middleware {
	return func(next ChatHandler) ChatHandler {
		return WithSubmit(next, func(ctx context.Context, sessionID, text string, w FragmentWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, NewRequestID())
			}
			return next.Submit(ctx, sessionID, text, w)
		})
	}
}
