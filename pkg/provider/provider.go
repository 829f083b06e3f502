package provider

import (
	"context"
)

// Provider abstracts an LLM vendor behind a single streaming chat
// capability.
//
// Implementations must be safe for concurrent use by multiple goroutines
// and must not keep per-request state in their fields.
type Provider interface {
	// Name returns the provider identifier (e.g., "ollama", "openai").
	// It always equals the Kind the adapter was selected by.
	Name() string

	// Stream starts a chat completion for the given request and returns
	// the fragment sequence. Failures while establishing the stream are
	// returned as *ProviderError. The channel is closed by the provider
	// when the stream ends; a failure after the stream started is sent as
	// a final Event with Err set. Cancelling ctx stops the producer and
	// releases the underlying connection.
	Stream(ctx context.Context, req *Request) (<-chan Event, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}
