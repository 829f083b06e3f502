package transport

import (
	"context"

	"github.com/rhuss/aichat/pkg/api"
)

// ChatHandler runs chat exchanges for a session.
type ChatHandler interface {
	// Submit appends text as a user turn, streams the assistant reply to
	// w fragment by fragment, and persists the reply. Validation failures
	// are returned as *api.APIError before anything is written.
	Submit(ctx context.Context, sessionID, text string, w FragmentWriter) error

	// Clear empties the session's conversation.
	Clear(ctx context.Context, sessionID string) error

	// Conversation returns the session's stored turns.
	Conversation(ctx context.Context, sessionID string) (api.Conversation, error)
}

// FragmentWriter receives the output chunks of one exchange. Each chunk is
// either a raw text fragment or the sanitized HTML of the whole reply so
// far, depending on rendering mode.
type FragmentWriter interface {
	// WriteFragment sends one chunk. An error means the client is gone.
	WriteFragment(ctx context.Context, chunk string) error

	// Flush pushes buffered output to the client.
	Flush() error
}

// SubmitFunc is the signature of ChatHandler.Submit.
type SubmitFunc func(ctx context.Context, sessionID, text string, w FragmentWriter) error

// WithSubmit returns a ChatHandler that runs fn for Submit and delegates
// Clear and Conversation to next. Middleware use it to wrap only the
// streaming path.
func WithSubmit(next ChatHandler, fn SubmitFunc) ChatHandler {
	return &submitOverride{ChatHandler: next, submit: fn}
}

type submitOverride struct {
	ChatHandler
	submit SubmitFunc
}

func (s *submitOverride) Submit(ctx context.Context, sessionID, text string, w FragmentWriter) error {
	return s.submit(ctx, sessionID, text, w)
}
