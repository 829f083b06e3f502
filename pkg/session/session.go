// Package session defines the conversation session store: a per-session
// message log that the chat pipeline reads before and writes after every
// exchange.
package session

import (
	"context"

	"github.com/rhuss/aichat/pkg/api"
)

// Store persists conversations keyed by session ID.
//
// Get returns an empty conversation for an unknown session. Set replaces
// the stored conversation as a whole; callers pass the full log. Both
// must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, sessionID string) (api.Conversation, error)
	Set(ctx context.Context, sessionID string, conv api.Conversation) error

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
