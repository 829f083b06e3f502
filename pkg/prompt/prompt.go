// Package prompt resolves the system prompt injected ahead of every
// exchange. A Store supplies the current prompt record when one exists;
// Resolver adds caching and the fallback to the static prompt.
package prompt

import (
	"context"
	"time"
)

// Store yields the currently active system prompt. ok is false when no
// prompt record exists.
type Store interface {
	Current(ctx context.Context) (content string, ok bool, err error)
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context) (string, bool, error)

// Current implements Store.
func (f StoreFunc) Current(ctx context.Context) (string, bool, error) {
	return f(ctx)
}

// Record is a stored system prompt. The lowest-ID record is the active one.
type Record struct {
	ID        int64
	Name      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
