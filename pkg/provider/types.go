package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rhuss/aichat/pkg/api"
)

// Kind is the provider selector from configuration.
type Kind string

const (
	KindOllama    Kind = "ollama"
	KindOpenAI    Kind = "openai"
	KindGoogle    Kind = "google"
	KindAnthropic Kind = "anthropic"
	KindMistral   Kind = "mistral"
)

// ErrMissingAPIKey is returned by constructors of hosted adapters when no
// credential is configured.
var ErrMissingAPIKey = errors.New("API key is required")

// ErrMissingModel is returned by constructors when no model name is set.
var ErrMissingModel = errors.New("model is required")

// Kinds lists every supported selector in a stable order.
var Kinds = []Kind{KindOllama, KindOpenAI, KindGoogle, KindAnthropic, KindMistral}

// ParseKind maps a configuration string to a Kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// RequiresAPIKey reports whether the provider is a hosted service that
// needs a credential. Only the local inference server runs without one.
func (k Kind) RequiresAPIKey() bool {
	return k != KindOllama
}

// Request is the backend-facing chat request. Messages is the full
// outgoing history including a leading system message when one is
// configured; each adapter places that message where its vendor expects it.
type Request struct {
	Model    string
	Messages []api.Message

	// MaxTokens bounds generated output. Adapters for vendors without a
	// token-limit parameter ignore it. Zero means "vendor default".
	MaxTokens int
}

// SplitSystem separates system messages from the conversational turns.
// Multiple system messages are joined with a blank line. Adapters whose
// vendor takes the system prompt out of band use it.
func (r *Request) SplitSystem() (system string, turns []api.Message) {
	var parts []string
	for _, m := range r.Messages {
		if m.Role == api.RoleSystem {
			parts = append(parts, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(parts, "\n\n"), turns
}

// Event is one element of a fragment stream. Delta is never absent: a
// chunk without text is delivered as "" so consumers can concatenate
// unconditionally. Err is set only on the final event of a failed stream.
type Event struct {
	Delta string
	Err   error
}

// Emit sends ev on ch unless ctx is done first. It returns false when
// the consumer has gone away and the producer should stop.
func Emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// ProviderError reports a vendor failure: authentication, network, quota
// or a malformed stream. Err holds the underlying cause.
type ProviderError struct {
	Provider   string
	StatusCode int // HTTP status, 0 for transport-level failures
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: HTTP %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, msg)
}

// Unwrap returns the underlying vendor error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// APIError converts the failure into the client-facing error shape.
func (e *ProviderError) APIError() *api.APIError {
	code := ""
	if e.StatusCode != 0 {
		code = fmt.Sprintf("%d", e.StatusCode)
	}
	return api.NewProviderError(code, e.Error())
}
