package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/debug"
	"github.com/rhuss/aichat/pkg/markdown"
	"github.com/rhuss/aichat/pkg/observability"
	"github.com/rhuss/aichat/pkg/prompt"
	"github.com/rhuss/aichat/pkg/provider"
	"github.com/rhuss/aichat/pkg/session"
	"github.com/rhuss/aichat/pkg/transport"
)

// Engine drives one exchange per Submit call between the transport layer
// and the provider backend. It implements transport.ChatHandler.
type Engine struct {
	provider provider.Provider
	sessions session.Store
	prompts  *prompt.Resolver
	render   func(string) string
	cfg      Config
}

// Ensure Engine implements transport.ChatHandler at compile time.
var _ transport.ChatHandler = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithPromptResolver sets the system prompt source. Without one no system
// turn is sent.
func WithPromptResolver(r *prompt.Resolver) Option {
	return func(e *Engine) { e.prompts = r }
}

// WithRenderer replaces the markdown renderer used when RenderMarkdown is
// set.
func WithRenderer(render func(string) string) Option {
	return func(e *Engine) { e.render = render }
}

// New creates a new Engine. The provider and session store must not be
// nil.
func New(p provider.Provider, sessions session.Store, cfg Config, opts ...Option) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider must not be nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("engine: session store must not be nil")
	}
	e := &Engine{
		provider: p,
		sessions: sessions,
		render:   markdown.Render,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Submit runs one exchange. The user turn is persisted before the provider
// is called. The assistant turn is persisted with whatever was received
// when the stream ends normally, fails mid-stream, or is cancelled by the
// client. A cancelled exchange returns nil; a vendor failure returns the
// *provider.ProviderError after the partial reply has been committed.
func (e *Engine) Submit(ctx context.Context, sessionID, text string, w transport.FragmentWriter) error {
	if apiErr := api.ValidateMessageText(text, e.cfg.MaxMessageLength); apiErr != nil {
		return apiErr
	}

	conv, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	conv = conv.Append(api.NewUserMessage(text))
	if err := e.sessions.Set(ctx, sessionID, conv); err != nil {
		return fmt.Errorf("saving user turn: %w", err)
	}

	messages, err := e.outgoing(ctx, conv)
	if err != nil {
		return err
	}

	provName := e.provider.Name()
	start := time.Now()

	// streamCtx stops the adapter goroutine whenever Submit returns,
	// including when the client write fails before ctx is cancelled.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := e.provider.Stream(streamCtx, &provider.Request{
		Model:     e.cfg.Model,
		Messages:  messages,
		MaxTokens: e.cfg.MaxTokens,
	})
	if err != nil {
		outcome := observability.OutcomeError
		if ctx.Err() != nil {
			outcome = observability.OutcomeCancelled
		}
		e.recordOutcome(provName, outcome, start)
		if outcome == observability.OutcomeCancelled {
			return nil
		}
		return err
	}

	res := e.relay(streamCtx, ch, w)
	cancel()

	// Commit with a context that survives client disconnect.
	commitCtx := context.WithoutCancel(ctx)
	conv = conv.Append(api.NewAssistantMessage(res.content))
	if err := e.sessions.Set(commitCtx, sessionID, conv); err != nil {
		e.recordOutcome(provName, observability.OutcomeError, start)
		return fmt.Errorf("saving assistant turn: %w", err)
	}

	observability.ProviderFragmentsTotal.WithLabelValues(provName, e.cfg.Model).Add(float64(res.fragments))
	outcome := res.outcome()
	observability.ObserveCommit(outcome)
	e.recordOutcome(provName, outcome, start)

	switch outcome {
	case observability.OutcomeError:
		slog.Warn("stream failed, partial reply committed",
			"request_id", transport.RequestIDFromContext(ctx),
			"provider", provName,
			"chars", len(res.content),
			"error", res.err,
		)
		return res.err
	case observability.OutcomeCancelled:
		debug.Log("engine", "client went away, partial reply committed",
			"request_id", transport.RequestIDFromContext(ctx),
			"chars", len(res.content),
		)
		return nil
	}
	return w.Flush()
}

// relayResult is the outcome of consuming one fragment stream.
type relayResult struct {
	content   string
	fragments int
	err       error
	cancelled bool
}

func (r relayResult) outcome() string {
	switch {
	case r.err != nil:
		return observability.OutcomeError
	case r.cancelled:
		return observability.OutcomeCancelled
	}
	return observability.OutcomeOK
}

// relay consumes ch, forwarding each fragment to w, until the stream ends,
// fails, the client write fails, or ctx is done.
func (e *Engine) relay(ctx context.Context, ch <-chan provider.Event, w transport.FragmentWriter) relayResult {
	var buf strings.Builder
	var res relayResult

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				res.content = buf.String()
				return res
			}
			if ev.Err != nil {
				res.content = buf.String()
				res.err = ev.Err
				return res
			}
			if ev.Delta == "" {
				continue
			}
			buf.WriteString(ev.Delta)
			res.fragments++

			chunk := ev.Delta
			if e.cfg.RenderMarkdown {
				chunk = e.render(buf.String())
			}
			if err := w.WriteFragment(ctx, chunk); err != nil {
				debug.Log("engine", "fragment write failed", "error", err)
				res.content = buf.String()
				res.cancelled = true
				return res
			}
		case <-ctx.Done():
			res.content = buf.String()
			res.cancelled = true
			return res
		}
	}
}

// outgoing builds the provider message list: the resolved system prompt,
// if any, followed by the conversation.
func (e *Engine) outgoing(ctx context.Context, conv api.Conversation) ([]api.Message, error) {
	if e.prompts == nil {
		return conv, nil
	}
	system, err := e.prompts.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving system prompt: %w", err)
	}
	if system == "" {
		return conv, nil
	}
	out := make([]api.Message, 0, len(conv)+1)
	out = append(out, api.NewSystemMessage(system))
	return append(out, conv...), nil
}

func (e *Engine) recordOutcome(provName, outcome string, start time.Time) {
	observability.ObserveStream(provName, e.cfg.Model, outcome, start)
}

// Clear empties the session's conversation.
func (e *Engine) Clear(ctx context.Context, sessionID string) error {
	if err := e.sessions.Set(ctx, sessionID, api.Conversation{}); err != nil {
		return fmt.Errorf("clearing conversation: %w", err)
	}
	return nil
}

// Conversation returns the session's stored turns.
func (e *Engine) Conversation(ctx context.Context, sessionID string) (api.Conversation, error) {
	conv, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	return conv, nil
}
