package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/debug"
	"github.com/rhuss/aichat/pkg/provider"
	"github.com/rhuss/aichat/pkg/provider/openaicompat"
)

const (
	// DefaultBaseURL is the Anthropic API root.
	DefaultBaseURL = "https://api.anthropic.com"

	// APIVersion is sent as the anthropic-version header.
	APIVersion = "2023-06-01"

	// DefaultMaxTokens is used when the request leaves MaxTokens unset,
	// since the Messages API rejects requests without it.
	DefaultMaxTokens = 4096
)

// Config holds configuration for the Anthropic provider adapter.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// AnthropicProvider implements provider.Provider for the Messages API.
type AnthropicProvider struct {
	cfg    Config
	client *http.Client
}

var _ provider.Provider = (*AnthropicProvider)(nil)

// New creates a new AnthropicProvider.
func New(cfg Config) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", provider.ErrMissingAPIKey)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.Timeout,
			},
		}
	}

	return &AnthropicProvider{cfg: cfg, client: client}, nil
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return string(provider.KindAnthropic)
}

// Stream sends a streaming Messages request. System messages are lifted
// out of the list into the top-level system field.
func (p *AnthropicProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	body, err := json.Marshal(p.translate(req))
	if err != nil {
		return nil, &provider.ProviderError{Provider: p.Name(), Message: "failed to marshal request", Err: err}
	}

	url := p.cfg.BaseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &provider.ProviderError{Provider: p.Name(), Message: "failed to create HTTP request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	debug.Log("providers", "anthropic messages request", "url", url, "model", req.Model)
	debug.Payload("providers", "anthropic request body", string(body))

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, openaicompat.MapNetworkError(p.Name(), err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, openaicompat.MapHTTPError(p.Name(), httpResp)
	}

	ch := make(chan provider.Event, 16)

	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		parseSSEStream(ctx, p.Name(), httpResp.Body, ch)
	}()

	return ch, nil
}

// Close releases provider resources.
func (p *AnthropicProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *AnthropicProvider) translate(req *provider.Request) messagesRequest {
	system, turns := req.SplitSystem()

	mr := messagesRequest{
		Model:     req.Model,
		System:    system,
		Messages:  make([]message, 0, len(turns)),
		MaxTokens: req.MaxTokens,
		Stream:    true,
	}
	if mr.Model == "" {
		mr.Model = p.cfg.Model
	}
	if mr.MaxTokens <= 0 {
		mr.MaxTokens = DefaultMaxTokens
	}

	// Empty turns are committed for replies that never produced text;
	// the Messages API rejects them.
	for _, m := range turns {
		if m.Content == "" {
			continue
		}
		role := m.Role
		if role != api.RoleAssistant {
			role = api.RoleUser
		}
		mr.Messages = append(mr.Messages, message{Role: string(role), Content: m.Content})
	}
	return mr
}
