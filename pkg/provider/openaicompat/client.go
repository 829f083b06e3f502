package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/aichat/pkg/debug"
	"github.com/rhuss/aichat/pkg/provider"
)

// TokenParam names the request field carrying the output token limit.
type TokenParam string

const (
	TokenParamMaxTokens           TokenParam = "max_tokens"
	TokenParamMaxCompletionTokens TokenParam = "max_completion_tokens"
	TokenParamNone                TokenParam = ""
)

// DefaultChatPath is the Chat Completions endpoint relative to the base URL.
const DefaultChatPath = "/v1/chat/completions"

// Config holds the settings of an OpenAI-compatible Client.
type Config struct {
	// Provider is the name reported in errors and metrics.
	Provider string

	// BaseURL is the backend root (e.g., "https://api.openai.com").
	BaseURL string

	// ChatPath is appended to BaseURL. Defaults to DefaultChatPath.
	ChatPath string

	// APIKey is sent as a Bearer token when non-empty.
	APIKey string

	// TokenParam selects how Request.MaxTokens is sent.
	TokenParam TokenParam

	// Timeout bounds connection setup and response headers. The stream
	// body itself is bounded by the request context only.
	Timeout time.Duration

	// HTTPClient overrides the default client (useful for testing).
	HTTPClient *http.Client
}

// Client performs streaming requests against an OpenAI-compatible Chat
// Completions backend.
//
// Provider adapters wrap this Client and delegate their Stream/Close calls
// to it.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

// NewClient creates a new Client for an OpenAI-compatible backend.
func NewClient(cfg Config) *Client {
	// Normalize: remove trailing slash from base URL.
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ChatPath == "" {
		cfg.ChatPath = DefaultChatPath
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.Timeout,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}

	return &Client{httpClient: hc, cfg: cfg}
}

// Endpoint returns the full chat completions URL.
func (c *Client) Endpoint() string {
	return c.cfg.BaseURL + c.cfg.ChatPath
}

// Stream performs streaming inference against the Chat Completions endpoint.
// It returns a channel of Events. The channel is closed when the stream
// completes, errors, or the context is cancelled.
//
// No overall client timeout is applied because a stream can legitimately
// last longer than any fixed timeout. Lifecycle control relies on context
// cancellation instead.
func (c *Client) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	chatReq := TranslateToChat(req, c.cfg.TokenParam)

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, &provider.ProviderError{Provider: c.cfg.Provider, Message: "failed to marshal request", Err: err}
	}

	url := c.Endpoint()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &provider.ProviderError{Provider: c.cfg.Provider, Message: "failed to create HTTP request", Err: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	debug.Log("providers", "chat completions request",
		"provider", c.cfg.Provider, "url", url, "model", req.Model, "messages", len(chatReq.Messages))
	debug.Payload("providers", c.cfg.Provider+" request body", string(body))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(c.cfg.Provider, err)
	}

	// Check for error status codes before starting the stream.
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, MapHTTPError(c.cfg.Provider, httpResp)
	}

	ch := make(chan provider.Event, 16)

	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		ParseSSEStream(ctx, c.cfg.Provider, httpResp.Body, ch)
	}()

	return ch, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// TranslateToChat converts a provider Request into a ChatCompletionRequest.
// Messages are passed through in order, system messages included, since
// Chat Completions accepts the system prompt as a list entry.
func TranslateToChat(req *provider.Request, param TokenParam) ChatCompletionRequest {
	cr := ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]ChatMessage, 0, len(req.Messages)),
		Stream:   true,
	}

	for _, m := range req.Messages {
		cr.Messages = append(cr.Messages, ChatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	if req.MaxTokens > 0 {
		n := req.MaxTokens
		switch param {
		case TokenParamMaxTokens:
			cr.MaxTokens = &n
		case TokenParamMaxCompletionTokens:
			cr.MaxCompletionTokens = &n
		}
	}

	return cr
}

// String implements fmt.Stringer for log output.
func (c *Client) String() string {
	return fmt.Sprintf("openaicompat(%s %s)", c.cfg.Provider, c.Endpoint())
}
