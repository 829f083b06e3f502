package ollama

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
	"github.com/rhuss/aichat/pkg/provider/openaicompat"
)

// OllamaProvider implements provider.Provider for Ollama.
type OllamaProvider struct {
	cfg    Config
	client *http.Client
}

// Ensure OllamaProvider implements provider.Provider at compile time.
var _ provider.Provider = (*OllamaProvider)(nil)

// New creates a new OllamaProvider with the given configuration.
// Ollama needs no credential, only a model name.
func New(cfg Config) (*OllamaProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama: %w", provider.ErrMissingModel)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	// Normalize: remove trailing slash from base URL.
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
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

	return &OllamaProvider{cfg: cfg, client: client}, nil
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string {
	return string(provider.KindOllama)
}

// Stream starts a chat against /api/chat and relays message.content of
// every NDJSON line. req.MaxTokens is not forwarded.
func (p *OllamaProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	chatReq := chatRequest{
		Model:    model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
		Stream:   true,
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, &provider.ProviderError{Provider: p.Name(), Message: "failed to marshal request", Err: err}
	}

	url := p.cfg.BaseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &provider.ProviderError{Provider: p.Name(), Message: "failed to create HTTP request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	debug.Log("providers", "ollama chat request", "url", url, "model", model, "messages", len(chatReq.Messages))
	debug.Payload("providers", "ollama request body", string(body))

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
		parseNDJSONStream(ctx, p.Name(), httpResp.Body, ch)
	}()

	return ch, nil
}

// Close releases provider resources.
func (p *OllamaProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
