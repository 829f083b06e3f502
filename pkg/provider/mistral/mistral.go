// Package mistral implements provider.Provider for the Mistral AI chat
// API, which speaks the OpenAI Chat Completions dialect with the token
// limit sent as max_tokens.
package mistral

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rhuss/aichat/pkg/provider"
	"github.com/rhuss/aichat/pkg/provider/openaicompat"
)

// DefaultBaseURL is the Mistral API root. The chat path already carries
// the /v1 prefix.
const DefaultBaseURL = "https://api.mistral.ai"

// Config holds configuration for the Mistral provider adapter.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// MistralProvider implements provider.Provider for Mistral AI.
type MistralProvider struct {
	cfg    Config
	client *openaicompat.Client
}

var _ provider.Provider = (*MistralProvider)(nil)

// New creates a new MistralProvider.
func New(cfg Config) (*MistralProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("mistral: %w", provider.ErrMissingAPIKey)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	client := openaicompat.NewClient(openaicompat.Config{
		Provider:   string(provider.KindMistral),
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		TokenParam: openaicompat.TokenParamMaxTokens,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	})

	return &MistralProvider{cfg: cfg, client: client}, nil
}

// Name returns the provider identifier.
func (p *MistralProvider) Name() string {
	return string(provider.KindMistral)
}

// Stream performs streaming inference against Mistral's chat endpoint.
func (p *MistralProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	if req.Model == "" {
		r := *req
		r.Model = p.cfg.Model
		req = &r
	}
	return p.client.Stream(ctx, req)
}

// Close releases provider resources.
func (p *MistralProvider) Close() error {
	return p.client.Close()
}
