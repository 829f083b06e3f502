package openai

import (
	"context"
	"fmt"

	"github.com/rhuss/aichat/pkg/provider"
	"github.com/rhuss/aichat/pkg/provider/openaicompat"
)

// OpenAIProvider implements provider.Provider for the OpenAI API.
// It delegates HTTP communication to the shared openaicompat.Client.
type OpenAIProvider struct {
	cfg    Config
	client *openaicompat.Client
}

// Ensure OpenAIProvider implements provider.Provider at compile time.
var _ provider.Provider = (*OpenAIProvider)(nil)

// New creates a new OpenAIProvider with the given configuration.
func New(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", provider.ErrMissingAPIKey)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	client := openaicompat.NewClient(openaicompat.Config{
		Provider:   string(provider.KindOpenAI),
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		TokenParam: openaicompat.TokenParamMaxCompletionTokens,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	})

	return &OpenAIProvider{cfg: cfg, client: client}, nil
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return string(provider.KindOpenAI)
}

// Stream performs streaming inference against the Chat Completions endpoint.
// An empty req.Model falls back to the configured model.
func (p *OpenAIProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	if req.Model == "" {
		r := *req
		r.Model = p.cfg.Model
		req = &r
	}
	return p.client.Stream(ctx, req)
}

// Close releases provider resources.
func (p *OpenAIProvider) Close() error {
	return p.client.Close()
}
