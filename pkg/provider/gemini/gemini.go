package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhuss/aichat/pkg/api"
	"github.com/rhuss/aichat/pkg/debug"
	"github.com/rhuss/aichat/pkg/provider"
	"github.com/rhuss/aichat/pkg/provider/openaicompat"
)

// ErrIntegrationUnavailable reports that the native Gemini adapter cannot
// be used in this build or configuration.
var ErrIntegrationUnavailable = errors.New("gemini: native integration unavailable")

// NativeAvailable reports whether the native integration is compiled in.
func NativeAvailable() bool {
	return nativeAvailable
}

// GeminiProvider implements provider.Provider against the native API.
type GeminiProvider struct {
	cfg    Config
	client *http.Client
}

var _ provider.Provider = (*GeminiProvider)(nil)

// New creates the native adapter. It returns ErrIntegrationUnavailable
// when the native integration is compiled out or disabled.
func New(cfg Config) (*GeminiProvider, error) {
	if !nativeAvailable || cfg.DisableNative {
		return nil, ErrIntegrationUnavailable
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", provider.ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini: %w", provider.ErrMissingModel)
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

	return &GeminiProvider{cfg: cfg, client: client}, nil
}

// NewCompat creates an adapter for Google's OpenAI-compatible endpoint.
// Its Name is still "google".
func NewCompat(cfg Config) (provider.Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", provider.ErrMissingAPIKey)
	}
	base := cfg.BaseURL
	if base == "" {
		base = CompatBaseURL
	}

	client := openaicompat.NewClient(openaicompat.Config{
		Provider:   string(provider.KindGoogle),
		BaseURL:    base,
		ChatPath:   CompatChatPath,
		APIKey:     cfg.APIKey,
		TokenParam: openaicompat.TokenParamMaxTokens,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	})
	return &compatProvider{model: cfg.Model, client: client}, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return string(provider.KindGoogle)
}

// Endpoint returns the streaming URL for the given model.
func (p *GeminiProvider) Endpoint(model string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", p.cfg.BaseURL, url.PathEscape(model))
}

// Stream performs a streaming generateContent call.
func (p *GeminiProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body, err := json.Marshal(translate(req))
	if err != nil {
		return nil, &provider.ProviderError{Provider: p.Name(), Message: "failed to marshal request", Err: err}
	}

	endpoint := p.Endpoint(model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &provider.ProviderError{Provider: p.Name(), Message: "failed to create HTTP request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)

	debug.Log("providers", "gemini generate request", "url", endpoint, "model", model)
	debug.Payload("providers", "gemini request body", string(body))

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
func (p *GeminiProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func translate(req *provider.Request) generateRequest {
	system, turns := req.SplitSystem()

	gr := generateRequest{Contents: make([]content, 0, len(turns))}
	if system != "" {
		gr.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	if req.MaxTokens > 0 {
		gr.GenerationConfig = &generationConfig{MaxOutputTokens: req.MaxTokens}
	}

	for _, m := range turns {
		if m.Content == "" {
			continue
		}
		role := roleUser
		if m.Role == api.RoleAssistant {
			role = roleModel
		}
		gr.Contents = append(gr.Contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	return gr
}

// compatProvider is the OpenAI-compatible fallback.
type compatProvider struct {
	model  string
	client *openaicompat.Client
}

func (p *compatProvider) Name() string {
	return string(provider.KindGoogle)
}

func (p *compatProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	if req.Model == "" {
		r := *req
		r.Model = p.model
		req = &r
	}
	return p.client.Stream(ctx, req)
}

func (p *compatProvider) Close() error {
	return p.client.Close()
}
