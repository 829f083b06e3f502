// Package factory constructs the process-wide provider adapter from a
// validated configuration.
package factory

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/aichat/pkg/config"
	"github.com/rhuss/aichat/pkg/observability"
	"github.com/rhuss/aichat/pkg/provider"
	"github.com/rhuss/aichat/pkg/provider/anthropic"
	"github.com/rhuss/aichat/pkg/provider/gemini"
	"github.com/rhuss/aichat/pkg/provider/mistral"
	"github.com/rhuss/aichat/pkg/provider/ollama"
	"github.com/rhuss/aichat/pkg/provider/openai"
)

// FallbackOpenAICompatible labels the Google OpenAI-compatible fallback in
// logs and metrics.
const FallbackOpenAICompatible = "openai-compatible"

// UnsupportedProviderError reports a provider selector with no adapter.
// It unwraps to a *config.ConfigurationError on chat.provider.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider %q (supported: %v)", e.Provider, provider.Kinds)
}

func (e *UnsupportedProviderError) Unwrap() error {
	return &config.ConfigurationError{Field: "chat.provider", Reason: e.Error()}
}

// New constructs exactly one adapter for cfg.Chat.Provider. Adapter
// constructors validate their own requirements, so a missing credential
// surfaces here rather than on the first request.
func New(cfg *config.Config) (provider.Provider, error) {
	kind, ok := provider.ParseKind(cfg.Chat.Provider)
	if !ok {
		return nil, &UnsupportedProviderError{Provider: cfg.Chat.Provider}
	}

	c := cfg.Chat

	var (
		p   provider.Provider
		err error
	)
	switch kind {
	case provider.KindOllama:
		p, err = ollama.New(ollama.Config{BaseURL: c.BaseURL, Model: c.Model, Timeout: c.Timeout})
	case provider.KindOpenAI:
		p, err = openai.New(openai.Config{APIKey: c.APIKey, Model: c.Model, BaseURL: c.BaseURL, Timeout: c.Timeout})
	case provider.KindAnthropic:
		p, err = anthropic.New(anthropic.Config{APIKey: c.APIKey, Model: c.Model, BaseURL: c.BaseURL, Timeout: c.Timeout})
	case provider.KindMistral:
		p, err = mistral.New(mistral.Config{APIKey: c.APIKey, Model: c.Model, BaseURL: c.BaseURL, Timeout: c.Timeout})
	case provider.KindGoogle:
		p, err = newGoogle(gemini.Config{
			APIKey:        c.APIKey,
			Model:         c.Model,
			BaseURL:       c.BaseURL,
			DisableNative: !c.GoogleNative,
			Timeout:       c.Timeout,
		})
	default:
		return nil, &UnsupportedProviderError{Provider: cfg.Chat.Provider}
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", kind, err)
	}

	slog.Info("provider created", "provider", p.Name(), "model", c.Model)
	return p, nil
}

// newGoogle prefers the native Gemini adapter and falls back to the
// OpenAI-compatible endpoint only when the native integration is
// unavailable. The fallback is logged and counted. A configured base URL
// is handed to whichever dialect ends up being used.
func newGoogle(cfg gemini.Config) (provider.Provider, error) {
	p, err := gemini.New(cfg)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gemini.ErrIntegrationUnavailable) {
		return nil, err
	}

	slog.Warn("native Gemini integration unavailable, falling back to OpenAI-compatible endpoint",
		"provider", provider.KindGoogle,
		"fallback", FallbackOpenAICompatible,
		"endpoint", compatEndpoint(cfg),
		"reason", err.Error(),
	)
	observability.ProviderFallbacksTotal.WithLabelValues(string(provider.KindGoogle), FallbackOpenAICompatible).Inc()

	return gemini.NewCompat(cfg)
}

func compatEndpoint(cfg gemini.Config) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return gemini.CompatBaseURL
}
