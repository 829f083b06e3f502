package openai

import (
	"net/http"
	"time"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com"

// Config holds configuration for the OpenAI provider adapter.
type Config struct {
	// APIKey authenticates against the API. Required.
	APIKey string

	// Model is the default model identifier (e.g., "gpt-4o-mini").
	Model string

	// BaseURL overrides the API root, for proxies and tests.
	BaseURL string

	// Timeout bounds connection setup and response headers. Defaults to 120s.
	Timeout time.Duration

	// HTTPClient overrides the default client (useful for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: DefaultBaseURL,
		Timeout: 120 * time.Second,
	}
}
