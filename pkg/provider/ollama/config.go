package ollama

import (
	"net/http"
	"time"
)

// DefaultBaseURL is where a locally installed Ollama listens.
const DefaultBaseURL = "http://localhost:11434"

// Config holds configuration for the Ollama provider adapter.
type Config struct {
	// BaseURL is the Ollama server URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Model is the model tag to chat with (e.g., "llama3.2"). Required.
	Model string

	// Timeout bounds connection setup and response headers, which for a
	// cold model includes load time. Defaults to 300s.
	Timeout time.Duration

	// HTTPClient overrides the default client (useful for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(model string) Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Model:   model,
		Timeout: 300 * time.Second,
	}
}
