package gemini

import (
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the Generative Language API root.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// CompatBaseURL is Google's OpenAI-compatible endpoint. Its chat
	// path has no /v1 segment, see CompatChatPath.
	CompatBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

	// CompatChatPath is appended to CompatBaseURL.
	CompatChatPath = "/chat/completions"
)

// Config holds configuration for the Gemini provider adapters.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides DefaultBaseURL for the native adapter and
	// CompatBaseURL for the compatible one.
	BaseURL string

	// DisableNative makes New report ErrIntegrationUnavailable so the
	// OpenAI-compatible dialect is used.
	DisableNative bool

	Timeout    time.Duration
	HTTPClient *http.Client
}
