package engine

// Config holds configuration for the chat pipeline.
type Config struct {
	// Model is passed to the provider on every request.
	Model string

	// MaxTokens bounds generated output. Zero leaves it to the vendor.
	MaxTokens int

	// MaxMessageLength bounds user input in characters. Zero or negative
	// disables the check.
	MaxMessageLength int

	// RenderMarkdown emits sanitized HTML of the whole reply so far in
	// place of each raw fragment.
	RenderMarkdown bool
}
