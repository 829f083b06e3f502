// Package anthropic implements provider.Provider for the Anthropic
// Messages API.
//
// Anthropic takes the system prompt as a top-level "system" field rather
// than a list entry, requires max_tokens on every request, and streams
// typed SSE events of which only text deltas carry output.
package anthropic
