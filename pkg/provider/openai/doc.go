// Package openai implements provider.Provider for the OpenAI Chat
// Completions API.
//
// The adapter delegates to openaicompat.Client and differs from other
// OpenAI-compatible adapters only in its defaults: the token limit is sent
// as max_completion_tokens, which newer OpenAI models require.
package openai
