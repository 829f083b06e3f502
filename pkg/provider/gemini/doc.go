// Package gemini implements provider.Provider for Google's Gemini models.
//
// The native adapter speaks the Generative Language API
// (models/{model}:streamGenerateContent with alt=sse): the system prompt
// goes into systemInstruction, turns become contents with the assistant
// role renamed to "model", and the token limit is
// generationConfig.maxOutputTokens.
//
// When the native integration is unavailable (built with the nogeminiapi
// tag, or disabled in configuration) New returns ErrIntegrationUnavailable
// and callers can use NewCompat instead, which talks to Google's
// OpenAI-compatible endpoint through openaicompat.
package gemini
