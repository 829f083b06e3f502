// Package openaicompat provides the shared client for OpenAI-compatible
// Chat Completions backends. It handles request serialization, SSE chunk
// parsing and error mapping.
//
// Provider adapters (openai, mistral, and the Gemini fallback dialect)
// wrap the Client from this package and differ only in base URL, endpoint
// path and the name of the token-limit parameter.
package openaicompat
