// Package ollama implements provider.Provider for a local Ollama server.
//
// Ollama's native /api/chat endpoint streams newline-delimited JSON
// objects rather than SSE. The system prompt travels as an ordinary entry
// of the message list and no token-limit parameter is sent.
package ollama
