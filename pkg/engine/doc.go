// Package engine implements the streaming chat pipeline. The Engine struct
// implements transport.ChatHandler: it persists the user turn, resolves
// the system prompt, relays provider fragments to the client as they
// arrive, and commits the assistant turn when the stream ends, fails or
// is cancelled.
package engine
