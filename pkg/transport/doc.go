// Package transport defines the handler interfaces and middleware chain for
// the aichat HTTP/SSE transport layer.
//
// The transport layer bridges browser clients and the chat pipeline. It
// decodes incoming form or JSON submissions, dispatches them to a
// ChatHandler, and relays each produced fragment to the client as it is
// written.
//
// # Handler Interfaces
//
// ChatHandler is the contract between the transport layer and the engine:
// Submit runs one exchange, Clear resets a session, and Conversation
// returns the stored log. FragmentWriter abstracts the streaming output so
// the engine never sees an http.ResponseWriter.
//
// # Middleware
//
// The middleware chain wraps the Submit path with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog.
package transport
