// Package api defines the vendor-neutral conversation types for aichat.
//
// A conversation is an ordered list of [Message] values, each carrying a
// [Role] and plain text content. Vendor wire shapes are produced by the
// provider adapters and never appear here, which keeps stored conversations
// independent of the configured backend.
//
// The package also defines [APIError], the structured error returned to HTTP
// clients, and the input checks applied before a user turn enters a
// conversation.
//
// The package has no external dependencies and performs no I/O.
package api
