// Package storage provides utilities shared across storage adapter
// implementations: sentinel errors and key naming.
//
// Storage adapters (memory, redis, postgres, sqlite) implement
// session.Store and, where they can hold prompt records, prompt.Store.
// This package contains only shared types and helpers, not the
// interfaces themselves.
package storage
