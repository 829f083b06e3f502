package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when creating a record whose unique key
	// already exists.
	ErrConflict = errors.New("already exists")

	// ErrInvalidSessionID is returned when a session ID is empty.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)
