package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a call record does not exist.
	ErrNotFound = errors.New("call not found")

	// ErrConflict is returned when a call with the given ID already exists.
	ErrConflict = errors.New("call already exists")
)
