package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record already exists at an identity key
	// that must only be created once.
	ErrDuplicate = errors.New("persistence: duplicate key")
)
