package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned when a block or index entry is not stored.
	// Implementations translate their backend's not found errors into it.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when an insert targets an occupied key.
	// Callers that treat repeated stores as no-ops filter it out.
	ErrAlreadyExists = errors.New("already exists")
)
