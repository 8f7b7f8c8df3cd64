package storage

import "errors"

// Storage errors for append-only stores.
var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
