package domain

import "errors"

// Sentinel errors shared across layers. Wrap with %w so callers can
// errors.Is against them at the API boundary.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)
