package service

import "errors"

// Error taxonomy shared by all registries. Handlers map these to HTTP codes
// with errors.Is; anything unwrapped is a persistence failure.
var (
	// ErrValidation marks input that fails structural rules before any write.
	ErrValidation = errors.New("validation failed")

	// ErrInvariant marks a write that would break a system rule, e.g. deleting
	// the last admin or a system role.
	ErrInvariant = errors.New("operation violates a system rule")

	// ErrNotFound marks a lookup with no matching record.
	ErrNotFound = errors.New("not found")
)
