// Package id provides unique identifier generation utilities.
// This is the canonical source for ID generation across the codebase.
package id

import (
	"github.com/google/uuid"
)

// UUID generates a UUID v4 (random).
// Returns a string in the format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
func UUID() string {
	return uuid.NewString()
}

// Short generates an 8 character lowercase hex ID, the first group of a
// random UUID. Used where the ID ends up in a file name or a short value.
func Short() string {
	return UUID()[:8]
}
