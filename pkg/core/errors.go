// Package core provides the graphmem client: configuration, component
// wiring, and the ingest/retrieval API over the memory engine.
package core

import (
	"errors"
	"fmt"

	"github.com/driftlab/graphmem/pkg/storage"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested memory was not found. It is
	// the storage sentinel, re-exported so callers need only this package.
	ErrNotFound = storage.ErrNotFound

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyText indicates that an ingest call carried no text.
	ErrEmptyText = errors.New("empty text")

	// ErrClosed indicates an operation on a closed client.
	ErrClosed = errors.New("client closed")
)

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed, making
// error messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "Add",
//	    Err: ErrEmptyText,
//	}
//	// Error() returns: "graphmem: Add: empty text"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "graphmem: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("graphmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Add", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "Add", "Search", "Pin")
//   - err: The underlying error to wrap
//
// Returns a MemoryError, or nil if err is nil.
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}
