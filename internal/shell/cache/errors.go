// Package cache persists Cost Explorer results between warm invocations.
package cache

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrConnectionFailed is returned when the database cannot be opened.
	ErrConnectionFailed = errors.New("cache connection failed")

	// ErrMigrationFailed is returned when the schema migration fails.
	ErrMigrationFailed = errors.New("cache migration failed")

	// ErrInvalidData is returned when a cached entry cannot be decoded.
	ErrInvalidData = errors.New("invalid cache data")
)

// CacheError wraps errors with additional context.
type CacheError struct {
	Op      string // Operation that failed (e.g., "Get")
	Key     string // Cache key if applicable
	Message string
	Err     error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Key, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// NewCacheError creates a new CacheError.
func NewCacheError(op, key, message string, err error) *CacheError {
	return &CacheError{
		Op:      op,
		Key:     key,
		Message: message,
		Err:     err,
	}
}
