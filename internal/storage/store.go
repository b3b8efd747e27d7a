package storage

import "errors"

// Common errors for store operations
var (
	// ErrQuotaExceeded is returned when a write would exceed the store quota
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrClosed is returned when a store is used after Close
	ErrClosed = errors.New("storage closed")
)

// Store is a string key-value area shared by every cache built on it.
// Implementations must be safe for concurrent use.
type Store interface {
	// Keys returns a snapshot of the stored keys in insertion order.
	Keys() ([]string, error)

	// Get returns the raw value for key; ok is false when absent.
	Get(key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// Clear removes every key.
	Clear() error
}
