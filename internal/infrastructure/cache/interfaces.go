package cache

import (
	"context"
	"time"
)

// Store is the key-value persistence backend for the secure cache. The
// production implementation is Redis; an in-memory implementation exists
// for tests and store-less deployments.
type Store interface {
	// Get retrieves a value by key. Returns ErrKeyNotFound if absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value. A zero ttl means no store-level expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists all keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the backend connection.
	Close() error
}

// Key namespaces. The secure namespace holds encrypted envelopes; the
// legacy namespace holds base64-obfuscated entries written by older
// clients and is migrated on read.
const (
	SecurePrefix = "secure:"
	LegacyPrefix = "seo-tool-"
)

// DefaultTTL applies when a caller saves without an explicit TTL.
const DefaultTTL = 24 * time.Hour

// ErrKeyNotFound is returned when a key doesn't exist in the store.
type ErrKeyNotFound struct {
	Key string
}

func (e ErrKeyNotFound) Error() string {
	return "cache key not found: " + e.Key
}
