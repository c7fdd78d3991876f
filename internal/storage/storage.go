package storage

import (
	"context"
	"time"
)

// Namespaces mirror the two browser storage areas the extension used:
// "local" for bulky per-device data, "sync" for small replicated settings.
const (
	NamespaceLocal = "local"
	NamespaceSync  = "sync"
)

// Store is a namespaced key-value store with optional per-key expiry.
// Values are opaque JSON blobs; expiry is enforced by callers at read
// time and reclaimed in bulk via DeleteExpired.
type Store interface {
	// Get returns the stored value and its expiry (nil when the key
	// does not expire). A missing key returns (nil, nil, nil).
	Get(ctx context.Context, namespace, key string) ([]byte, *time.Time, error)

	// Set writes a value, unconditionally replacing any prior entry.
	Set(ctx context.Context, namespace, key string, value []byte, expiresAt *time.Time) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// DeleteExpired removes every entry across all namespaces whose
	// expiry has passed, returning the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Close releases any underlying resources.
	Close()
}
