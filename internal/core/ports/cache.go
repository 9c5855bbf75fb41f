package ports

import (
	"context"
	"time"
)

// CacheOptions controls how a value is written.
type CacheOptions struct {
	// TTL of the entry; zero selects the store default. Negative is rejected.
	TTL time.Duration
	// Tags group entries for InvalidateByTags.
	Tags []string
}

// Cache is the narrow contract collaborators use. Implementations degrade to
// miss/false on backend unavailability so callers always fall back to the database;
// only caller misuse (invalid key, negative TTL) is reported as an error.
type Cache interface {
	// Get decodes the value stored at key into dest. ok=false on miss.
	Get(ctx context.Context, key string, dest any) (ok bool, err error)
	// Set stores value. ok=false when the value was not cached.
	Set(ctx context.Context, key string, value any, opts CacheOptions) (ok bool, err error)
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// InvalidateByTags makes every entry written with any of tags unreachable.
	InvalidateByTags(ctx context.Context, tags ...string) error
	// Key builds "{prefix}:{namespace}:{id}".
	Key(namespace, id string) string
	// SearchKey builds a bounded key from arbitrary query parameters.
	SearchKey(namespace string, params any) (string, error)
}

// CounterStore exposes atomic counters with expiry, used for rate limiting.
type CounterStore interface {
	// Increment adds amount to key and (re)applies ttl. Returns 0 when unavailable.
	Increment(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error)
}
