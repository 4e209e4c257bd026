package cache

import (
	"errors"
	"time"
)

// Common errors for cache operations.
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheClosed is returned when operating on a closed cache.
	ErrCacheClosed = errors.New("cache is closed")
)

// Stats holds cache performance metrics.
type Stats struct {
	// Configuration
	Capacity int64 // Maximum capacity in bytes

	// Current state
	Size      int64 // Current size in bytes
	ItemCount int64 // Number of items in cache

	// Performance metrics, accumulated over the cache's lifetime
	Hits      int64   // Number of cache hits
	Misses    int64   // Number of cache misses
	Evictions int64   // Number of evictions
	HitRate   float64 // hits / (hits + misses)

	// Timing
	LastAccess time.Time // Last access time
	LastEvict  time.Time // Last eviction time
}

// Metadata describes a cached item without exposing its payload.
type Metadata struct {
	Key        string    // Cache key (source URL)
	Size       int64     // Approximate size in bytes
	StoredAt   time.Time // When the item was cached
	LastAccess time.Time // Updated on every hit
	Hits       int64     // Monotonically increasing hit counter
}
