package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is an in-memory LRU cache for decoded audio buffers. Values
// are opaque to the cache; callers supply the size used for eviction
// accounting. The total size never exceeds the configured capacity.
type MemoryCache struct {
	capacity int64 // Maximum size in bytes
	size     int64 // Current size in bytes

	// LRU implementation
	items    map[string]*list.Element
	eviction *list.List

	// Synchronization
	mu sync.RWMutex

	// Metrics
	stats Stats
}

// memoryEntry represents an entry in the memory cache.
type memoryEntry struct {
	key        string
	value      any
	size       int64
	storedAt   time.Time
	lastAccess time.Time
	hits       int64
}

// NewMemoryCache creates a new memory cache with the specified capacity in bytes.
func NewMemoryCache(capacity int64) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		stats: Stats{
			Capacity: capacity,
		},
	}
}

// Get retrieves a value from the cache. A hit moves the entry to the front
// of the LRU order and updates its access time and hit counter.
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	entry := elem.Value.(*memoryEntry)
	entry.hits++
	entry.lastAccess = time.Now()

	c.stats.Hits++
	c.stats.LastAccess = entry.lastAccess
	return entry.value, true
}

// GetWithMetadata retrieves a value along with its bookkeeping metadata.
func (c *MemoryCache) GetWithMetadata(key string) (any, Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, Metadata{}, false
	}

	c.eviction.MoveToFront(elem)
	entry := elem.Value.(*memoryEntry)
	entry.hits++
	entry.lastAccess = time.Now()

	c.stats.Hits++
	c.stats.LastAccess = entry.lastAccess

	return entry.value, Metadata{
		Key:        entry.key,
		Size:       entry.size,
		StoredAt:   entry.storedAt,
		LastAccess: entry.lastAccess,
		Hits:       entry.hits,
	}, true
}

// Put inserts or replaces an entry, evicting least-recently-used entries
// until the insertion fits. A value larger than the whole cache cannot be
// stored; the put is silently dropped and the cache is left unchanged.
func (c *MemoryCache) Put(key string, value any, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*memoryEntry)

		c.size += size - entry.size

		entry.value = value
		entry.size = size
		entry.storedAt = time.Now()

		// Replacement may have grown the entry past the bound.
		for c.size > c.capacity && c.eviction.Len() > 1 {
			c.evictOldest()
		}
		if c.size > c.capacity {
			c.removeElement(elem)
		}

		c.stats.Size = c.size
		return
	}

	// Best effort: a single oversize entry can never fit.
	if size > c.capacity {
		return
	}

	for c.size+size > c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}

	entry := &memoryEntry{
		key:      key,
		value:    value,
		size:     size,
		storedAt: time.Now(),
	}

	elem := c.eviction.PushFront(entry)
	c.items[key] = elem
	c.size += size

	c.stats.Size = c.size
}

// Remove removes an entry from the cache.
func (c *MemoryCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes all entries from the cache. Lifetime hit/miss counters are
// preserved.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.size = 0
	c.stats.Size = 0
}

// Size returns the current cache size in bytes.
func (c *MemoryCache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.size
}

// Len returns the number of entries in the cache.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Contains checks if a key exists without updating the LRU order.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.items[key]
	return ok
}

// Keys returns all keys in the cache.
func (c *MemoryCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	return keys
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.Size = c.size
	stats.ItemCount = int64(len(c.items))

	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}

	return stats
}

// evictOldest removes the least recently used item (lock must be held).
func (c *MemoryCache) evictOldest() {
	elem := c.eviction.Back()
	if elem != nil {
		c.removeElement(elem)
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
	}
}

// removeElement removes an element from the cache (lock must be held).
func (c *MemoryCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*memoryEntry)
	delete(c.items, entry.key)
	c.size -= entry.size
	c.stats.Size = c.size
}
