package cache

import (
	"fmt"
	"testing"
)

func TestMemoryCachePutGet(t *testing.T) {
	c := NewMemoryCache(1024)

	c.Put("a", []byte("hello"), 5)

	value, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit for key a")
	}
	if string(value.([]byte)) != "hello" {
		t.Errorf("Get() = %q, want %q", value, "hello")
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestMemoryCacheSizeBoundInvariant(t *testing.T) {
	const capacity = 100
	c := NewMemoryCache(capacity)

	// The bound must hold after every put, whatever the sequence.
	sizes := []int64{10, 40, 40, 30, 90, 5, 100, 60}
	for i, size := range sizes {
		c.Put(fmt.Sprintf("key-%d", i), struct{}{}, size)
		if got := c.Size(); got > capacity {
			t.Fatalf("after put %d: size %d exceeds capacity %d", i, got, capacity)
		}
	}
}

func TestMemoryCacheLRUEvictionOrder(t *testing.T) {
	c := NewMemoryCache(30)

	c.Put("a", "A", 10)
	c.Put("b", "B", 10)
	c.Put("c", "C", 10)

	// Touch A so B is now the least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}

	// D requires one eviction: B must go, not A or C.
	c.Put("d", "D", 10)

	if c.Contains("b") {
		t.Error("expected b to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if !c.Contains(key) {
			t.Errorf("expected %s to survive eviction", key)
		}
	}
}

func TestMemoryCacheInsertionOrderEviction(t *testing.T) {
	c := NewMemoryCache(30)

	// A inserted (and therefore touched) first, then B, then C fill the
	// cache; inserting D evicts A.
	c.Put("a", "A", 10)
	c.Put("b", "B", 10)
	c.Put("c", "C", 10)
	c.Put("d", "D", 10)

	if c.Contains("a") {
		t.Error("expected a (least recently used) to be evicted")
	}
	if !c.Contains("b") || !c.Contains("c") || !c.Contains("d") {
		t.Error("expected b, c, d to remain")
	}
}

func TestMemoryCacheOversizePutSilentlyDropped(t *testing.T) {
	c := NewMemoryCache(100)

	c.Put("small", "x", 10)
	c.Put("huge", "y", 500)

	if c.Contains("huge") {
		t.Error("oversize entry must not be stored")
	}
	if !c.Contains("small") {
		t.Error("oversize put must not disturb existing entries")
	}
	if got := c.Size(); got != 10 {
		t.Errorf("Size() = %d, want 10", got)
	}
}

func TestMemoryCacheReplaceExisting(t *testing.T) {
	c := NewMemoryCache(100)

	c.Put("a", "old", 10)
	c.Put("a", "new", 20)

	value, ok := c.Get("a")
	if !ok {
		t.Fatal("expected hit after replacement")
	}
	if value.(string) != "new" {
		t.Errorf("Get() = %v, want new", value)
	}
	if got := c.Size(); got != 20 {
		t.Errorf("Size() = %d, want 20", got)
	}
	if got := c.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestMemoryCacheStats(t *testing.T) {
	c := NewMemoryCache(100)

	c.Put("a", "A", 10)
	c.Put("b", "B", 20)

	c.Get("a")       // hit
	c.Get("a")       // hit
	c.Get("missing") // miss

	stats := c.Stats()
	if stats.ItemCount != 2 {
		t.Errorf("ItemCount = %d, want 2", stats.ItemCount)
	}
	if stats.Size != 30 {
		t.Errorf("Size = %d, want 30", stats.Size)
	}
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("Hits/Misses = %d/%d, want 2/1", stats.Hits, stats.Misses)
	}
	want := 2.0 / 3.0
	if stats.HitRate != want {
		t.Errorf("HitRate = %f, want %f", stats.HitRate, want)
	}
}

func TestMemoryCacheHitCountMetadata(t *testing.T) {
	c := NewMemoryCache(100)
	c.Put("a", "A", 10)

	var meta Metadata
	for i := 0; i < 3; i++ {
		var ok bool
		_, meta, ok = c.GetWithMetadata("a")
		if !ok {
			t.Fatal("expected hit")
		}
	}
	if meta.Hits != 3 {
		t.Errorf("Hits = %d, want 3", meta.Hits)
	}
	if meta.LastAccess.IsZero() {
		t.Error("LastAccess should be set on hit")
	}
}

func TestMemoryCacheRemoveAndClear(t *testing.T) {
	c := NewMemoryCache(100)

	c.Put("a", "A", 10)
	c.Put("b", "B", 10)

	c.Remove("a")
	if c.Contains("a") {
		t.Error("expected a removed")
	}
	if got := c.Size(); got != 10 {
		t.Errorf("Size() = %d, want 10", got)
	}

	// Removing a missing key is a no-op.
	c.Remove("missing")

	c.Clear()
	if got := c.Len(); got != 0 {
		t.Errorf("Len() after Clear = %d, want 0", got)
	}
	if got := c.Size(); got != 0 {
		t.Errorf("Size() after Clear = %d, want 0", got)
	}

	// Lifetime counters survive Clear.
	c.Get("a")
	stats := c.Stats()
	if stats.Misses == 0 {
		t.Error("expected lifetime miss counter to keep accumulating")
	}
}

func TestMemoryCacheEvictionStats(t *testing.T) {
	c := NewMemoryCache(20)

	c.Put("a", "A", 10)
	c.Put("b", "B", 10)
	c.Put("c", "C", 10) // evicts a

	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
	if stats.LastEvict.IsZero() {
		t.Error("LastEvict should be set after eviction")
	}
}
