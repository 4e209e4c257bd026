package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// DiskCache is a persistent cache for raw fetched audio assets with
// optional zstd compression. It survives restarts via a gob-encoded index
// so a deck's pronunciation files only have to be downloaded once.
type DiskCache struct {
	basePath string
	capacity int64 // Maximum size in bytes
	size     int64 // Current size in bytes

	// Compression
	compressionLevel int
	encoder          *zstd.Encoder
	decoder          *zstd.Decoder

	// Index for fast lookups
	index map[string]*diskEntry

	// Synchronization
	mu sync.RWMutex

	// Metrics
	stats Stats

	enableCompression bool
}

// diskEntry represents an entry in the disk cache index.
type diskEntry struct {
	Key          string
	FilePath     string
	Size         int64 // Size on disk (compressed)
	OriginalSize int64 // Original size (uncompressed)
	StoredAt     time.Time
	LastAccess   time.Time
	Hits         int64
	Compressed   bool
}

const indexFile = "assets.index"

// NewDiskCache creates a disk cache rooted at basePath. A compressionLevel
// of zero disables compression.
func NewDiskCache(basePath string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		basePath:          basePath,
		capacity:          capacity,
		compressionLevel:  compressionLevel,
		index:             make(map[string]*diskEntry),
		enableCompression: compressionLevel > 0,
		stats: Stats{
			Capacity: capacity,
		},
	}

	if dc.enableCompression {
		var err error
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}

		dc.decoder, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
	}

	// A missing or unreadable index just means an empty cache.
	if err := dc.loadIndex(); err != nil {
		dc.index = make(map[string]*diskEntry)
	}
	dc.recalculateSize()

	return dc, nil
}

// Get retrieves raw bytes from the disk cache.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(entry.FilePath)
	if err != nil {
		// File missing or unreadable; drop the stale index entry.
		dc.dropEntry(entry)
		dc.stats.Misses++
		return nil, false
	}

	if entry.Compressed && dc.enableCompression {
		decompressed, err := dc.decoder.DecodeAll(data, nil)
		if err != nil {
			dc.dropEntry(entry)
			os.Remove(entry.FilePath)
			dc.stats.Misses++
			return nil, false
		}
		data = decompressed
	}

	entry.LastAccess = time.Now()
	entry.Hits++

	dc.stats.Hits++
	dc.stats.LastAccess = entry.LastAccess

	return data, true
}

// Put stores raw bytes under key, evicting least-recently-used entries as
// needed to respect the capacity bound.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	originalSize := int64(len(value))

	dataToWrite := value
	var compressed bool
	if dc.enableCompression && originalSize > 1024 {
		if compressedData := dc.encoder.EncodeAll(value, nil); len(compressedData) < len(value) {
			dataToWrite = compressedData
			compressed = true
		}
	}

	diskSize := int64(len(dataToWrite))
	if diskSize > dc.capacity {
		return ErrItemTooLarge
	}

	if existing, ok := dc.index[key]; ok {
		dc.dropEntry(existing)
		os.Remove(existing.FilePath)
	}

	for dc.size+diskSize > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	filePath := dc.filePathFor(key)
	if err := writeFileAtomic(filePath, dataToWrite); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{
		Key:          key,
		FilePath:     filePath,
		Size:         diskSize,
		OriginalSize: originalSize,
		StoredAt:     now,
		LastAccess:   now,
		Compressed:   compressed,
	}
	dc.size += diskSize

	dc.stats.Size = dc.size
	dc.stats.ItemCount = int64(len(dc.index))

	return nil
}

// Remove removes an entry and its backing file.
func (dc *DiskCache) Remove(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if entry, ok := dc.index[key]; ok {
		os.Remove(entry.FilePath)
		dc.dropEntry(entry)
	}
}

// Clear removes all entries and their backing files.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for _, entry := range dc.index {
		os.Remove(entry.FilePath)
	}

	dc.index = make(map[string]*diskEntry)
	dc.size = 0
	dc.stats.Size = 0
	dc.stats.ItemCount = 0

	return dc.saveIndex()
}

// Contains checks if a key exists without updating access time.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	_, ok := dc.index[key]
	return ok
}

// Size returns the current cache size in bytes (on disk).
func (dc *DiskCache) Size() int64 {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	return dc.size
}

// Stats returns cache statistics.
func (dc *DiskCache) Stats() Stats {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	stats := dc.stats
	stats.Size = dc.size
	stats.ItemCount = int64(len(dc.index))

	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}

	return stats
}

// Prune removes entries older than maxAge and returns how many were removed.
func (dc *DiskCache) Prune(maxAge time.Duration) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for _, entry := range dc.index {
		if entry.StoredAt.Before(cutoff) {
			os.Remove(entry.FilePath)
			dc.dropEntry(entry)
			pruned++
		}
	}
	return pruned
}

// Close persists the index to disk.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	return dc.saveIndex()
}

// Private helper methods

func (dc *DiskCache) filePathFor(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(dc.basePath, hex.EncodeToString(hash[:16])+".audio")
}

func (dc *DiskCache) dropEntry(entry *diskEntry) {
	delete(dc.index, entry.Key)
	dc.size -= entry.Size
	dc.stats.Size = dc.size
	dc.stats.ItemCount = int64(len(dc.index))
}

func (dc *DiskCache) evictOldest() {
	entries := make([]*diskEntry, 0, len(dc.index))
	for _, entry := range dc.index {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	if len(entries) > 0 {
		oldest := entries[0]
		os.Remove(oldest.FilePath)
		dc.dropEntry(oldest)
		dc.stats.Evictions++
		dc.stats.LastEvict = time.Now()
	}
}

func (dc *DiskCache) loadIndex() error {
	file, err := os.Open(filepath.Join(dc.basePath, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return gob.NewDecoder(file).Decode(&dc.index)
}

func (dc *DiskCache) saveIndex() error {
	indexPath := filepath.Join(dc.basePath, indexFile)

	file, err := os.Create(indexPath + ".tmp")
	if err != nil {
		return err
	}

	err = gob.NewEncoder(file).Encode(dc.index)
	closeErr := file.Close()

	if err != nil {
		os.Remove(indexPath + ".tmp")
		return err
	}
	if closeErr != nil {
		os.Remove(indexPath + ".tmp")
		return closeErr
	}

	return os.Rename(indexPath+".tmp", indexPath)
}

func (dc *DiskCache) recalculateSize() {
	dc.size = 0
	for _, entry := range dc.index {
		dc.size += entry.Size
	}
	dc.stats.Size = dc.size
	dc.stats.ItemCount = int64(len(dc.index))
}

// writeFileAtomic writes data to a temp file and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, path)
}
