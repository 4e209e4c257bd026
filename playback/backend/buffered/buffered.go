// Package buffered implements the primary playback tier: assets are
// fetched in full, decoded to PCM once, cached, and played from memory.
package buffered

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lexivox/lexivox/internal/audio"
	"github.com/lexivox/lexivox/internal/cache"
	"github.com/lexivox/lexivox/playback"
)

// Fetcher retrieves the raw bytes of an audio asset.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Engine is the buffered playback backend. Decoded audio lives in a
// byte-bounded memory cache; raw assets optionally persist in a disk
// cache so restarts skip the network.
type Engine struct {
	cfg     playback.Config
	fetcher Fetcher
	mem     *cache.MemoryCache
	disk    *cache.DiskCache
	logger  *log.Logger
}

// New creates a buffered engine. disk may be nil to run memory-only.
func New(cfg playback.Config, fetcher Fetcher, disk *cache.DiskCache) *Engine {
	return &Engine{
		cfg:     cfg,
		fetcher: fetcher,
		mem:     cache.NewMemoryCache(cfg.Cache.MemoryBytes),
		disk:    disk,
		logger:  log.Default().WithPrefix("buffered"),
	}
}

// Tier implements playback.Backend.
func (e *Engine) Tier() playback.Tier {
	return playback.TierBuffered
}

// Available implements playback.Backend. The audio device is probed on
// first Start rather than here; a device failure surfaces as a permanent
// tier error and the selector falls through.
func (e *Engine) Available() bool {
	return e.fetcher != nil
}

// Start implements playback.Backend.
func (e *Engine) Start(ctx context.Context, req playback.Request) (playback.Handle, error) {
	buf, err := e.Load(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	octx, err := audio.Device(e.cfg.SampleRate)
	if err != nil {
		return nil, playback.Permanent(playback.TierBuffered,
			fmt.Errorf("%w: %w", playback.ErrTierUnsupported, err))
	}

	h, err := newHandle(octx, buf, req)
	if err != nil {
		return nil, playback.Permanent(playback.TierBuffered, err)
	}
	h.start()
	return h, nil
}

// Load fetches, decodes, and caches an asset. It implements
// playback.Loader so preloading shares the playback pipeline. The lookup
// order is memory, disk, network.
func (e *Engine) Load(ctx context.Context, url string) (*playback.Buffer, error) {
	if v, ok := e.mem.Get(url); ok {
		return v.(*playback.Buffer), nil
	}

	raw, fromDisk := e.loadDisk(url)
	if raw == nil {
		var err error
		raw, err = e.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, playback.Transient(playback.TierBuffered,
				fmt.Errorf("%w: %w", playback.ErrFetchFailed, err))
		}
	}

	buf, err := decode(raw, e.cfg.SampleRate)
	if err != nil {
		return nil, playback.Permanent(playback.TierBuffered,
			fmt.Errorf("%w: %w", playback.ErrDecodeFailed, err))
	}

	e.mem.Put(url, buf, buf.SizeBytes())
	if e.disk != nil && !fromDisk {
		if err := e.disk.Put(url, raw); err != nil {
			e.logger.Warn("disk cache write failed", "url", url, "err", err)
		}
	}

	e.logger.Debug("asset decoded", "url", url,
		"bytes", buf.SizeBytes(), "duration", buf.Duration)
	return buf, nil
}

// Stats reports the decoded-audio memory cache statistics.
func (e *Engine) Stats() cache.Stats {
	return e.mem.Stats()
}

// DiskStats reports the encoded-asset disk cache statistics. The zero
// Stats is returned when the disk layer is disabled.
func (e *Engine) DiskStats() cache.Stats {
	if e.disk == nil {
		return cache.Stats{}
	}
	return e.disk.Stats()
}

// Evict removes an asset from both cache layers.
func (e *Engine) Evict(url string) {
	e.mem.Remove(url)
	if e.disk != nil {
		e.disk.Remove(url)
	}
}

// Clear empties both cache layers.
func (e *Engine) Clear() error {
	e.mem.Clear()
	if e.disk != nil {
		return e.disk.Clear()
	}
	return nil
}

// Close flushes the disk cache index.
func (e *Engine) Close() error {
	if e.disk != nil {
		return e.disk.Close()
	}
	return nil
}

func (e *Engine) loadDisk(url string) ([]byte, bool) {
	if e.disk == nil {
		return nil, false
	}
	raw, ok := e.disk.Get(url)
	if !ok {
		return nil, false
	}
	return raw, true
}
