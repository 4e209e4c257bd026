package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"

	"github.com/lexivox/lexivox/internal/cache"
	"github.com/lexivox/lexivox/internal/fetch"
	"github.com/lexivox/lexivox/playback"
	"github.com/lexivox/lexivox/playback/backend/buffered"
	"github.com/lexivox/lexivox/playback/backend/stream"
	"github.com/lexivox/lexivox/playback/backend/synth"
)

// zstd level for on-disk audio. Encoded audio barely compresses, so a
// fast level is enough.
const diskCompressionLevel = 1

// engine bundles the playback manager with the pieces the CLI needs to
// tear it down or inspect it.
type engine struct {
	cfg     playback.Config
	manager *playback.Manager
	store   *buffered.Engine
}

// newEngine assembles the tiered playback pipeline from configuration:
// one HTTP client feeds both the buffered and streaming tiers, the
// buffered tier owns the caches, and synthesis is the last resort.
func newEngine() (*engine, error) {
	cfg, err := playback.LoadConfigFromViper()
	if err != nil {
		return nil, err
	}

	client := fetch.NewClient(cfg.FetchTimeout, cfg.FetchRPS)

	var disk *cache.DiskCache
	if cfg.Cache.DiskBytes > 0 {
		dir, err := diskCacheDir(cfg.Cache.DiskDir)
		if err != nil {
			return nil, err
		}
		disk, err = cache.NewDiskCache(dir, cfg.Cache.DiskBytes, diskCompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("open disk cache: %w", err)
		}
		if n := disk.Prune(cfg.Cache.MaxAge); n > 0 {
			log.Debug("pruned stale cache entries", "count", n)
		}
	}

	store := buffered.New(cfg, client, disk)

	e := &engine{
		cfg:     cfg,
		store:   store,
		manager: playback.NewManager(cfg,
			store,
			stream.New(cfg, client),
			synth.New(cfg.Synth),
		),
	}
	e.manager.SetLoader(store)
	e.manager.SetCacheStats(store.Stats)
	e.manager.SetCacheClear(store.Clear)
	return e, nil
}

func (e *engine) Close() error {
	e.manager.Stop()
	return e.store.Close()
}

// diskCacheDir resolves the on-disk cache location, defaulting to the
// user cache directory when none is configured.
func diskCacheDir(configured string) (string, error) {
	if configured != "" {
		return expandPath(configured), nil
	}

	scope := gap.NewScope(gap.User, "lexivox")
	dir, err := scope.CacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache directory: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

// expandPath expands a leading tilde to the user's home directory.
func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
