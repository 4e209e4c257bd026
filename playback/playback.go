// Package playback implements the pronunciation playback engine: a
// tiered pipeline that serves audio from a decoded-sample cache, falls
// back to progressive streaming, and finally to speech synthesis when no
// audio asset can be played.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lexivox/lexivox/internal/cache"
)

// Manager orchestrates the playback tiers. It enforces that at most one
// track is audible at a time, drives the state machine, and suppresses
// results from superseded requests via a generation counter.
type Manager struct {
	cfg      Config
	selector *Selector
	loader   Loader
	stats    func() cache.Stats
	clear    func() error
	logger   *log.Logger

	mu      sync.Mutex
	machine *StateMachine
	track   *Track
	tier    Tier
	handle  Handle
	lastErr error
	volume  float64
	rate    float64

	// gen is bumped by every Play and Stop. Async completions compare
	// their snapshot against it and drop themselves when stale.
	gen atomic.Uint64

	onStateChange func(StateType)
	onError       func(error)
}

// NewManager creates a playback manager over the given backends.
func NewManager(cfg Config, backends ...Backend) *Manager {
	return &Manager{
		cfg:      cfg,
		selector: NewSelector(backends, &cfg),
		logger:   log.Default().WithPrefix("playback"),
		machine:  NewStateMachine(),
		volume:   cfg.Volume,
		rate:     cfg.Rate,
	}
}

// SetLogger replaces the manager's logger.
func (m *Manager) SetLogger(logger *log.Logger) {
	m.logger = logger
}

// SetLoader wires the cache-backed loader used by Preload. Typically this
// is the buffered backend's load pipeline.
func (m *Manager) SetLoader(l Loader) {
	m.loader = l
}

// SetCacheStats wires the source for CacheStats.
func (m *Manager) SetCacheStats(fn func() cache.Stats) {
	m.stats = fn
}

// SetCacheClear wires the target for ClearCache.
func (m *Manager) SetCacheClear(fn func() error) {
	m.clear = fn
}

// OnStateChange registers a callback for state changes. The callback runs
// on the goroutine that caused the change and must not call back into the
// manager.
func (m *Manager) OnStateChange(fn func(StateType)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnError registers a callback for terminal playback errors.
func (m *Manager) OnError(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// Play starts playback for the request, preempting whatever was playing.
// It walks the eligible tiers in fallback order, retrying transient
// failures per tier, and returns once audio is rolling or every tier has
// failed. A Play superseded by a newer request returns nil without
// touching the engine state.
func (m *Manager) Play(ctx context.Context, req Request) error {
	gen := m.gen.Add(1)

	m.mu.Lock()
	req = m.normalizeLocked(req)
	prev := m.releaseHandleLocked()
	m.machine.Transition(StateLoading)
	track := newTrack(req)
	m.track = track
	m.lastErr = nil
	m.mu.Unlock()

	if prev != nil {
		prev.Stop(m.cfg.FadeOut)
	}
	m.notifyStateChange(StateLoading)

	ctx, cancel := context.WithTimeout(ctx, m.cfg.PlayTimeout)
	defer cancel()

	backends, err := m.selector.Select(req)
	if err != nil {
		return m.fail(gen, err)
	}

	policy := retryPolicy{maxAttempts: m.cfg.MaxRetries, delay: m.cfg.RetryDelay}

	var tierErrs []error
	for _, b := range backends {
		var handle Handle
		err := policy.run(ctx, func() error {
			h, startErr := b.Start(ctx, req)
			if startErr != nil {
				m.logger.Debug("tier attempt failed",
					"track", track.ID, "tier", b.Tier(), "err", startErr)
				return startErr
			}
			handle = h
			return nil
		})
		if err == nil {
			return m.adopt(gen, track, b.Tier(), handle)
		}

		tierErrs = append(tierErrs, err)
		if ctx.Err() != nil {
			break
		}
		m.logger.Info("falling through to next tier",
			"track", track.ID, "tier", b.Tier(), "err", err)
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return m.fail(gen, fmt.Errorf("%w after %v", ErrDeadlineExceeded, m.cfg.PlayTimeout))
	}
	if err := ctx.Err(); err != nil {
		return m.fail(gen, err)
	}

	return m.fail(gen, fmt.Errorf("%w: %w", ErrTiersExhausted, errors.Join(tierErrs...)))
}

// adopt installs a started handle as the active playback, unless a newer
// request has superseded this one, in which case the handle is stopped
// immediately and the result discarded.
func (m *Manager) adopt(gen uint64, track *Track, tier Tier, handle Handle) error {
	m.mu.Lock()
	if gen != m.gen.Load() {
		m.mu.Unlock()
		handle.Stop(0)
		return nil
	}

	track.Tier = tier
	m.tier = tier
	m.handle = handle
	m.machine.Transition(StatePlaying)
	m.mu.Unlock()

	m.logger.Debug("playback started", "track", track.ID, "tier", tier)
	m.notifyStateChange(StatePlaying)

	go m.watch(gen, handle)
	return nil
}

// watch waits for the handle to finish and transitions the engine, unless
// the handle's generation has been superseded.
func (m *Manager) watch(gen uint64, handle Handle) {
	<-handle.Done()

	m.mu.Lock()
	if gen != m.gen.Load() {
		m.mu.Unlock()
		return
	}

	err := handle.Err()
	m.handle = nil
	var next StateType
	if err != nil {
		m.lastErr = err
		next = StateError
	} else {
		m.track = nil
		next = StateIdle
	}
	m.machine.Transition(next)
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("playback ended with error", "err", err)
		m.notifyError(err)
	}
	m.notifyStateChange(next)
}

// fail records a terminal error for the request, unless it was superseded.
func (m *Manager) fail(gen uint64, err error) error {
	m.mu.Lock()
	if gen != m.gen.Load() {
		m.mu.Unlock()
		return nil
	}
	m.lastErr = err
	m.machine.Transition(StateError)
	m.mu.Unlock()

	m.logger.Error("playback failed", "err", err)
	m.notifyError(err)
	m.notifyStateChange(StateError)
	return err
}

// Stop halts playback and returns the engine to idle. Stopping an idle
// engine is a no-op.
func (m *Manager) Stop() {
	m.gen.Add(1)

	m.mu.Lock()
	prev := m.releaseHandleLocked()
	changed := m.machine.Current() != StateIdle
	m.machine.Transition(StateIdle)
	m.track = nil
	m.mu.Unlock()

	if prev != nil {
		prev.Stop(m.cfg.FadeOut)
	}
	if changed {
		m.notifyStateChange(StateIdle)
	}
}

// Pause temporarily halts the playing track.
func (m *Manager) Pause() error {
	m.mu.Lock()
	if m.machine.Current() != StatePlaying || m.handle == nil {
		m.mu.Unlock()
		return ErrNotPlaying
	}
	handle := m.handle
	m.mu.Unlock()

	if err := handle.Pause(); err != nil {
		return err
	}

	m.mu.Lock()
	m.machine.Transition(StatePaused)
	m.mu.Unlock()
	m.notifyStateChange(StatePaused)
	return nil
}

// Resume continues a paused track.
func (m *Manager) Resume() error {
	m.mu.Lock()
	if m.machine.Current() != StatePaused || m.handle == nil {
		m.mu.Unlock()
		return ErrNotPaused
	}
	handle := m.handle
	m.mu.Unlock()

	if err := handle.Resume(); err != nil {
		return err
	}

	m.mu.Lock()
	m.machine.Transition(StatePlaying)
	m.mu.Unlock()
	m.notifyStateChange(StatePlaying)
	return nil
}

// SetVolume sets the engine volume, clamped to [0, 1]. It takes effect
// immediately on the current track and on all subsequent plays.
func (m *Manager) SetVolume(volume float64) {
	volume = clamp(volume, 0, 1)

	m.mu.Lock()
	m.volume = volume
	handle := m.handle
	m.mu.Unlock()

	if handle != nil {
		handle.SetVolume(volume)
	}
}

// SetRate sets the playback rate, clamped to [0.25, 4]. Backends with a
// fixed output graph apply the new rate from the next play onward and
// return ErrRateFixed for the current track.
func (m *Manager) SetRate(rate float64) error {
	rate = clamp(rate, 0.25, 4)

	m.mu.Lock()
	m.rate = rate
	handle := m.handle
	m.mu.Unlock()

	if handle != nil {
		return handle.SetRate(rate)
	}
	return nil
}

// State returns a snapshot of the engine state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		CurrentState: m.machine.Current(),
		Track:        m.track,
		Tier:         m.tier,
		LastError:    m.lastErr,
	}
	if m.handle != nil {
		s.Position = m.handle.Position()
	}
	return s
}

// Position returns the playback position of the current track.
func (m *Manager) Position() time.Duration {
	m.mu.Lock()
	handle := m.handle
	m.mu.Unlock()

	if handle == nil {
		return 0
	}
	return handle.Position()
}

// Preload fetches and decodes assets into the cache without playing them,
// so upcoming flashcards start instantly. Failures are collected per URL
// and do not abort the rest of the batch.
func (m *Manager) Preload(ctx context.Context, urls []string) error {
	if m.loader == nil {
		return fmt.Errorf("%w: no buffered tier registered", ErrTierUnsupported)
	}

	var errs []error
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := m.loader.Load(ctx, url); err != nil {
			m.logger.Warn("preload failed", "url", url, "err", err)
			errs = append(errs, fmt.Errorf("preload %s: %w", url, err))
		}
	}
	return errors.Join(errs...)
}

// CacheStats reports decoded-audio cache statistics.
func (m *Manager) CacheStats() cache.Stats {
	if m.stats == nil {
		return cache.Stats{}
	}
	return m.stats()
}

// ClearCache empties the audio caches.
func (m *Manager) ClearCache() error {
	if m.clear == nil {
		return nil
	}
	return m.clear()
}

// normalizeLocked fills unset request fields from engine settings and
// clamps the rest. Callers hold m.mu.
func (m *Manager) normalizeLocked(req Request) Request {
	if req.Volume == 0 {
		req.Volume = m.volume
	}
	if req.Rate == 0 {
		req.Rate = m.rate
	}
	if req.FadeIn == 0 {
		req.FadeIn = m.cfg.FadeIn
	}
	if req.Language == "" {
		req.Language = m.cfg.Synth.Language
	}
	req.Volume = clamp(req.Volume, 0, 1)
	req.Rate = clamp(req.Rate, 0.25, 4)
	return req
}

// releaseHandleLocked detaches the current handle so the caller can stop
// it outside the lock. Callers hold m.mu.
func (m *Manager) releaseHandleLocked() Handle {
	h := m.handle
	m.handle = nil
	return h
}

func (m *Manager) notifyStateChange(state StateType) {
	m.mu.Lock()
	fn := m.onStateChange
	m.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

func (m *Manager) notifyError(err error) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
