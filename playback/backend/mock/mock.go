// Package mock provides a scriptable playback backend for testing the
// orchestration layers without touching an audio device.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/lexivox/lexivox/playback"
)

// Backend is a scriptable playback backend. The zero value is not usable;
// create one with New.
type Backend struct {
	tier playback.Tier

	mu         sync.Mutex
	available  bool
	startDelay time.Duration
	failErr    error
	failCount  int

	startCalls int
	stopCalls  int
	handles    []*Handle
}

// New creates a mock backend serving the given tier. It starts available
// and succeeding.
func New(tier playback.Tier) *Backend {
	return &Backend{tier: tier, available: true}
}

// Tier implements playback.Backend.
func (b *Backend) Tier() playback.Tier {
	return b.tier
}

// Available implements playback.Backend.
func (b *Backend) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available
}

// SetAvailable scripts the capability probe.
func (b *Backend) SetAvailable(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.available = ok
}

// FailWith scripts every subsequent Start to fail with err. Passing nil
// restores success.
func (b *Backend) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failErr = err
	b.failCount = -1
}

// FailNTimes scripts the next n Start calls to fail with err, after which
// Start succeeds again.
func (b *Backend) FailNTimes(n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failErr = err
	b.failCount = n
}

// SetStartDelay scripts Start to block for d before returning, honoring
// context cancellation.
func (b *Backend) SetStartDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startDelay = d
}

// Start implements playback.Backend.
func (b *Backend) Start(ctx context.Context, req playback.Request) (playback.Handle, error) {
	b.mu.Lock()
	b.startCalls++
	delay := b.startDelay
	var failErr error
	if b.failErr != nil && b.failCount != 0 {
		failErr = b.failErr
		if b.failCount > 0 {
			b.failCount--
		}
	}
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if failErr != nil {
		return nil, failErr
	}

	h := &Handle{
		backend: b,
		req:     req,
		volume:  req.Volume,
		rate:    req.Rate,
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	b.handles = append(b.handles, h)
	b.mu.Unlock()
	return h, nil
}

// StartCalls returns how many times Start was invoked.
func (b *Backend) StartCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startCalls
}

// StopCalls returns how many handles were stopped.
func (b *Backend) StopCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopCalls
}

// LastHandle returns the most recently started handle, or nil.
func (b *Backend) LastHandle() *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.handles) == 0 {
		return nil
	}
	return b.handles[len(b.handles)-1]
}

// ActiveHandles returns the number of handles started and not yet
// finished or stopped.
func (b *Backend) ActiveHandles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, h := range b.handles {
		if !h.finished() {
			n++
		}
	}
	return n
}

// Handle is a mock playback handle. Playback never ends on its own; tests
// drive completion with Complete or Fail.
type Handle struct {
	backend *Backend
	req     playback.Request

	mu       sync.Mutex
	volume   float64
	rate     float64
	paused   bool
	position time.Duration
	err      error
	done     chan struct{}
	closed   bool
}

// Request returns the request this handle was started with.
func (h *Handle) Request() playback.Request {
	return h.req
}

// Complete simulates natural end of playback.
func (h *Handle) Complete() {
	h.finish(nil)
}

// Fail simulates playback dying mid-track with err.
func (h *Handle) Fail(err error) {
	h.finish(err)
}

// Stop implements playback.Handle.
func (h *Handle) Stop(fadeOut time.Duration) {
	h.backend.mu.Lock()
	h.backend.stopCalls++
	h.backend.mu.Unlock()
	h.finish(nil)
}

// Pause implements playback.Handle.
func (h *Handle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = true
	return nil
}

// Resume implements playback.Handle.
func (h *Handle) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = false
	return nil
}

// Paused reports the scripted pause state.
func (h *Handle) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// SetVolume implements playback.Handle.
func (h *Handle) SetVolume(volume float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = volume
}

// Volume returns the last volume applied to the handle.
func (h *Handle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

// SetRate implements playback.Handle.
func (h *Handle) SetRate(rate float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rate = rate
	return nil
}

// Rate returns the last rate applied to the handle.
func (h *Handle) Rate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rate
}

// SetPosition scripts the reported playback position.
func (h *Handle) SetPosition(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.position = d
}

// Position implements playback.Handle.
func (h *Handle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

// Done implements playback.Handle.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err implements playback.Handle.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.err = err
	close(h.done)
}

func (h *Handle) finished() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
