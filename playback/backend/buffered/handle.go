package buffered

import (
	"bytes"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/lexivox/lexivox/playback"
)

// fadeStep is the granularity of volume ramps.
const fadeStep = 10 * time.Millisecond

// handle drives one oto player over a decoded buffer. Playback rate is
// baked into the sample data at start, so SetRate reports ErrRateFixed.
type handle struct {
	player   *oto.Player
	duration time.Duration

	mu         sync.Mutex
	volume     float64
	paused     bool
	startTime  time.Time
	pausedAt   time.Duration
	totalPause time.Duration
	err        error
	closed     bool

	done chan struct{}
}

// newHandle prepares a player for the request. The rate adjustment is
// applied by time-stretching the PCM before it reaches the device.
func newHandle(octx *oto.Context, buf *playback.Buffer, req playback.Request) (*handle, error) {
	data := stretchPCM(buf.Data, buf.SampleRate, req.Rate)

	frames := len(data) / frameSize
	duration := time.Duration(frames) * time.Second / time.Duration(buf.SampleRate)

	h := &handle{
		player:   octx.NewPlayer(bytes.NewReader(data)),
		duration: duration,
		volume:   req.Volume,
		done:     make(chan struct{}),
	}

	if req.FadeIn > 0 {
		h.player.SetVolume(0)
		go h.ramp(0, req.Volume, req.FadeIn)
	} else {
		h.player.SetVolume(req.Volume)
	}

	return h, nil
}

// start begins playback and the completion watcher.
func (h *handle) start() {
	h.mu.Lock()
	h.startTime = time.Now()
	h.mu.Unlock()

	h.player.Play()
	go h.watch()
}

// watch polls the player until the buffer runs dry.
func (h *handle) watch() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.Lock()
		closed, paused := h.closed, h.paused
		h.mu.Unlock()

		if closed {
			return
		}
		if paused {
			continue
		}
		if !h.player.IsPlaying() {
			h.finish(nil)
			return
		}
	}
}

// Stop implements playback.Handle.
func (h *handle) Stop(fadeOut time.Duration) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	from := h.volume
	h.mu.Unlock()

	if fadeOut > 0 && h.player.IsPlaying() {
		h.rampSync(from, 0, fadeOut)
	}
	h.finish(nil)
}

// Pause implements playback.Handle.
func (h *handle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.paused {
		return playback.ErrNotPlaying
	}
	h.paused = true
	h.pausedAt = h.positionLocked()
	h.player.Pause()
	return nil
}

// Resume implements playback.Handle.
func (h *handle) Resume() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || !h.paused {
		return playback.ErrNotPaused
	}
	h.totalPause = time.Since(h.startTime) - h.pausedAt
	h.paused = false
	h.player.Play()
	return nil
}

// SetVolume implements playback.Handle.
func (h *handle) SetVolume(volume float64) {
	h.mu.Lock()
	h.volume = volume
	closed := h.closed
	h.mu.Unlock()
	if !closed {
		h.player.SetVolume(volume)
	}
}

// SetRate implements playback.Handle.
func (h *handle) SetRate(rate float64) error {
	return playback.ErrRateFixed
}

// Position implements playback.Handle.
func (h *handle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.positionLocked()
}

func (h *handle) positionLocked() time.Duration {
	if h.startTime.IsZero() {
		return 0
	}
	if h.paused {
		return h.pausedAt
	}
	pos := time.Since(h.startTime) - h.totalPause
	if pos > h.duration {
		pos = h.duration
	}
	return pos
}

// Done implements playback.Handle.
func (h *handle) Done() <-chan struct{} {
	return h.done
}

// Err implements playback.Handle.
func (h *handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *handle) finish(err error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.err = err
	h.mu.Unlock()

	h.player.Pause()
	h.player.Close()
	close(h.done)
}

// ramp steps the player volume from one level to another, aborting if the
// handle closes or the user changes the volume mid-ramp.
func (h *handle) ramp(from, to float64, over time.Duration) {
	steps := int(over / fadeStep)
	if steps < 1 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		time.Sleep(fadeStep)

		h.mu.Lock()
		closed := h.closed
		target := h.volume
		h.mu.Unlock()
		if closed || target != to {
			return
		}
		h.player.SetVolume(from + (to-from)*float64(i)/float64(steps))
	}
}

// rampSync is ramp without a goroutine, used for fade-out on Stop.
func (h *handle) rampSync(from, to float64, over time.Duration) {
	steps := int(over / fadeStep)
	if steps < 1 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		time.Sleep(fadeStep)

		h.mu.Lock()
		closed := h.closed
		h.mu.Unlock()
		if closed {
			return
		}
		h.player.SetVolume(from + (to-from)*float64(i)/float64(steps))
	}
}
