package stream

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gopxl/beep/v2"

	"github.com/lexivox/lexivox/internal/audio"
	"github.com/lexivox/lexivox/playback"
)

const (
	frameSize = audio.Channels * 2
	fadeStep  = 10 * time.Millisecond
)

// pcmReader adapts the beep pipeline into the byte reader oto consumes.
// The mutex also serializes live ratio changes against decoding.
type pcmReader struct {
	mu  sync.Mutex
	src beep.Streamer
	tmp [][2]float64
	eof bool
}

func (r *pcmReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.eof {
		return 0, io.EOF
	}

	frames := len(p) / frameSize
	if frames == 0 {
		return 0, nil
	}
	if cap(r.tmp) < frames {
		r.tmp = make([][2]float64, frames)
	}
	chunk := r.tmp[:frames]

	n, ok := r.src.Stream(chunk)
	for i := 0; i < n; i++ {
		l := audio.SampleToInt16(chunk[i][0])
		rv := audio.SampleToInt16(chunk[i][1])
		p[i*frameSize] = byte(l)
		p[i*frameSize+1] = byte(l >> 8)
		p[i*frameSize+2] = byte(rv)
		p[i*frameSize+3] = byte(rv >> 8)
	}

	if !ok {
		r.eof = true
		if n == 0 {
			return 0, io.EOF
		}
	}
	return n * frameSize, nil
}

// handle drives one oto player over a live network stream. Unlike the
// buffered tier the resampler stays in the graph, so rate changes apply
// mid-track.
type handle struct {
	player    *oto.Player
	resampler *beep.Resampler
	streamer  beep.StreamSeekCloser
	body      io.Closer
	reader    *pcmReader
	baseRatio float64

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

func newHandle(octx *oto.Context, resampler *beep.Resampler, streamer beep.StreamSeekCloser, body io.Closer, req playback.Request, baseRatio float64) *handle {
	reader := &pcmReader{src: resampler}

	h := &handle{
		player:    octx.NewPlayer(reader),
		resampler: resampler,
		streamer:  streamer,
		body:      body,
		reader:    reader,
		baseRatio: baseRatio,
		volume:    req.Volume,
		done:      make(chan struct{}),
	}

	if req.Rate != 1 {
		resampler.SetRatio(baseRatio * req.Rate)
	}

	if req.FadeIn > 0 {
		h.player.SetVolume(0)
		go h.ramp(0, req.Volume, req.FadeIn)
	} else {
		h.player.SetVolume(req.Volume)
	}

	return h
}

func (h *handle) start() {
	h.mu.Lock()
	h.startTime = time.Now()
	h.mu.Unlock()

	h.player.Play()
	go h.watch()
}

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
			var err error
			if streamErr := h.streamer.Err(); streamErr != nil {
				err = playback.Transient(playback.TierStreaming,
					fmt.Errorf("%w: %w", playback.ErrFetchFailed, streamErr))
			}
			h.finish(err)
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

// SetRate implements playback.Handle. The resampler consumes more or
// fewer source samples per output sample, so the change is audible
// immediately.
func (h *handle) SetRate(rate float64) error {
	h.reader.mu.Lock()
	h.resampler.SetRatio(h.baseRatio * rate)
	h.reader.mu.Unlock()
	return nil
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
	return time.Since(h.startTime) - h.totalPause
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
	h.streamer.Close()
	h.body.Close()
	close(h.done)
}

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
