// Package stream implements the progressive playback tier: audio plays
// while it downloads, trading caching and precise duration for lower
// startup latency when the buffered tier cannot serve.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep/v2"

	"github.com/lexivox/lexivox/internal/audio"
	"github.com/lexivox/lexivox/playback"
)

const (
	sniffBytes      = 16
	resampleQuality = 4
)

// Opener opens a streaming body for an audio asset URL.
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Engine is the streaming playback backend.
type Engine struct {
	cfg    playback.Config
	opener Opener
	logger *log.Logger
}

// New creates a streaming engine.
func New(cfg playback.Config, opener Opener) *Engine {
	return &Engine{
		cfg:    cfg,
		opener: opener,
		logger: log.Default().WithPrefix("stream"),
	}
}

// Tier implements playback.Backend.
func (e *Engine) Tier() playback.Tier {
	return playback.TierStreaming
}

// Available implements playback.Backend.
func (e *Engine) Available() bool {
	return e.opener != nil
}

// Start implements playback.Backend. The decoder begins pulling from the
// network body as soon as the device accepts samples.
func (e *Engine) Start(ctx context.Context, req playback.Request) (playback.Handle, error) {
	body, err := e.opener.Open(ctx, req.URL)
	if err != nil {
		return nil, playback.Transient(playback.TierStreaming,
			fmt.Errorf("%w: %w", playback.ErrFetchFailed, err))
	}

	br := bufio.NewReader(body)
	head, err := br.Peek(sniffBytes)
	if err != nil && len(head) == 0 {
		body.Close()
		return nil, playback.Transient(playback.TierStreaming,
			fmt.Errorf("%w: %w", playback.ErrFetchFailed, err))
	}

	source := &bufferedBody{r: br, c: body}
	streamer, format, err := audio.DecodeContainer(audio.SniffContainer(head), source)
	if err != nil {
		body.Close()
		return nil, playback.Permanent(playback.TierStreaming,
			fmt.Errorf("%w: %w", playback.ErrDecodeFailed, err))
	}

	octx, err := audio.Device(e.cfg.SampleRate)
	if err != nil {
		streamer.Close()
		body.Close()
		return nil, playback.Permanent(playback.TierStreaming,
			fmt.Errorf("%w: %w", playback.ErrTierUnsupported, err))
	}

	resampler := beep.Resample(resampleQuality, format.SampleRate,
		beep.SampleRate(e.cfg.SampleRate), streamer)

	e.logger.Debug("stream opened", "url", req.URL, "source_rate", int(format.SampleRate))

	h := newHandle(octx, resampler, streamer, body, req,
		float64(format.SampleRate)/float64(e.cfg.SampleRate))
	h.start()
	return h, nil
}

// bufferedBody reads through the sniff buffer and closes the underlying
// network body.
type bufferedBody struct {
	r *bufio.Reader
	c io.Closer
}

func (b *bufferedBody) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

func (b *bufferedBody) Close() error {
	return b.c.Close()
}
