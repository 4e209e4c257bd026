// Package audio owns the process-wide audio output device. oto permits a
// single context per process and offers no way to close it, so every
// playback tier shares the context opened here.
package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Channels is the fixed output channel count. Decoded audio is always
// stereo interleaved.
const Channels = 2

var (
	mu        sync.Mutex
	ctx       *oto.Context
	ctxRate   int
	ctxErr    error
	ctxOpened bool
)

// Device returns the shared audio context, opening the device on first
// call. The sample rate is fixed by whoever opens it first; later calls
// asking for a different rate get an error.
func Device(sampleRate int) (*oto.Context, error) {
	mu.Lock()
	defer mu.Unlock()

	if ctxOpened {
		if ctxErr == nil && sampleRate != ctxRate {
			return nil, fmt.Errorf("audio device already open at %d Hz, requested %d Hz", ctxRate, sampleRate)
		}
		return ctx, ctxErr
	}
	ctxOpened = true
	ctxRate = sampleRate

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	c, ready, err := oto.NewContext(op)
	if err != nil {
		ctxErr = fmt.Errorf("open audio device: %w", err)
		return nil, ctxErr
	}
	<-ready
	ctx = c
	return ctx, nil
}

// SampleToInt16 converts a normalized float sample to a 16-bit value,
// clamping out-of-range input instead of letting it wrap.
func SampleToInt16(v float64) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}
