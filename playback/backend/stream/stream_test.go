package stream

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/lexivox/lexivox/playback"
)

// fixedStreamer emits a fixed number of full-scale frames.
type fixedStreamer struct {
	frames int
	pos    int
}

func (s *fixedStreamer) Stream(samples [][2]float64) (int, bool) {
	n := 0
	for n < len(samples) && s.pos < s.frames {
		samples[n] = [2]float64{0.5, -0.5}
		s.pos++
		n++
	}
	return n, n > 0
}

func (s *fixedStreamer) Err() error { return nil }

// TestPCMReaderConversion tests sample-to-byte conversion and EOF.
func TestPCMReaderConversion(t *testing.T) {
	r := &pcmReader{src: &fixedStreamer{frames: 3}}

	buf := make([]byte, 2*frameSize)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if n != 2*frameSize {
		t.Fatalf("Read() = %d bytes, want %d", n, 2*frameSize)
	}

	// 0.5 * 32767 = 16383 little endian.
	l := int16(buf[0]) | int16(buf[1])<<8
	rv := int16(buf[2]) | int16(buf[3])<<8
	if l != 16383 || rv != -16383 {
		t.Errorf("first frame = (%d, %d), want (16383, -16383)", l, rv)
	}

	// Last frame plus stream end.
	n, err = r.Read(buf)
	if n != frameSize {
		t.Errorf("Read() = %d bytes, want %d", n, frameSize)
	}
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if _, err = r.Read(buf); err != io.EOF {
		t.Errorf("Read() after end = %v, want io.EOF", err)
	}
}

// TestPCMReaderShortBuffer tests that undersized reads make no progress
// instead of corrupting frame alignment.
func TestPCMReaderShortBuffer(t *testing.T) {
	r := &pcmReader{src: &fixedStreamer{frames: 1}}

	n, err := r.Read(make([]byte, frameSize-1))
	if n != 0 || err != nil {
		t.Errorf("Read(short) = (%d, %v), want (0, nil)", n, err)
	}
}

// failingOpener scripts Open failures.
type failingOpener struct {
	err error
}

func (o *failingOpener) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	return nil, o.err
}

// TestStartOpenFailureTransient tests classification of connect errors.
func TestStartOpenFailureTransient(t *testing.T) {
	e := New(playback.DefaultConfig(), &failingOpener{err: errors.New("connection refused")})

	_, err := e.Start(context.Background(), playback.Request{URL: "https://cdn.example.com/a.mp3"})
	if !errors.Is(err, playback.ErrFetchFailed) {
		t.Fatalf("Start() = %v, want ErrFetchFailed", err)
	}
	if playback.KindOf(err) != playback.KindTransient {
		t.Error("open failure should classify as transient")
	}
}

// TestEngineIdentity tests tier and availability reporting.
func TestEngineIdentity(t *testing.T) {
	e := New(playback.DefaultConfig(), &failingOpener{})
	if e.Tier() != playback.TierStreaming {
		t.Errorf("Tier() = %v, want streaming", e.Tier())
	}
	if !e.Available() {
		t.Error("engine with an opener should be available")
	}

	none := New(playback.DefaultConfig(), nil)
	if none.Available() {
		t.Error("engine without an opener should be unavailable")
	}
}
