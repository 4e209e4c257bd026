package playback

import (
	"context"
	"time"
)

// Tier identifies a playback strategy, ordered from richest to most
// degraded. The selector tries tiers in ascending order.
type Tier int

const (
	// TierBuffered fetches and fully decodes audio before playing it,
	// enabling caching, fades, and precise position reporting.
	TierBuffered Tier = iota
	// TierStreaming plays audio progressively while downloading.
	TierStreaming
	// TierSynthesis speaks the fallback text through a speech
	// synthesizer when no audio asset can be played.
	TierSynthesis
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierBuffered:
		return "buffered"
	case TierStreaming:
		return "streaming"
	case TierSynthesis:
		return "synthesis"
	default:
		return "unknown"
	}
}

// Buffer holds fully decoded audio ready for playback. Data is interleaved
// 16-bit little-endian PCM.
type Buffer struct {
	Data       []byte        // Interleaved PCM16LE samples
	SampleRate int           // Sample rate in Hz
	Channels   int           // Number of audio channels
	Duration   time.Duration // Duration of the audio
}

// SizeBytes returns the cache-accounting size of the buffer.
func (b *Buffer) SizeBytes() int64 {
	return int64(len(b.Data))
}

// Request describes one pronunciation playback request.
type Request struct {
	URL      string  // Audio asset URL, empty for synthesis-only requests
	Text     string  // Fallback text for speech synthesis
	Language string  // BCP 47 language tag for synthesis voice selection
	Volume   float64 // Volume level in [0, 1]
	Rate     float64 // Playback rate multiplier in [0.25, 4]
	Pitch    float64 // Synthesis pitch multiplier, 0 means default

	// FadeIn softens the attack of buffered playback. Zero disables it.
	FadeIn time.Duration
}

// Handle controls one in-flight playback started by a backend. All methods
// are safe for concurrent use.
type Handle interface {
	// Stop halts playback, fading out over the given duration when the
	// backend supports it. Stop is idempotent.
	Stop(fadeOut time.Duration)

	// Pause temporarily halts playback.
	Pause() error

	// Resume continues playback from the paused position.
	Resume() error

	// SetVolume adjusts volume mid-playback. The value is clamped to [0, 1].
	SetVolume(volume float64)

	// SetRate adjusts the playback rate mid-playback. Backends with a
	// fixed output graph return ErrRateFixed.
	SetRate(rate float64) error

	// Position returns the current playback position.
	Position() time.Duration

	// Done is closed when playback finishes, whether naturally or by Stop.
	Done() <-chan struct{}

	// Err reports why playback ended. It is nil for natural completion
	// and after Stop, and must only be read after Done is closed.
	Err() error
}

// Backend implements one playback tier.
type Backend interface {
	// Tier identifies which tier this backend serves.
	Tier() Tier

	// Available reports whether the backend can run in this environment,
	// such as an audio device being present or a synthesizer binary
	// being installed. It must be cheap to call.
	Available() bool

	// Start begins playback for the request. It returns once audio is
	// rolling, or an error classified for the retry coordinator. The
	// context bounds setup, not the playback itself.
	Start(ctx context.Context, req Request) (Handle, error)
}

// Loader fetches and decodes an audio asset into a reusable buffer. The
// buffered backend exposes its cache-backed pipeline through this so
// preloading shares the exact playback path.
type Loader interface {
	Load(ctx context.Context, url string) (*Buffer, error)
}
