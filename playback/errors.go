package playback

import (
	"context"
	"errors"
	"fmt"
)

// Common errors for the playback engine.
var (
	// ErrFetchFailed indicates a transport-level failure fetching audio bytes.
	ErrFetchFailed = errors.New("audio fetch failed")
	// ErrDecodeFailed indicates malformed or unsupported audio data.
	ErrDecodeFailed = errors.New("audio decode failed")
	// ErrTierUnsupported indicates a missing platform capability for a tier.
	ErrTierUnsupported = errors.New("playback tier unsupported")
	// ErrDeadlineExceeded indicates the hard playback deadline elapsed.
	ErrDeadlineExceeded = errors.New("playback deadline exceeded")
	// ErrSynthesisFailed indicates the speech synthesis engine is
	// unavailable or rejected the utterance.
	ErrSynthesisFailed = errors.New("speech synthesis failed")

	// ErrTiersExhausted is the terminal error raised when every tier has
	// failed for a request.
	ErrTiersExhausted = errors.New("all playback tiers failed")
	// ErrNoSource is returned when a request carries neither a source URL
	// nor fallback text.
	ErrNoSource = errors.New("no audio source or fallback text")
	// ErrRateFixed is returned by backends whose playback rate is fixed
	// once the output graph is built.
	ErrRateFixed = errors.New("playback rate is fixed after start")
	// ErrNotPlaying is returned when pausing or resuming without an
	// appropriately active track.
	ErrNotPlaying = errors.New("no track is playing")
	// ErrNotPaused is returned when resuming a track that is not paused.
	ErrNotPaused = errors.New("track is not paused")
)

// Kind classifies a playback failure for the retry coordinator. Transient
// failures are worth retrying on the same tier; permanent failures trigger
// immediate fallthrough to the next tier.
type Kind int

const (
	// KindTransient marks failures expected to be retry-worthy, such as a
	// network blip or an elapsed deadline.
	KindTransient Kind = iota
	// KindPermanent marks failures retrying the same tier cannot fix,
	// such as an unsupported format or a missing capability.
	KindPermanent
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error is a playback failure tagged with the tier that produced it and a
// retry classification, so the retry coordinator can dispatch on kind
// instead of inspecting error text.
type Error struct {
	Tier Tier
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s tier: %v", e.Tier, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure on tier.
func Transient(tier Tier, err error) *Error {
	return &Error{Tier: tier, Kind: KindTransient, Err: err}
}

// Permanent wraps err as a non-retryable failure on tier.
func Permanent(tier Tier, err error) *Error {
	return &Error{Tier: tier, Kind: KindPermanent, Err: err}
}

// KindOf classifies an arbitrary error. Tagged errors carry their own
// classification; sentinels and context errors are mapped to the taxonomy.
// Unknown errors default to transient, matching the engine's bias that most
// failures are worth one more try; a canceled attempt is permanent because
// it has been superseded and must not retry.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}

	switch {
	case errors.Is(err, ErrDecodeFailed),
		errors.Is(err, ErrTierUnsupported),
		errors.Is(err, ErrSynthesisFailed),
		errors.Is(err, context.Canceled):
		return KindPermanent
	case errors.Is(err, ErrFetchFailed),
		errors.Is(err, ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	}

	return KindTransient
}
