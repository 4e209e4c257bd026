package playback

import (
	"fmt"
	"sort"
)

// Selector orders the registered backends and decides which ones are
// eligible for a given request. Tiers are tried richest first; a tier is
// skipped when its backend is unavailable, disabled by configuration, or
// the request cannot feed it (no URL for the audio tiers, no text for
// synthesis).
type Selector struct {
	backends []Backend
	disabled map[Tier]bool
}

// NewSelector creates a selector over the given backends. Backends are
// sorted by tier so registration order does not matter.
func NewSelector(backends []Backend, cfg *Config) *Selector {
	sorted := make([]Backend, len(backends))
	copy(sorted, backends)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Tier() < sorted[j].Tier()
	})

	disabled := make(map[Tier]bool)
	if cfg != nil {
		for _, t := range []Tier{TierBuffered, TierStreaming, TierSynthesis} {
			if cfg.TierDisabled(t) {
				disabled[t] = true
			}
		}
	}

	return &Selector{backends: sorted, disabled: disabled}
}

// Select returns the backends eligible for the request, in fallback order.
// It returns ErrNoSource when the request can feed none of them.
func (s *Selector) Select(req Request) ([]Backend, error) {
	if req.URL == "" && req.Text == "" {
		return nil, ErrNoSource
	}

	var eligible []Backend
	for _, b := range s.backends {
		if s.disabled[b.Tier()] {
			continue
		}
		if !s.feeds(b.Tier(), req) {
			continue
		}
		if !b.Available() {
			continue
		}
		eligible = append(eligible, b)
	}

	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: no eligible tier for request", ErrTiersExhausted)
	}

	return eligible, nil
}

// feeds reports whether the request carries the input a tier consumes.
func (s *Selector) feeds(tier Tier, req Request) bool {
	switch tier {
	case TierBuffered, TierStreaming:
		return req.URL != ""
	case TierSynthesis:
		return req.Text != ""
	default:
		return false
	}
}

// Backend returns the registered backend for a tier, or nil.
func (s *Selector) Backend(tier Tier) Backend {
	for _, b := range s.backends {
		if b.Tier() == tier {
			return b
		}
	}
	return nil
}
