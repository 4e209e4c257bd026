// Package synth implements the last-resort playback tier: when no audio
// asset can be played, the word is spoken through a system speech
// synthesizer subprocess.
package synth

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lexivox/lexivox/playback"
)

// candidateBinaries are probed in order when no binary is configured.
var candidateBinaries = []string{"say", "espeak-ng", "espeak", "flite"}

// killGrace is how long a cancelled synthesizer gets to exit after
// SIGINT before it is killed.
const killGrace = 2 * time.Second

// Engine is the speech-synthesis backend. At most one utterance runs at
// a time; starting a new one cancels the previous subprocess first so
// two voices never overlap.
type Engine struct {
	cfg    playback.SynthConfig
	logger *log.Logger

	probeOnce sync.Once
	binary    string

	mu      sync.Mutex
	current *utterance
}

// New creates a synthesis engine.
func New(cfg playback.SynthConfig) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: log.Default().WithPrefix("synth"),
	}
}

// Tier implements playback.Backend.
func (e *Engine) Tier() playback.Tier {
	return playback.TierSynthesis
}

// Available implements playback.Backend. It reports whether a usable
// synthesizer binary exists on PATH.
func (e *Engine) Available() bool {
	return e.resolveBinary() != ""
}

// resolveBinary finds the synthesizer once. A configured binary wins;
// otherwise the well-known candidates are probed in order.
func (e *Engine) resolveBinary() string {
	e.probeOnce.Do(func() {
		candidates := candidateBinaries
		if e.cfg.Binary != "" {
			candidates = append([]string{e.cfg.Binary}, candidates...)
		}
		for _, name := range candidates {
			if path, err := exec.LookPath(name); err == nil {
				e.binary = path
				e.logger.Debug("synthesizer found", "binary", path)
				return
			}
		}
	})
	return e.binary
}

// Start implements playback.Backend.
func (e *Engine) Start(ctx context.Context, req playback.Request) (playback.Handle, error) {
	binary := e.resolveBinary()
	if binary == "" {
		return nil, playback.Permanent(playback.TierSynthesis,
			fmt.Errorf("%w: no speech synthesizer installed", playback.ErrTierUnsupported))
	}

	e.mu.Lock()
	if e.current != nil {
		prev := e.current
		e.current = nil
		e.mu.Unlock()
		prev.Stop(0)
		e.mu.Lock()
	}

	u, err := newUtterance(binary, e.cfg, req)
	if err != nil {
		e.mu.Unlock()
		return nil, playback.Permanent(playback.TierSynthesis,
			fmt.Errorf("%w: %w", playback.ErrSynthesisFailed, err))
	}
	e.current = u
	e.mu.Unlock()

	e.logger.Debug("speaking", "text", req.Text, "language", req.Language)
	return u, nil
}

// synthArgs maps the request onto a specific synthesizer's CLI.
func synthArgs(binary string, cfg playback.SynthConfig, req playback.Request) []string {
	base := filepathBase(binary)
	var args []string

	switch base {
	case "say":
		if cfg.Voice != "" {
			args = append(args, "-v", cfg.Voice)
		}
		if req.Rate > 0 && req.Rate != 1 {
			// say takes words per minute; scale a ~180 wpm baseline.
			args = append(args, "-r", strconv.Itoa(int(180*req.Rate)))
		}
	case "espeak", "espeak-ng":
		if req.Language != "" {
			args = append(args, "-v", req.Language)
		} else if cfg.Voice != "" {
			args = append(args, "-v", cfg.Voice)
		}
		if req.Rate > 0 && req.Rate != 1 {
			args = append(args, "-s", strconv.Itoa(int(175*req.Rate)))
		}
		if req.Pitch > 0 && req.Pitch != 1 {
			// espeak pitch is 0-99 around a baseline of 50.
			p := int(50 * req.Pitch)
			if p > 99 {
				p = 99
			}
			args = append(args, "-p", strconv.Itoa(p))
		}
		if req.Volume >= 0 && req.Volume < 1 {
			args = append(args, "-a", strconv.Itoa(int(200*req.Volume)))
		}
	case "flite":
		if cfg.Voice != "" {
			args = append(args, "-voice", cfg.Voice)
		}
		args = append(args, "-t")
	}

	return append(args, req.Text)
}

func filepathBase(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if os.IsPathSeparator(path[i]) {
			return path[i+1:]
		}
	}
	return path
}
