package synth

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/lexivox/lexivox/playback"
)

// utterance is one running synthesizer subprocess, exposed as a
// playback.Handle. The process gets SIGINT on cancellation and
// killGrace to wind down before it is killed.
type utterance struct {
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	started time.Time

	mu      sync.Mutex
	stopped bool
	err     error

	done chan struct{}
}

func newUtterance(binary string, cfg playback.SynthConfig, req playback.Request) (*utterance, error) {
	// The utterance outlives the Start call, so it runs on its own
	// timeout rather than the caller's context.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)

	cmd := exec.CommandContext(ctx, binary, synthArgs(binary, cfg, req)...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = killGrace

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}

	u := &utterance{
		cmd:     cmd,
		cancel:  cancel,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	go u.wait()
	return u, nil
}

func (u *utterance) wait() {
	err := u.cmd.Wait()
	u.cancel()

	u.mu.Lock()
	if err != nil && !u.stopped {
		u.err = playback.Permanent(playback.TierSynthesis,
			fmt.Errorf("%w: %w", playback.ErrSynthesisFailed, err))
	}
	u.mu.Unlock()
	close(u.done)
}

// Stop cancels the subprocess. Synthesized speech has no fade; the
// argument exists only to satisfy the interface.
func (u *utterance) Stop(time.Duration) {
	u.mu.Lock()
	if u.stopped {
		u.mu.Unlock()
		<-u.done
		return
	}
	u.stopped = true
	u.mu.Unlock()

	u.cancel()
	<-u.done
}

// Pause is not supported for subprocess synthesis.
func (u *utterance) Pause() error {
	return fmt.Errorf("%w: synthesized speech cannot pause", playback.ErrTierUnsupported)
}

// Resume is not supported for subprocess synthesis.
func (u *utterance) Resume() error {
	return fmt.Errorf("%w: synthesized speech cannot pause", playback.ErrTierUnsupported)
}

// SetVolume is a no-op; volume is fixed when the process is spawned.
func (u *utterance) SetVolume(float64) {}

// SetRate reports that speaking rate is fixed once the utterance starts.
func (u *utterance) SetRate(float64) error {
	return playback.ErrRateFixed
}

// Position reports elapsed wall time since the utterance started.
func (u *utterance) Position() time.Duration {
	return time.Since(u.started)
}

// Done is closed when the subprocess exits.
func (u *utterance) Done() <-chan struct{} {
	return u.done
}

// Err reports why the utterance ended, nil for natural completion or a
// deliberate stop.
func (u *utterance) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}
