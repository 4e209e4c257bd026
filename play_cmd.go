package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lexivox/lexivox/playback"
)

var playCmd = &cobra.Command{
	Use:     "play URL",
	Short:   "Play a pronunciation audio asset",
	Long:    "\nPlay an audio asset by URL. Cached assets start instantly; otherwise the asset is fetched, decoded, and cached for next time.",
	Example: "lexivox play https://cdn.example.com/audio/bonjour.mp3",
	Args:    cobra.ExactArgs(1),
	RunE:    runPlay,
}

var sayCmd = &cobra.Command{
	Use:     "say WORD...",
	Short:   "Speak a word through the system synthesizer",
	Example: "lexivox say --language fr bonjour",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runSay,
}

var preloadCmd = &cobra.Command{
	Use:     "preload URL...",
	Short:   "Warm the audio cache for upcoming flashcards",
	Long:    "\nFetch and decode audio assets into the cache without playing them, so the next study session starts instantly. Pass URLs as arguments or one per line on stdin with -.",
	Example: "lexivox preload https://cdn.example.com/a.mp3 https://cdn.example.com/b.mp3\ncat deck-urls.txt | lexivox preload -",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runPreload,
}

func runPlay(_ *cobra.Command, args []string) error {
	return playRequest(playback.Request{URL: args[0]})
}

func runSay(_ *cobra.Command, args []string) error {
	return playRequest(playback.Request{Text: strings.Join(args, " ")})
}

// playRequest drives one request through the engine and blocks until the
// track finishes, fails, or the user interrupts.
func playRequest(req playback.Request) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	done := make(chan struct{})
	var once sync.Once
	e.manager.OnStateChange(func(s playback.StateType) {
		if s == playback.StateIdle || s == playback.StateError {
			once.Do(func() { close(done) })
		}
	})

	if err := e.manager.Play(ctx, req); err != nil {
		return err
	}

	select {
	case <-done:
	case <-ctx.Done():
		e.manager.Stop()
		return nil
	}

	if err := e.manager.State().LastError; err != nil {
		return err
	}
	return nil
}

func runPreload(_ *cobra.Command, args []string) error {
	urls, err := preloadURLs(args)
	if err != nil {
		return err
	}

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := e.manager.Preload(ctx, urls); err != nil {
		return err
	}

	stats := e.manager.CacheStats()
	fmt.Printf("preloaded %d assets (%s cached)\n", len(urls), formatBytes(stats.Size))
	return nil
}

// preloadURLs resolves the URL list, reading stdin when the sole
// argument is -.
func preloadURLs(args []string) ([]string, error) {
	if len(args) != 1 || args[0] != "-" {
		return args, nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}

	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no urls on stdin")
	}
	return urls, nil
}
