package main

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// setupLog configures the global logger. Logging is silent by default so
// command output stays clean; LEXIVOX_LOG redirects it to a file and
// LEXIVOX_DEBUG or --verbose raises the level.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)
	log.SetLevel(log.InfoLevel)
	log.SetTimeFormat(time.Kitchen)

	if os.Getenv("LEXIVOX_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}

	if path := os.Getenv("LEXIVOX_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		log.SetOutput(f)
		return f.Close, nil
	}

	return func() error { return nil }, nil
}

// applyVerbosity runs after flag parsing and routes debug logs to stderr
// when --verbose was given.
func applyVerbosity() {
	if verbose {
		log.SetLevel(log.DebugLevel)
		if os.Getenv("LEXIVOX_LOG") == "" {
			log.SetOutput(os.Stderr)
		}
	}
}
