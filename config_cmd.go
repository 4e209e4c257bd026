package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# Playback configuration
playback:
  # volume level (0.0 to 1.0)
  volume: 1.0
  # playback rate (0.25 to 4.0)
  rate: 1.0
  # output sample rate in Hz
  sample_rate: 44100
  # fades applied at track start and stop
  fade_in: "20ms"
  fade_out: "50ms"
  # overall deadline for starting a track
  play_timeout: "10s"
  # transient failure retries per tier, with linear backoff
  max_retries: 3
  retry_delay: "1s"
  # HTTP fetch tuning
  fetch_timeout: "8s"
  fetch_rps: 4
  # tiers to skip: buffered, streaming, synthesis
  disabled_tiers: []

  cache:
    # decoded-audio memory cache budget in bytes
    memory_bytes: 52428800
    # encoded-asset disk cache budget in bytes, 0 disables it
    disk_bytes: 209715200
    # disk cache location (defaults to the user cache directory)
    # disk_dir: "~/.cache/lexivox/audio"
    # stale entries are pruned on startup
    max_age: "720h"

  synth:
    # synthesizer binary (say, espeak-ng, espeak, or flite are probed
    # automatically when unset)
    # binary: "espeak-ng"
    # voice: "en-us"
    language: "en-US"
    timeout: "30s"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the lexivox config file",
	Long:    "\nEdit the lexivox config file. We'll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.",
	Example: "lexivox config\nlexivox config --config path/to/config.yml",
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Lexivox", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
