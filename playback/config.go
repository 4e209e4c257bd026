package playback

import (
	"fmt"
	"strings"
	"time"
)

// Config contains all playback engine configuration options.
type Config struct {
	// Global playback settings
	Volume float64 `yaml:"volume" env:"LEXIVOX_VOLUME" envDefault:"1.0"`
	Rate   float64 `yaml:"rate" env:"LEXIVOX_RATE" envDefault:"1.0"`

	// Audio output settings
	SampleRate int           `yaml:"sample_rate" env:"LEXIVOX_SAMPLE_RATE" envDefault:"44100"`
	FadeIn     time.Duration `yaml:"fade_in" env:"LEXIVOX_FADE_IN" envDefault:"20ms"`
	FadeOut    time.Duration `yaml:"fade_out" env:"LEXIVOX_FADE_OUT" envDefault:"50ms"`

	// Request handling settings
	PlayTimeout   time.Duration `yaml:"play_timeout" env:"LEXIVOX_PLAY_TIMEOUT" envDefault:"10s"`
	MaxRetries    int           `yaml:"max_retries" env:"LEXIVOX_MAX_RETRIES" envDefault:"3"`
	RetryDelay    time.Duration `yaml:"retry_delay" env:"LEXIVOX_RETRY_DELAY" envDefault:"1s"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout" env:"LEXIVOX_FETCH_TIMEOUT" envDefault:"8s"`
	FetchRPS      float64       `yaml:"fetch_rps" env:"LEXIVOX_FETCH_RPS" envDefault:"4"`
	DisabledTiers []string      `yaml:"disabled_tiers" env:"LEXIVOX_DISABLED_TIERS" envSeparator:","`

	// Sub-system configurations
	Cache CacheConfig `yaml:"cache"`
	Synth SynthConfig `yaml:"synth"`
}

// CacheConfig contains decoded-audio cache settings.
type CacheConfig struct {
	MemoryBytes int64         `yaml:"memory_bytes" env:"LEXIVOX_CACHE_MEMORY_BYTES" envDefault:"52428800"`
	DiskBytes   int64         `yaml:"disk_bytes" env:"LEXIVOX_CACHE_DISK_BYTES" envDefault:"209715200"`
	DiskDir     string        `yaml:"disk_dir" env:"LEXIVOX_CACHE_DIR"`
	MaxAge      time.Duration `yaml:"max_age" env:"LEXIVOX_CACHE_MAX_AGE" envDefault:"720h"`
}

// SynthConfig contains speech-synthesis fallback settings.
type SynthConfig struct {
	Binary   string        `yaml:"binary" env:"LEXIVOX_SYNTH_BINARY"`
	Voice    string        `yaml:"voice" env:"LEXIVOX_SYNTH_VOICE"`
	Language string        `yaml:"language" env:"LEXIVOX_SYNTH_LANGUAGE" envDefault:"en-US"`
	Timeout  time.Duration `yaml:"timeout" env:"LEXIVOX_SYNTH_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Volume: 1.0,
		Rate:   1.0,

		SampleRate: 44100,
		FadeIn:     20 * time.Millisecond,
		FadeOut:    50 * time.Millisecond,

		PlayTimeout:  10 * time.Second,
		MaxRetries:   3,
		RetryDelay:   time.Second,
		FetchTimeout: 8 * time.Second,
		FetchRPS:     4,

		Cache: DefaultCacheConfig(),
		Synth: DefaultSynthConfig(),
	}
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MemoryBytes: 50 << 20,
		DiskBytes:   200 << 20,
		MaxAge:      30 * 24 * time.Hour,
	}
}

// DefaultSynthConfig returns default synthesis configuration.
func DefaultSynthConfig() SynthConfig {
	return SynthConfig{
		Language: "en-US",
		Timeout:  30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Volume < 0.0 || c.Volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", c.Volume)
	}

	if c.Rate < 0.25 || c.Rate > 4.0 {
		return fmt.Errorf("rate must be between 0.25 and 4.0, got %f", c.Rate)
	}

	validSampleRates := []int{8000, 16000, 22050, 24000, 44100, 48000}
	sampleRateValid := false
	for _, sr := range validSampleRates {
		if c.SampleRate == sr {
			sampleRateValid = true
			break
		}
	}
	if !sampleRateValid {
		return fmt.Errorf("invalid sample rate %d: must be one of %v", c.SampleRate, validSampleRates)
	}

	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("max retries must be between 1 and 10, got %d", c.MaxRetries)
	}

	if c.PlayTimeout < time.Second {
		return fmt.Errorf("play timeout must be at least 1 second, got %v", c.PlayTimeout)
	}

	for _, name := range c.DisabledTiers {
		if _, err := ParseTier(name); err != nil {
			return err
		}
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Synth.Validate(); err != nil {
		return fmt.Errorf("synth config: %w", err)
	}

	return nil
}

// Validate checks if the cache configuration is valid.
func (c *CacheConfig) Validate() error {
	if c.MemoryBytes < 1<<20 {
		return fmt.Errorf("memory cache must be at least 1 MiB, got %d bytes", c.MemoryBytes)
	}

	if c.DiskBytes != 0 && c.DiskBytes < 1<<20 {
		return fmt.Errorf("disk cache must be 0 (disabled) or at least 1 MiB, got %d bytes", c.DiskBytes)
	}

	return nil
}

// Validate checks if the synthesis configuration is valid.
func (c *SynthConfig) Validate() error {
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}

	return nil
}

// ParseTier resolves a tier name as used in configuration.
func ParseTier(name string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "buffered":
		return TierBuffered, nil
	case "streaming":
		return TierStreaming, nil
	case "synthesis":
		return TierSynthesis, nil
	default:
		return 0, fmt.Errorf("invalid tier %q: must be one of [buffered streaming synthesis]", name)
	}
}

// TierDisabled reports whether a tier is disabled by configuration.
func (c *Config) TierDisabled(tier Tier) bool {
	for _, name := range c.DisabledTiers {
		if t, err := ParseTier(name); err == nil && t == tier {
			return true
		}
	}
	return false
}
