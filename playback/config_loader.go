package playback

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// LoadConfigFromViper loads playback configuration from Viper, with
// environment variables applied on top of the config file.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	if viper.IsSet("playback.volume") {
		cfg.Volume = viper.GetFloat64("playback.volume")
	}
	if viper.IsSet("playback.rate") {
		cfg.Rate = viper.GetFloat64("playback.rate")
	}
	if viper.IsSet("playback.sample_rate") {
		cfg.SampleRate = viper.GetInt("playback.sample_rate")
	}
	if viper.IsSet("playback.fade_in") {
		if d, err := time.ParseDuration(viper.GetString("playback.fade_in")); err == nil {
			cfg.FadeIn = d
		}
	}
	if viper.IsSet("playback.fade_out") {
		if d, err := time.ParseDuration(viper.GetString("playback.fade_out")); err == nil {
			cfg.FadeOut = d
		}
	}
	if viper.IsSet("playback.play_timeout") {
		if d, err := time.ParseDuration(viper.GetString("playback.play_timeout")); err == nil {
			cfg.PlayTimeout = d
		}
	}
	if viper.IsSet("playback.max_retries") {
		cfg.MaxRetries = viper.GetInt("playback.max_retries")
	}
	if viper.IsSet("playback.retry_delay") {
		if d, err := time.ParseDuration(viper.GetString("playback.retry_delay")); err == nil {
			cfg.RetryDelay = d
		}
	}
	if viper.IsSet("playback.fetch_timeout") {
		if d, err := time.ParseDuration(viper.GetString("playback.fetch_timeout")); err == nil {
			cfg.FetchTimeout = d
		}
	}
	if viper.IsSet("playback.fetch_rps") {
		cfg.FetchRPS = viper.GetFloat64("playback.fetch_rps")
	}
	if viper.IsSet("playback.disabled_tiers") {
		cfg.DisabledTiers = viper.GetStringSlice("playback.disabled_tiers")
	}

	cfg.Cache = loadCacheConfig()
	cfg.Synth = loadSynthConfig()

	// Environment variables win over the config file.
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid playback configuration: %w", err)
	}

	return cfg, nil
}

// loadCacheConfig loads cache-specific configuration from Viper.
func loadCacheConfig() CacheConfig {
	cfg := DefaultCacheConfig()

	if viper.IsSet("playback.cache.memory_bytes") {
		cfg.MemoryBytes = viper.GetInt64("playback.cache.memory_bytes")
	}
	if viper.IsSet("playback.cache.disk_bytes") {
		cfg.DiskBytes = viper.GetInt64("playback.cache.disk_bytes")
	}
	if viper.IsSet("playback.cache.disk_dir") {
		cfg.DiskDir = viper.GetString("playback.cache.disk_dir")
	}
	if viper.IsSet("playback.cache.max_age") {
		if d, err := time.ParseDuration(viper.GetString("playback.cache.max_age")); err == nil {
			cfg.MaxAge = d
		}
	}

	return cfg
}

// loadSynthConfig loads synthesis-specific configuration from Viper.
func loadSynthConfig() SynthConfig {
	cfg := DefaultSynthConfig()

	if viper.IsSet("playback.synth.binary") {
		cfg.Binary = viper.GetString("playback.synth.binary")
	}
	if viper.IsSet("playback.synth.voice") {
		cfg.Voice = viper.GetString("playback.synth.voice")
	}
	if viper.IsSet("playback.synth.language") {
		cfg.Language = viper.GetString("playback.synth.language")
	}
	if viper.IsSet("playback.synth.timeout") {
		if d, err := time.ParseDuration(viper.GetString("playback.synth.timeout")); err == nil {
			cfg.Timeout = d
		}
	}

	return cfg
}

// SetDefaults sets default values in Viper for playback configuration.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("playback.volume", defaults.Volume)
	viper.SetDefault("playback.rate", defaults.Rate)
	viper.SetDefault("playback.sample_rate", defaults.SampleRate)
	viper.SetDefault("playback.fade_in", defaults.FadeIn.String())
	viper.SetDefault("playback.fade_out", defaults.FadeOut.String())
	viper.SetDefault("playback.play_timeout", defaults.PlayTimeout.String())
	viper.SetDefault("playback.max_retries", defaults.MaxRetries)
	viper.SetDefault("playback.retry_delay", defaults.RetryDelay.String())
	viper.SetDefault("playback.fetch_timeout", defaults.FetchTimeout.String())
	viper.SetDefault("playback.fetch_rps", defaults.FetchRPS)

	viper.SetDefault("playback.cache.memory_bytes", defaults.Cache.MemoryBytes)
	viper.SetDefault("playback.cache.disk_bytes", defaults.Cache.DiskBytes)
	viper.SetDefault("playback.cache.max_age", defaults.Cache.MaxAge.String())

	viper.SetDefault("playback.synth.language", defaults.Synth.Language)
	viper.SetDefault("playback.synth.timeout", defaults.Synth.Timeout.String())
}
