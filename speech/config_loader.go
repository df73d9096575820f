package speech

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// LoadConfig builds the configuration from the environment and then lets
// any speech.* keys from the config file or bound flags override it.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return cfg, fmt.Errorf("%w: parsing environment: %w", ErrInvalidConfig, err)
	}

	overlayViper(&cfg)

	if cfg.Cache.Dir != "" {
		dir, err := homedir.Expand(cfg.Cache.Dir)
		if err != nil {
			return cfg, fmt.Errorf("%w: cache dir: %w", ErrInvalidConfig, err)
		}
		cfg.Cache.Dir = dir
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid speech configuration: %w", err)
	}

	return cfg, nil
}

func overlayViper(cfg *Config) {
	if viper.IsSet("speech.avatar") {
		cfg.Avatar = viper.GetString("speech.avatar")
	}
	if viper.IsSet("speech.engine") {
		cfg.Engine = viper.GetString("speech.engine")
	}
	if viper.IsSet("speech.sample_rate") {
		cfg.SampleRate = viper.GetInt("speech.sample_rate")
	}
	if viper.IsSet("speech.volume") {
		cfg.Volume = viper.GetFloat64("speech.volume")
	}

	// Tunables
	if viper.IsSet("speech.buffer_threshold") {
		cfg.BufferThreshold = viper.GetInt("speech.buffer_threshold")
	}
	if viper.IsSet("speech.queue_check_delay") {
		cfg.QueueCheckDelay = viper.GetDuration("speech.queue_check_delay")
	}
	if viper.IsSet("speech.short_max") {
		cfg.ShortMax = viper.GetInt("speech.short_max")
	}
	if viper.IsSet("speech.long_min") {
		cfg.LongMin = viper.GetInt("speech.long_min")
	}
	if viper.IsSet("speech.lookahead") {
		cfg.Lookahead = viper.GetInt("speech.lookahead")
	}

	// Cache
	if viper.IsSet("speech.cache.enabled") {
		cfg.Cache.Enabled = viper.GetBool("speech.cache.enabled")
	}
	if viper.IsSet("speech.cache.dir") {
		cfg.Cache.Dir = viper.GetString("speech.cache.dir")
	}
	if viper.IsSet("speech.cache.memory_mb") {
		cfg.Cache.MemoryMB = viper.GetInt("speech.cache.memory_mb")
	}
	if viper.IsSet("speech.cache.disk_mb") {
		cfg.Cache.DiskMB = viper.GetInt("speech.cache.disk_mb")
	}

	// HTTP engine
	if viper.IsSet("speech.http.url") {
		cfg.HTTP.URL = viper.GetString("speech.http.url")
	}
	if viper.IsSet("speech.http.api_key") {
		cfg.HTTP.APIKey = viper.GetString("speech.http.api_key")
	}
	if viper.IsSet("speech.http.voice") {
		cfg.HTTP.Voice = viper.GetString("speech.http.voice")
	}
	if viper.IsSet("speech.http.speed") {
		cfg.HTTP.Speed = viper.GetFloat64("speech.http.speed")
	}
	if viper.IsSet("speech.http.rate") {
		cfg.HTTP.Rate = viper.GetFloat64("speech.http.rate")
	}
	if viper.IsSet("speech.http.burst") {
		cfg.HTTP.Burst = viper.GetInt("speech.http.burst")
	}
	if viper.IsSet("speech.http.timeout") {
		cfg.HTTP.Timeout = viper.GetDuration("speech.http.timeout")
	}

	// Realtime engine
	if viper.IsSet("speech.realtime.url") {
		cfg.Realtime.URL = viper.GetString("speech.realtime.url")
	}
	if viper.IsSet("speech.realtime.api_key") {
		cfg.Realtime.APIKey = viper.GetString("speech.realtime.api_key")
	}
	if viper.IsSet("speech.realtime.model") {
		cfg.Realtime.Model = viper.GetString("speech.realtime.model")
	}
	if viper.IsSet("speech.realtime.voice") {
		cfg.Realtime.Voice = viper.GetString("speech.realtime.voice")
	}

	// Mock engine
	if viper.IsSet("speech.mock.generation_delay") {
		cfg.Mock.GenerationDelay = viper.GetDuration("speech.mock.generation_delay")
	}
	if viper.IsSet("speech.mock.words_per_minute") {
		cfg.Mock.WordsPerMinute = viper.GetInt("speech.mock.words_per_minute")
	}
	if viper.IsSet("speech.mock.failure_rate") {
		cfg.Mock.FailureRate = viper.GetFloat64("speech.mock.failure_rate")
	}

	if viper.IsSet("speech.pngtuber.fallback_timeout") {
		cfg.PNGTuber.FallbackTimeout = viper.GetDuration("speech.pngtuber.fallback_timeout")
	}
}
