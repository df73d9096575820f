package speech

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config contains all speech pipeline options.
type Config struct {
	// Renderer and engine selection
	Avatar string `yaml:"avatar" env:"SPEAKSTREAM_AVATAR" envDefault:"vrm"`
	Engine string `yaml:"engine" env:"SPEAKSTREAM_ENGINE" envDefault:"mock"`

	// Audio output
	SampleRate int     `yaml:"sample_rate" env:"SPEAKSTREAM_SAMPLE_RATE" envDefault:"24000"`
	Volume     float64 `yaml:"volume" env:"SPEAKSTREAM_VOLUME" envDefault:"1.0"`

	// Streaming and queue tunables
	BufferThreshold int           `yaml:"buffer_threshold" env:"SPEAKSTREAM_BUFFER_THRESHOLD" envDefault:"100000"`
	QueueCheckDelay time.Duration `yaml:"queue_check_delay" env:"SPEAKSTREAM_QUEUE_CHECK_DELAY" envDefault:"1500ms"`
	ShortMax        int           `yaml:"short_max" env:"SPEAKSTREAM_SHORT_MAX" envDefault:"19"`
	LongMin         int           `yaml:"long_min" env:"SPEAKSTREAM_LONG_MIN" envDefault:"20"`
	Lookahead       int           `yaml:"lookahead" env:"SPEAKSTREAM_LOOKAHEAD" envDefault:"3"`

	Cache    CacheConfig    `yaml:"cache"`
	HTTP     HTTPConfig     `yaml:"http"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Mock     MockConfig     `yaml:"mock"`
	PNGTuber PNGTuberConfig `yaml:"pngtuber"`
}

// CacheConfig controls the synthesis cache.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" env:"SPEAKSTREAM_CACHE_ENABLED" envDefault:"true"`
	Dir      string `yaml:"dir" env:"SPEAKSTREAM_CACHE_DIR"`
	MemoryMB int    `yaml:"memory_mb" env:"SPEAKSTREAM_CACHE_MEMORY_MB" envDefault:"64"`
	DiskMB   int    `yaml:"disk_mb" env:"SPEAKSTREAM_CACHE_DISK_MB" envDefault:"512"`
}

// HTTPConfig contains settings for the HTTP synthesis engine.
type HTTPConfig struct {
	URL     string        `yaml:"url" env:"SPEAKSTREAM_HTTP_URL" envDefault:"http://127.0.0.1:50021/synthesize"`
	APIKey  string        `yaml:"api_key" env:"SPEAKSTREAM_HTTP_API_KEY"`
	Voice   string        `yaml:"voice" env:"SPEAKSTREAM_HTTP_VOICE" envDefault:"default"`
	Speed   float64       `yaml:"speed" env:"SPEAKSTREAM_HTTP_SPEED" envDefault:"1.0"`
	Rate    float64       `yaml:"rate" env:"SPEAKSTREAM_HTTP_RATE" envDefault:"5"`
	Burst   int           `yaml:"burst" env:"SPEAKSTREAM_HTTP_BURST" envDefault:"3"`
	Timeout time.Duration `yaml:"timeout" env:"SPEAKSTREAM_HTTP_TIMEOUT" envDefault:"30s"`
}

// RealtimeConfig contains settings for the websocket streaming engine.
type RealtimeConfig struct {
	URL    string `yaml:"url" env:"SPEAKSTREAM_REALTIME_URL" envDefault:"wss://api.openai.com/v1/realtime"`
	APIKey string `yaml:"api_key" env:"SPEAKSTREAM_REALTIME_API_KEY"`
	Model  string `yaml:"model" env:"SPEAKSTREAM_REALTIME_MODEL" envDefault:"gpt-4o-realtime-preview"`
	Voice  string `yaml:"voice" env:"SPEAKSTREAM_REALTIME_VOICE" envDefault:"alloy"`
}

// MockConfig contains settings for the mock engine.
type MockConfig struct {
	GenerationDelay time.Duration `yaml:"generation_delay" env:"SPEAKSTREAM_MOCK_GENERATION_DELAY" envDefault:"100ms"`
	WordsPerMinute  int           `yaml:"words_per_minute" env:"SPEAKSTREAM_MOCK_WORDS_PER_MINUTE" envDefault:"150"`
	FailureRate     float64       `yaml:"failure_rate" env:"SPEAKSTREAM_MOCK_FAILURE_RATE" envDefault:"0.0"`
}

// PNGTuberConfig contains settings for the PNG puppet avatar.
type PNGTuberConfig struct {
	FallbackTimeout time.Duration `yaml:"fallback_timeout" env:"SPEAKSTREAM_PNGTUBER_FALLBACK_TIMEOUT" envDefault:"30s"`
}

// Engines lists the synthesis engines Config accepts.
var Engines = []string{"mock", "http", "realtime"}

// Avatars lists the avatar kinds Config accepts.
var Avatars = []string{"vrm", "live2d", "pngtuber"}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Avatar:          "vrm",
		Engine:          "mock",
		SampleRate:      24000,
		Volume:          1.0,
		BufferThreshold: 100_000,
		QueueCheckDelay: 1500 * time.Millisecond,
		ShortMax:        19,
		LongMin:         20,
		Lookahead:       3,
		Cache: CacheConfig{
			Enabled:  true,
			MemoryMB: 64,
			DiskMB:   512,
		},
		HTTP: HTTPConfig{
			URL:     "http://127.0.0.1:50021/synthesize",
			Voice:   "default",
			Speed:   1.0,
			Rate:    5,
			Burst:   3,
			Timeout: 30 * time.Second,
		},
		Realtime: RealtimeConfig{
			URL:   "wss://api.openai.com/v1/realtime",
			Model: "gpt-4o-realtime-preview",
			Voice: "alloy",
		},
		Mock: MockConfig{
			GenerationDelay: 100 * time.Millisecond,
			WordsPerMinute:  150,
		},
		PNGTuber: PNGTuberConfig{
			FallbackTimeout: 30 * time.Second,
		},
	}
}

// Validate checks if the configuration is valid. Engine and avatar names
// are normalized to lower case.
func (c *Config) Validate() error {
	c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	if !slices.Contains(Engines, c.Engine) {
		return fmt.Errorf("%w: engine %q must be one of %v", ErrInvalidConfig, c.Engine, Engines)
	}

	c.Avatar = strings.ToLower(strings.TrimSpace(c.Avatar))
	if !slices.Contains(Avatars, c.Avatar) {
		return fmt.Errorf("%w: avatar %q must be one of %v", ErrInvalidConfig, c.Avatar, Avatars)
	}

	if c.Volume < 0.0 || c.Volume > 1.0 {
		return fmt.Errorf("%w: volume must be between 0.0 and 1.0, got %f", ErrInvalidConfig, c.Volume)
	}

	validSampleRates := []int{8000, 16000, 22050, 24000, 44100, 48000}
	if !slices.Contains(validSampleRates, c.SampleRate) {
		return fmt.Errorf("%w: sample rate %d must be one of %v", ErrInvalidConfig, c.SampleRate, validSampleRates)
	}

	if c.BufferThreshold < 1024 {
		return fmt.Errorf("%w: buffer_threshold must be at least 1024 bytes, got %d", ErrInvalidConfig, c.BufferThreshold)
	}
	if c.QueueCheckDelay < 0 {
		return fmt.Errorf("%w: queue_check_delay cannot be negative", ErrInvalidConfig)
	}
	if c.ShortMax < 1 || c.LongMin <= c.ShortMax {
		return fmt.Errorf("%w: need 1 <= short_max < long_min, got %d and %d", ErrInvalidConfig, c.ShortMax, c.LongMin)
	}
	if c.Lookahead < 1 || c.Lookahead > 16 {
		return fmt.Errorf("%w: lookahead must be between 1 and 16, got %d", ErrInvalidConfig, c.Lookahead)
	}

	switch c.Engine {
	case "http":
		if err := c.HTTP.Validate(); err != nil {
			return fmt.Errorf("http config: %w", err)
		}
	case "realtime":
		if err := c.Realtime.Validate(); err != nil {
			return fmt.Errorf("realtime config: %w", err)
		}
	case "mock":
		if err := c.Mock.Validate(); err != nil {
			return fmt.Errorf("mock config: %w", err)
		}
	}

	if c.Cache.Enabled && (c.Cache.MemoryMB < 1 || c.Cache.DiskMB < 0) {
		return fmt.Errorf("%w: cache sizes must be positive", ErrInvalidConfig)
	}

	return nil
}

// Validate checks if the HTTP engine configuration is valid.
func (c *HTTPConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url", ErrMissingConfig)
	}
	if c.Speed < 0.25 || c.Speed > 4.0 {
		return fmt.Errorf("%w: speed must be between 0.25 and 4.0, got %f", ErrInvalidConfig, c.Speed)
	}
	if c.Rate <= 0 || c.Burst < 1 {
		return fmt.Errorf("%w: rate and burst must be positive", ErrInvalidConfig)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("%w: timeout must be at least 1 second, got %v", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// Validate checks if the realtime engine configuration is valid.
func (c *RealtimeConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url", ErrMissingConfig)
	}
	if !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
		return fmt.Errorf("%w: url must use ws:// or wss://, got %q", ErrInvalidConfig, c.URL)
	}
	return nil
}

// Validate checks if the mock engine configuration is valid.
func (c *MockConfig) Validate() error {
	if c.WordsPerMinute < 50 || c.WordsPerMinute > 500 {
		return fmt.Errorf("%w: words_per_minute must be between 50 and 500, got %d", ErrInvalidConfig, c.WordsPerMinute)
	}
	if c.FailureRate < 0.0 || c.FailureRate > 1.0 {
		return fmt.Errorf("%w: failure_rate must be between 0.0 and 1.0, got %f", ErrInvalidConfig, c.FailureRate)
	}
	return nil
}
