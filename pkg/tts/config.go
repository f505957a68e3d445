package tts

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/go-gaze/internal/httpc"
)

// Config holds provider configuration. Use the WithXxx options to set it.
type Config struct {
	APIKey  string
	BaseURL string
	Voice   string
	Model   string
	// Rate is words per minute for local engines.
	Rate int

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Client *http.Client
	Logger *slog.Logger
}

// Option configures a provider.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithVoice sets the voice.
func WithVoice(voice string) Option {
	return func(c *Config) { c.Voice = voice }
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithRate sets the speaking rate for local engines. Non-positive rates
// keep the default.
func WithRate(wpm int) Option {
	return func(c *Config) {
		if wpm > 0 {
			c.Rate = wpm
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retries for rate-limited and server errors.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.Client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns the shared defaults. Providers fill in their own
// voice and model.
func DefaultConfig() *Config {
	return &Config{
		Rate:       150,
		Timeout:    10 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Apply applies opts in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Client == nil {
		c.Client = httpc.NewClient(c.Timeout)
	}
}

// Validate checks that an API key is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
