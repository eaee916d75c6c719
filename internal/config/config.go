package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

const envPrefix = "SGU"

// Config holds the settings of the SGU client and CLI.
//
// Fields:
// - Env: The current environment (local, development, production, console).
// - BaseURL: Root of the SGU open-data API; domain collections are resolved against it.
// - Timeout: Per-attempt HTTP timeout.
// - MaxRetries: Total number of attempts for a request.
// - RetryBackoff: Initial backoff between attempts.
// - Debug: Traces every request at debug level.
// - RateLimit: Client-side request rate in requests per second, 0 disables it.
// - MaxFeatures: Safety cap on aggregated results when a query sets no limit.
// - UserAgent: User-Agent header sent with every request.
// - Geocoder: Provider used to resolve place names.
type Config struct {
	Env          string         `mapstructure:"env"`
	BaseURL      string         `mapstructure:"base_url"`
	Timeout      time.Duration  `mapstructure:"timeout"`
	MaxRetries   int            `mapstructure:"max_retries"`
	RetryBackoff time.Duration  `mapstructure:"retry_backoff"`
	Debug        bool           `mapstructure:"debug"`
	RateLimit    float64        `mapstructure:"rate_limit"`
	MaxFeatures  int            `mapstructure:"max_features"`
	UserAgent    string         `mapstructure:"user_agent"`
	Geocoder     GeocoderConfig `mapstructure:"geocoder"`
}

// GeocoderConfig selects the geocoding provider.
type GeocoderConfig struct {
	Type   string `mapstructure:"type"`    // google or nominatim
	APIKey string `mapstructure:"api_key"` // Required for google
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Env:          "production",
		BaseURL:      "https://api.sgu.se/oppnadata/",
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
		MaxFeatures:  50000,
		UserAgent:    "aquifer/1.0",
		Geocoder:     GeocoderConfig{Type: "nominatim"},
	}
}

// Load reads the configuration from defaults, an optional YAML file and SGU_*
// environment variables, in increasing priority. Variables from the given
// dotenv files (".env" when none are given) are loaded first and never
// override the process environment.
func Load(path string, envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values the client cannot work with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	switch {
	case err != nil || !u.IsAbs():
		return fmt.Errorf("%w: base_url %q must be an absolute URL", ErrInvalidConfig, c.BaseURL)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max_retries must not be negative, got %d", ErrInvalidConfig, c.MaxRetries)
	case c.RetryBackoff < 0:
		return fmt.Errorf("%w: retry_backoff must not be negative, got %s", ErrInvalidConfig, c.RetryBackoff)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate_limit must not be negative, got %v", ErrInvalidConfig, c.RateLimit)
	case c.MaxFeatures < 0:
		return fmt.Errorf("%w: max_features must not be negative, got %d", ErrInvalidConfig, c.MaxFeatures)
	}
	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("env", d.Env)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("retry_backoff", d.RetryBackoff)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("max_features", d.MaxFeatures)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("geocoder.type", d.Geocoder.Type)
	v.SetDefault("geocoder.api_key", d.Geocoder.APIKey)
}
