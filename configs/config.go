package configs

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose"`
	Quiet        bool   `mapstructure:"quiet"`
	LogLevel     string `mapstructure:"log_level"`
	OutputFormat string `mapstructure:"output_format"`

	Download DownloadConfig `mapstructure:"download"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Parser   ParserConfig   `mapstructure:"parser"`
}

// DownloadConfig contains segment download and cache settings
type DownloadConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	CacheDir    string `mapstructure:"cache_dir"`
	CacheKey    string `mapstructure:"cache_key"`
}

// HTTPConfig contains transport settings shared by playlist, key and segment requests
type HTTPConfig struct {
	Timeout     time.Duration     `mapstructure:"timeout"`
	UserAgent   string            `mapstructure:"user_agent"`
	Headers     map[string]string `mapstructure:"headers"`
	HeadersFile string            `mapstructure:"headers_file"`
	RateLimit   float64           `mapstructure:"rate_limit"`
	Burst       int               `mapstructure:"burst"`
}

// ParserConfig contains playlist parsing settings
type ParserConfig struct {
	StrictMethod bool `mapstructure:"strict_method"`
}

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validOutputFormats = []string{"table", "json", "yaml"}
	validCacheKeys     = []string{"basename", "hash"}
)

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.GetViper())
}

// LoadConfigFrom applies defaults for unset keys and decodes v into a Config.
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config.Download.Concurrency <= 0 {
		return fmt.Errorf("download concurrency must be positive")
	}

	if config.Download.CacheDir == "" {
		return fmt.Errorf("download cache directory cannot be empty")
	}

	if !slices.Contains(validCacheKeys, config.Download.CacheKey) {
		return fmt.Errorf("unknown cache key strategy %q (want one of %v)", config.Download.CacheKey, validCacheKeys)
	}

	if config.HTTP.Timeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}

	if config.HTTP.RateLimit < 0 {
		return fmt.Errorf("http rate limit cannot be negative")
	}

	if config.HTTP.RateLimit > 0 && config.HTTP.Burst < 1 {
		return fmt.Errorf("http burst must be at least 1 when rate limiting")
	}

	if !slices.Contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("unknown log level %q", config.LogLevel)
	}

	if !slices.Contains(validOutputFormats, config.OutputFormat) {
		return fmt.Errorf("unknown output format %q", config.OutputFormat)
	}

	return nil
}
