package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultConcurrency = 4
	DefaultCacheDir    = "./segments"
	DefaultUserAgent   = "hls-fetch/1.0"
	DefaultTimeout     = 30 * time.Second
)

// SetDefaults sets default configuration values for keys not already set
func SetDefaults(v *viper.Viper) {
	// Application defaults
	if !v.IsSet("verbose") {
		v.Set("verbose", false)
	}
	if !v.IsSet("quiet") {
		v.Set("quiet", false)
	}
	if !v.IsSet("log_level") {
		v.Set("log_level", "info")
	}
	if !v.IsSet("output_format") {
		v.Set("output_format", "table")
	}

	// Download defaults
	if !v.IsSet("download.concurrency") {
		v.Set("download.concurrency", DefaultConcurrency)
	}
	if !v.IsSet("download.cache_dir") {
		v.Set("download.cache_dir", DefaultCacheDir)
	}
	if !v.IsSet("download.cache_key") {
		v.Set("download.cache_key", "basename")
	}

	setHTTPDefaults(v)

	if !v.IsSet("parser.strict_method") {
		v.Set("parser.strict_method", false)
	}
}

// setHTTPDefaults sets transport defaults
func setHTTPDefaults(v *viper.Viper) {
	if !v.IsSet("http.timeout") {
		v.Set("http.timeout", DefaultTimeout)
	}
	if !v.IsSet("http.user_agent") {
		v.Set("http.user_agent", DefaultUserAgent)
	}
	if !v.IsSet("http.headers") {
		v.Set("http.headers", map[string]string{})
	}
	if !v.IsSet("http.headers_file") {
		v.Set("http.headers_file", "")
	}
	if !v.IsSet("http.rate_limit") {
		v.Set("http.rate_limit", 0.0)
	}
	if !v.IsSet("http.burst") {
		v.Set("http.burst", 1)
	}
}

// GetDefaultConfig returns a Config struct with all default values set
func GetDefaultConfig() *Config {
	return &Config{
		Verbose:      false,
		Quiet:        false,
		LogLevel:     "info",
		OutputFormat: "table",
		Download:     GetDefaultDownloadConfig(),
		HTTP:         GetDefaultHTTPConfig(),
		Parser:       ParserConfig{StrictMethod: false},
	}
}

// GetDefaultDownloadConfig returns default download settings
func GetDefaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		Concurrency: DefaultConcurrency,
		CacheDir:    DefaultCacheDir,
		CacheKey:    "basename",
	}
}

// GetDefaultHTTPConfig returns default transport settings
func GetDefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		Headers:   make(map[string]string),
		Burst:     1,
	}
}
