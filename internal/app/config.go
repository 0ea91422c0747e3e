package app

import (
	"fmt"
	"maps"
	"net/url"
	"path"
	"strings"

	"github.com/RyanBlaney/hls-fetch/configs"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/cache"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/fetch"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/hls"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

const defaultOutputFile = "output.ts"

// loadAndMergeConfig loads configuration from viper and applies CLI overrides
func loadAndMergeConfig(ctx *Context) (*configs.Config, error) {
	config, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load base configuration: %w", err)
	}

	mergeContext(config, ctx)

	if err := configs.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if ctx.OutputFile == "" {
		ctx.OutputFile = DefaultOutputFile(ctx.PlaylistURL)
	}

	return config, nil
}

// mergeContext lets explicitly given CLI arguments win over file and env settings
func mergeContext(config *configs.Config, ctx *Context) {
	if ctx.CacheDir != "" {
		config.Download.CacheDir = ctx.CacheDir
	}
	if ctx.Concurrency > 0 {
		config.Download.Concurrency = ctx.Concurrency
	}
	if ctx.Timeout > 0 {
		config.HTTP.Timeout = ctx.Timeout
	}
	if ctx.HeadersFile != "" {
		config.HTTP.HeadersFile = ctx.HeadersFile
	}
	if ctx.OutputFormat != "" {
		config.OutputFormat = ctx.OutputFormat
	}
	if ctx.Verbose {
		config.Verbose = true
		config.LogLevel = "debug"
	}
	if ctx.Quiet {
		config.Quiet = true
	}

	ctx.Verbose = config.Verbose
	ctx.Quiet = config.Quiet
	ctx.OutputFormat = config.OutputFormat
	ctx.CacheDir = config.Download.CacheDir
}

// DefaultOutputFile derives an output name from the playlist file name, e.g. index.m3u8 -> index.ts
func DefaultOutputFile(playlistURL string) string {
	u, err := url.Parse(playlistURL)
	if err != nil {
		return defaultOutputFile
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return defaultOutputFile
	}

	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "" {
		return defaultOutputFile
	}
	return name + ".ts"
}

// newFetcher builds the one fetcher shared by the parser and the cache for a run
func (app *DownloadApp) newFetcher() (*fetch.HTTPFetcher, error) {
	headers := make(map[string]string, len(app.config.HTTP.Headers))
	maps.Copy(headers, app.config.HTTP.Headers)

	fileHeaders, err := fetch.LoadHeaders(app.config.HTTP.HeadersFile)
	if err != nil {
		return nil, err
	}
	maps.Copy(headers, fileHeaders)

	fetchConfig := fetch.DefaultConfig()
	fetchConfig.Timeout = app.config.HTTP.Timeout
	fetchConfig.Headers = headers
	fetchConfig.RateLimit = app.config.HTTP.RateLimit
	fetchConfig.Burst = app.config.HTTP.Burst
	if app.config.HTTP.UserAgent != "" {
		fetchConfig.UserAgent = app.config.HTTP.UserAgent
	}

	return fetch.NewHTTPFetcher(fetchConfig, app.logger), nil
}

func (app *DownloadApp) parserConfig() *hls.ParserConfig {
	parserConfig := hls.DefaultConfig().Parser
	parserConfig.StrictMethod = app.config.Parser.StrictMethod
	return parserConfig
}

func (app *DownloadApp) cacheOptions() *cache.Options {
	options := cache.DefaultOptions()
	options.KeyStrategy = cache.KeyStrategy(app.config.Download.CacheKey)
	return options
}

// logLevel resolves the effective level. Info lines share stdout with the
// formatted results, so machine-readable formats start at warn.
func logLevel(ctx *Context) logging.Level {
	switch {
	case ctx.Verbose:
		return logging.DebugLevel
	case ctx.Quiet:
		return logging.ErrorLevel
	case ctx.Config == nil:
		return logging.InfoLevel
	}

	level := parseLogLevel(ctx.Config.LogLevel)
	if level == logging.InfoLevel && (ctx.Config.OutputFormat == "json" || ctx.Config.OutputFormat == "yaml") {
		return logging.WarnLevel
	}
	return level
}

func parseLogLevel(name string) logging.Level {
	switch strings.ToLower(name) {
	case "debug":
		return logging.DebugLevel
	case "warn":
		return logging.WarnLevel
	case "error":
		return logging.ErrorLevel
	default:
		return logging.InfoLevel
	}
}
