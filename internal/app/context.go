package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/RyanBlaney/hls-fetch/configs"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/cache"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/download"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/fetch"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/hls"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/merge"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	PlaylistURL  string
	CacheDir     string
	OutputFile   string
	OutputFormat string
	HeadersFile  string
	Concurrency  int
	Timeout      time.Duration
	Verbose      bool
	Quiet        bool

	// Out receives the run summary, ErrOut the progress line. Both default to the process streams.
	Out    io.Writer
	ErrOut io.Writer

	// Runtime context
	Logger logging.Logger
	Config *configs.Config
}

// segmentMerger is the merge stage as seen by the app
type segmentMerger interface {
	Merge(ctx context.Context, playlist *hls.Playlist, cache merge.SegmentReader, decoder hls.Decoder, outputPath string) (int64, error)
}

// DownloadApp handles the download application lifecycle
type DownloadApp struct {
	ctx    *Context
	config *configs.Config
	logger logging.Logger
	merger segmentMerger
}

// NewDownloadApp creates a new download application
func NewDownloadApp(ctx *Context) (*DownloadApp, error) {
	config, err := loadAndMergeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx.Config = config

	logger := setupLogging(ctx)
	ctx.Logger = logger

	if ctx.Out == nil {
		ctx.Out = os.Stdout
	}
	if ctx.ErrOut == nil {
		ctx.ErrOut = os.Stderr
	}

	logger.Debug("Download application initialized", logging.Fields{
		"playlist_url": ctx.PlaylistURL,
		"cache_dir":    config.Download.CacheDir,
		"output_file":  ctx.OutputFile,
		"concurrency":  config.Download.Concurrency,
		"cache_key":    config.Download.CacheKey,
	})

	return &DownloadApp{
		ctx:    ctx,
		config: config,
		logger: logger,
		merger: merge.NewMerger(logger),
	}, nil
}

// Run parses the playlist, downloads every segment into the cache and merges
// them into the output file. The merge only happens once every segment is cached.
// Errors name the stage that failed.
func (app *DownloadApp) Run(ctx context.Context) (*Summary, error) {
	summary, err := app.run(ctx)
	return summary, stageError(err)
}

func (app *DownloadApp) run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	if err := hls.ValidateURL(app.ctx.PlaylistURL); err != nil {
		return nil, err
	}

	fetcher, err := app.newFetcher()
	if err != nil {
		return nil, err
	}
	defer fetcher.Close()

	playlist, err := app.parse(ctx, fetcher)
	if err != nil {
		return nil, err
	}

	decoder, err := hls.NewDecoder(playlist.Encryption)
	if err != nil {
		return nil, err
	}

	segments, err := cache.New(app.config.Download.CacheDir, fetcher, app.cacheOptions(), app.logger)
	if err != nil {
		return nil, err
	}

	if removed, err := segments.CleanPartials(); err != nil {
		app.logger.Warn("Failed to clean partial cache entries", logging.Fields{"error": err.Error()})
	} else if removed > 0 {
		app.logger.Debug("Removed partial cache entries", logging.Fields{"count": removed})
	}

	if prev, err := hls.ReadManifest(segments.Dir()); err == nil && prev.URL != playlist.URL {
		app.logger.Warn("Cache directory holds segments of another playlist", logging.Fields{
			"previous_url": prev.URL,
			"url":          playlist.URL,
		})
	}

	if err := hls.WriteManifest(segments.Dir(), playlist); err != nil {
		app.logger.Warn("Failed to write playlist manifest", logging.Fields{"error": err.Error()})
	}

	app.logger.Info("Downloading segments", logging.Fields{
		"segments":    len(playlist.SegmentURLs),
		"variants":    len(playlist.VariantURLs),
		"encrypted":   playlist.IsEncrypted(),
		"concurrency": app.config.Download.Concurrency,
	})

	pipeline := download.NewPipeline(&download.Config{Concurrency: app.config.Download.Concurrency}, app.logger)

	var progress download.Progress = download.NopProgress{}
	var console *download.ConsoleProgress
	if !app.config.Quiet {
		console = download.NewConsoleProgress(app.ctx.ErrOut, len(playlist.SegmentURLs))
		progress = console
	}

	err = pipeline.Run(ctx, playlist, segments, progress)
	if console != nil {
		console.Finish()
	}
	if err != nil {
		app.logger.Error(err, "Download failed")
		return nil, err
	}

	written, err := app.merger.Merge(ctx, playlist, segments, decoder, app.ctx.OutputFile)
	if err != nil {
		app.logger.Error(err, "Merge failed")
		return nil, err
	}

	summary := newSummary(app.ctx, playlist, segments.Stats(), written, time.Since(start))

	app.logger.Info("Download complete", logging.Fields{
		"output":        summary.Output,
		"fetched":       summary.Fetched,
		"cache_hits":    summary.CacheHits,
		"bytes_written": summary.BytesWritten,
	})

	if !app.config.Quiet {
		if err := app.outputResults(summary.Fields()); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

// Inspect parses the playlist without downloading anything and reports what it resolved to
func (app *DownloadApp) Inspect(ctx context.Context) (*InspectReport, error) {
	report, err := app.inspect(ctx)
	return report, stageError(err)
}

func (app *DownloadApp) inspect(ctx context.Context) (*InspectReport, error) {
	if err := hls.ValidateURL(app.ctx.PlaylistURL); err != nil {
		return nil, err
	}

	fetcher, err := app.newFetcher()
	if err != nil {
		return nil, err
	}
	defer fetcher.Close()

	playlist, err := app.parse(ctx, fetcher)
	if err != nil {
		return nil, err
	}

	report := newInspectReport(playlist)

	structure, err := hls.InspectStructure(playlist.Source)
	if err != nil {
		app.logger.Debug("Playlist structure not decodable", logging.Fields{"error": err.Error()})
	} else {
		report.Structure = structure
	}

	if err := app.outputResults(report.Fields()); err != nil {
		return report, err
	}

	return report, nil
}

func (app *DownloadApp) parse(ctx context.Context, fetcher fetch.Fetcher) (*hls.Playlist, error) {
	if hls.DetectFromURL(app.ctx.PlaylistURL) != common.StreamTypeHLS {
		app.logger.Warn("URL does not look like an HLS playlist", logging.Fields{
			"url": app.ctx.PlaylistURL,
		})
	}

	parser := hls.NewParser(fetcher, app.parserConfig(), app.logger)

	playlist, err := parser.Parse(ctx, app.ctx.PlaylistURL)
	if err != nil {
		app.logger.Error(err, "Failed to parse playlist")
		return nil, err
	}

	app.logger.Debug("Parsed playlist", logging.Fields{
		"url":      playlist.URL,
		"segments": len(playlist.SegmentURLs),
		"variants": len(playlist.VariantURLs),
		"method":   string(playlist.Metadata().Method),
	})

	return playlist, nil
}

// stageError prefixes err with the stage of its StreamError, if any
func stageError(err error) error {
	if err == nil {
		return nil
	}
	var se *common.StreamError
	if errors.As(err, &se) {
		return fmt.Errorf("%s failed: %w", se.Stage(), err)
	}
	return err
}

// setupLogging configures logging based on context
func setupLogging(ctx *Context) logging.Logger {
	level := logLevel(ctx)
	logging.SetLevel(level)

	logger := logging.NewDefaultLogger()
	logger.SetLevel(level)
	return logger
}
