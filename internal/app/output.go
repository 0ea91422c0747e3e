package app

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/cache"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/hls"
	"github.com/RyanBlaney/latency-benchmark-common/output"
)

// Summary describes a completed download run
type Summary struct {
	URL          string        `json:"url" yaml:"url"`
	Output       string        `json:"output" yaml:"output"`
	CacheDir     string        `json:"cache_dir" yaml:"cache_dir"`
	Segments     int           `json:"segments" yaml:"segments"`
	Variants     int           `json:"variants" yaml:"variants"`
	Method       string        `json:"method" yaml:"method"`
	Fetched      int64         `json:"fetched" yaml:"fetched"`
	CacheHits    int64         `json:"cache_hits" yaml:"cache_hits"`
	BytesFetched int64         `json:"bytes_fetched" yaml:"bytes_fetched"`
	BytesWritten int64         `json:"bytes_written" yaml:"bytes_written"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
}

func newSummary(ctx *Context, playlist *hls.Playlist, stats cache.Stats, written int64, elapsed time.Duration) *Summary {
	meta := playlist.Metadata()
	return &Summary{
		URL:          playlist.URL,
		Output:       ctx.OutputFile,
		CacheDir:     ctx.CacheDir,
		Segments:     meta.Segments,
		Variants:     meta.Variants,
		Method:       meta.Method,
		Fetched:      stats.Fetches,
		CacheHits:    stats.Hits,
		BytesFetched: stats.BytesFetched,
		BytesWritten: written,
		Duration:     elapsed,
	}
}

// Fields flattens the summary for the output formatters
func (s *Summary) Fields() map[string]any {
	return map[string]any{
		"url":           s.URL,
		"output":        s.Output,
		"cache_dir":     s.CacheDir,
		"segments":      s.Segments,
		"variants":      s.Variants,
		"method":        s.Method,
		"fetched":       s.Fetched,
		"cache_hits":    s.CacheHits,
		"bytes_fetched": s.BytesFetched,
		"bytes_written": s.BytesWritten,
		"duration":      common.FormatDuration(s.Duration),
	}
}

// InspectReport describes what a playlist resolves to without downloading it
type InspectReport struct {
	URL         string         `json:"url" yaml:"url"`
	BaseURL     string         `json:"base_url" yaml:"base_url"`
	Method      string         `json:"method" yaml:"method"`
	KeyURI      string         `json:"key_uri,omitempty" yaml:"key_uri,omitempty"`
	IV          string         `json:"iv,omitempty" yaml:"iv,omitempty"`
	Segments    int            `json:"segments" yaml:"segments"`
	VariantURLs []string       `json:"variants" yaml:"variants"`
	Structure   *hls.Structure `json:"structure,omitempty" yaml:"structure,omitempty"`
}

func newInspectReport(playlist *hls.Playlist) *InspectReport {
	report := &InspectReport{
		URL:         playlist.URL,
		BaseURL:     playlist.BaseURL,
		Method:      playlist.Metadata().Method,
		Segments:    len(playlist.SegmentURLs),
		VariantURLs: playlist.VariantURLs,
	}
	if playlist.Encryption != nil {
		report.KeyURI = playlist.Encryption.KeyURI
		report.IV = playlist.Encryption.IVHex()
	}
	return report
}

// Fields flattens the report for the output formatters
func (r *InspectReport) Fields() map[string]any {
	fields := map[string]any{
		"url":      r.URL,
		"base_url": r.BaseURL,
		"method":   r.Method,
		"segments": r.Segments,
		"variants": len(r.VariantURLs),
	}
	if r.KeyURI != "" {
		fields["key_uri"] = r.KeyURI
	}
	if r.IV != "" {
		fields["iv"] = r.IV
	}
	if s := r.Structure; s != nil {
		fields["playlist_type"] = s.Type
		fields["version"] = s.Version
		if s.Type == "media" {
			fields["target_duration"] = s.TargetDuration
			fields["media_sequence"] = s.MediaSequence
			fields["closed"] = s.Closed
		} else {
			fields["bandwidths"] = s.Bandwidths
		}
	}
	return fields
}

// outputResults formats data in the configured output format and writes it to Out
func (app *DownloadApp) outputResults(data map[string]any) error {
	var formatter output.Formatter
	switch app.config.OutputFormat {
	case "json":
		formatter = &output.JSONFormatter{}
	case "yaml":
		formatter = &output.YAMLFormatter{}
	case "table":
		formatter = &output.TableFormatter{}
	default:
		formatter = &output.JSONFormatter{}
	}

	formatted, err := formatter.Format(data, true)
	if err != nil {
		return fmt.Errorf("failed to format output data: %w", err)
	}

	_, err = app.ctx.Out.Write(formatted)
	return err
}
