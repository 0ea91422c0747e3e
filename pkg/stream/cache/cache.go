// Package cache stores raw segment bytes on disk, one file per segment, so an
// interrupted run can resume without downloading segments it already has.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/fetch"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// KeyStrategy selects how a segment URL maps to a cache file name
type KeyStrategy string

const (
	// KeyBasename names entries after the URL's last path component
	KeyBasename KeyStrategy = "basename"
	// KeyHash names entries after a SHA-256 of the full URL, keeping the extension
	KeyHash KeyStrategy = "hash"
)

const partialSuffix = ".partial"

// Options configures a SegmentCache
type Options struct {
	KeyStrategy KeyStrategy `json:"key_strategy"`
	DirMode     os.FileMode `json:"dir_mode"`
	FileMode    os.FileMode `json:"file_mode"`
}

// DefaultOptions returns the default cache options
func DefaultOptions() *Options {
	return &Options{
		KeyStrategy: KeyBasename,
		DirMode:     0755,
		FileMode:    0644,
	}
}

// Stats counts cache activity since creation
type Stats struct {
	Hits         int64 `json:"hits" yaml:"hits"`
	Fetches      int64 `json:"fetches" yaml:"fetches"`
	BytesFetched int64 `json:"bytes_fetched" yaml:"bytes_fetched"`
}

// SegmentCache memoizes segment fetches in a directory. It is the only writer of
// that directory's segment files.
type SegmentCache struct {
	dir     string
	fetcher fetch.Fetcher
	options *Options
	logger  logging.Logger
	group   singleflight.Group

	hits         atomic.Int64
	fetches      atomic.Int64
	bytesFetched atomic.Int64
}

// New creates a cache rooted at dir, creating the directory if needed
func New(dir string, fetcher fetch.Fetcher, options *Options, logger logging.Logger) (*SegmentCache, error) {
	if options == nil {
		options = DefaultOptions()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	switch options.KeyStrategy {
	case KeyBasename, KeyHash:
	case "":
		options.KeyStrategy = KeyBasename
	default:
		return nil, fmt.Errorf("unknown cache key strategy %q", options.KeyStrategy)
	}

	if err := os.MkdirAll(dir, options.DirMode); err != nil {
		return nil, common.NewIOError(dir, "failed to create cache directory", err)
	}

	return &SegmentCache{
		dir:     dir,
		fetcher: fetcher,
		options: options,
		logger:  logger,
	}, nil
}

// Dir returns the cache root
func (c *SegmentCache) Dir() string {
	return c.dir
}

// Key returns the file name used for a segment URL
func (c *SegmentCache) Key(segmentURL string) string {
	if c.options.KeyStrategy == KeyHash {
		return hashKey(segmentURL)
	}

	name := sanitizeKey(common.LastPathSegment(segmentURL))
	if name == "" {
		return hashKey(segmentURL)
	}
	return name
}

// Path returns the final on-disk location of a segment
func (c *SegmentCache) Path(segmentURL string) string {
	return filepath.Join(c.dir, c.Key(segmentURL))
}

// Has reports whether a complete entry exists for the segment
func (c *SegmentCache) Has(segmentURL string) bool {
	fi, err := os.Stat(c.Path(segmentURL))
	return err == nil && fi.Mode().IsRegular()
}

// Ensure makes sure the segment is cached, fetching it only when absent.
// Concurrent calls for the same key share one fetch.
func (c *SegmentCache) Ensure(ctx context.Context, segmentURL string) error {
	if c.Has(segmentURL) {
		c.hits.Add(1)
		return nil
	}

	key := c.Key(segmentURL)
	ran := false
	_, err, shared := c.group.Do(key, func() (any, error) {
		ran = true
		if c.Has(segmentURL) {
			c.hits.Add(1)
			return nil, nil
		}
		return nil, c.fetchAndStore(ctx, segmentURL, key)
	})
	// A caller that waited on another caller's fetch is served from the cache
	if err == nil && shared && !ran {
		c.hits.Add(1)
	}
	return err
}

// fetchAndStore downloads a segment and publishes it under key. The entry only
// becomes visible once it is completely written.
func (c *SegmentCache) fetchAndStore(ctx context.Context, segmentURL, key string) error {
	data, err := c.fetcher.Fetch(ctx, segmentURL)
	if err != nil {
		if common.IsCode(err, common.ErrCodeFetch) {
			return err
		}
		return common.NewFetchError(segmentURL, "failed to fetch segment", err)
	}

	if err := c.put(key, data); err != nil {
		return common.NewIOError(segmentURL, "failed to store segment", err)
	}

	c.fetches.Add(1)
	c.bytesFetched.Add(int64(len(data)))

	c.logger.Debug("Cached segment", logging.Fields{
		"url":   segmentURL,
		"key":   key,
		"bytes": len(data),
	})

	return nil
}

// put writes data to a uniquely named temporary file and renames it into place
func (c *SegmentCache) put(key string, data []byte) (err error) {
	finalPath := filepath.Join(c.dir, key)
	tmpPath := filepath.Join(c.dir, "."+key+"."+uuid.NewString()+partialSuffix)

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, c.options.FileMode)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, finalPath)
}

// Read returns the raw bytes stored for a segment
func (c *SegmentCache) Read(segmentURL string) ([]byte, error) {
	data, err := os.ReadFile(c.Path(segmentURL))
	if err != nil {
		return nil, common.NewIOError(segmentURL, "failed to read cached segment", err)
	}
	return data, nil
}

// Stats returns a snapshot of cache counters
func (c *SegmentCache) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Fetches:      c.fetches.Load(),
		BytesFetched: c.bytesFetched.Load(),
	}
}

// CleanPartials removes temporary files left behind by an interrupted run
func (c *SegmentCache) CleanPartials() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, common.NewIOError(c.dir, "failed to list cache directory", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), partialSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func hashKey(segmentURL string) string {
	sum := sha256.Sum256([]byte(segmentURL))
	return hex.EncodeToString(sum[:]) + path.Ext(common.LastPathSegment(segmentURL))
}

func sanitizeKey(name string) string {
	s := strings.ReplaceAll(name, "\\", "_")
	s = strings.ReplaceAll(s, "\x00", "_")
	if s == "" || strings.HasPrefix(s, ".") || strings.HasSuffix(s, partialSuffix) {
		return ""
	}
	return s
}
