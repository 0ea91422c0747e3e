// Package download runs the concurrent segment fetch stage of a run.
package download

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/hls"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of segment fetches in flight at once
const DefaultConcurrency = 4

// Ensurer makes a segment available locally. SegmentCache satisfies it.
type Ensurer interface {
	Ensure(ctx context.Context, segmentURL string) error
}

// Config contains pipeline settings
type Config struct {
	Concurrency int `json:"concurrency"`
}

// DefaultConfig returns default pipeline configuration
func DefaultConfig() *Config {
	return &Config{
		Concurrency: DefaultConcurrency,
	}
}

// Pipeline fetches every segment of a playlist through a bounded worker pool
type Pipeline struct {
	config *Config
	logger logging.Logger
}

// NewPipeline creates a pipeline
func NewPipeline(config *Config, logger logging.Logger) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Concurrency < 1 {
		config.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Pipeline{
		config: config,
		logger: logger,
	}
}

// Run submits one Ensure per segment URL, duplicates included, and waits for all
// started tasks. Each finished task reports one progress increment as it finishes.
// After the first failure no further task is started; tasks already in flight are
// allowed to complete, and the first failure is returned.
func (p *Pipeline) Run(ctx context.Context, playlist *hls.Playlist, cache Ensurer, progress Progress) error {
	if progress == nil {
		progress = NopProgress{}
	}

	start := time.Now()
	total := len(playlist.SegmentURLs)

	p.logger.Debug("Starting segment downloads", logging.Fields{
		"segments":    total,
		"concurrency": p.config.Concurrency,
	})

	// stop is cancelled on the first failure and only gates scheduling. Tasks
	// receive ctx so a sibling failure does not abort their in-flight reads.
	g, stop := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	submitted := 0
	for i, segmentURL := range playlist.SegmentURLs {
		if stop.Err() != nil {
			break
		}

		g.Go(func() error {
			// A slot may free up after a failure was recorded
			if stop.Err() != nil {
				return nil
			}

			err := cache.Ensure(ctx, segmentURL)
			progress.Increment(1)
			if err != nil {
				return fmt.Errorf("segment %d of %d: %w", i+1, total, err)
			}
			return nil
		})
		submitted++
	}

	if err := g.Wait(); err != nil {
		p.logger.Error(err, "Segment download failed")
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	p.logger.Debug("Segment downloads completed", logging.Fields{
		"segments":    total,
		"submitted":   submitted,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}
