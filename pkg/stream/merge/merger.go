// Package merge concatenates cached segments into the final output file.
package merge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/hls"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// SegmentReader returns the raw bytes previously cached for a segment
type SegmentReader interface {
	Read(segmentURL string) ([]byte, error)
}

// Merger writes decoded segments in playlist order
type Merger struct {
	bufferSize int
	logger     logging.Logger
}

// NewMerger creates a merger
func NewMerger(logger logging.Logger) *Merger {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Merger{
		bufferSize: 256 * 1024,
		logger:     logger,
	}
}

// Merge creates outputPath and writes every segment to it. It must only be called
// after the download stage succeeded. A failure part way leaves a partial file.
func (m *Merger) Merge(ctx context.Context, playlist *hls.Playlist, cache SegmentReader, decoder hls.Decoder, outputPath string) (written int64, err error) {
	f, err := os.Create(outputPath)
	if err != nil {
		return 0, common.NewIOError(outputPath, "failed to create output file", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = common.NewIOError(outputPath, "failed to close output file", cerr)
		}
	}()

	w := bufio.NewWriterSize(f, m.bufferSize)
	written, err = m.MergeTo(ctx, playlist, cache, decoder, w)
	if err != nil {
		w.Flush()
		return written, err
	}

	if err := w.Flush(); err != nil {
		return written, common.NewIOError(outputPath, "failed to flush output file", err)
	}

	return written, nil
}

// MergeTo streams decoded segments to w, strictly in playlist order
func (m *Merger) MergeTo(ctx context.Context, playlist *hls.Playlist, cache SegmentReader, decoder hls.Decoder, w io.Writer) (int64, error) {
	if decoder == nil {
		decoder = hls.IdentityDecoder{}
	}

	start := time.Now()
	var written int64

	for i, segmentURL := range playlist.SegmentURLs {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		raw, err := cache.Read(segmentURL)
		if err != nil {
			return written, fmt.Errorf("segment %d: %w", i+1, err)
		}

		decoded, err := decoder.Decode(raw)
		if err != nil {
			return written, fmt.Errorf("segment %d (%s): %w", i+1, segmentURL, err)
		}

		n, err := w.Write(decoded)
		written += int64(n)
		if err != nil {
			return written, common.NewIOError(segmentURL, "failed to write output", err)
		}
	}

	m.logger.Debug("Merged segments", logging.Fields{
		"segments":    len(playlist.SegmentURLs),
		"bytes":       written,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return written, nil
}
