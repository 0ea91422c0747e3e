// Package fetch provides the transport capability used by the playlist parser and
// the segment cache: given a URL, return its body or fail.
package fetch

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"golang.org/x/time/rate"
)

// Fetcher retrieves the bytes behind a URL. Any non-success outcome is an error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Func adapts a plain function to the Fetcher interface
type Func func(ctx context.Context, url string) ([]byte, error)

// Fetch calls f(ctx, url)
func (f Func) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// Config contains HTTP transport settings
type Config struct {
	Timeout    time.Duration     `json:"timeout"`
	UserAgent  string            `json:"user_agent"`
	Headers    map[string]string `json:"headers"`
	BufferSize int               `json:"buffer_size"`
	RateLimit  float64           `json:"rate_limit"` // requests per second, 0 disables pacing
	Burst      int               `json:"burst"`
}

// DefaultConfig returns default transport configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		UserAgent:  "hls-fetch/1.0",
		Headers:    make(map[string]string),
		BufferSize: 32 * 1024,
		RateLimit:  0,
		Burst:      1,
	}
}

// HTTPFetcher is a Fetcher backed by a single shared http.Client. One instance is
// built per run and closed when the run ends.
type HTTPFetcher struct {
	client  *http.Client
	config  *Config
	limiter *rate.Limiter
	logger  logging.Logger
}

// NewHTTPFetcher creates a fetcher with its own client and connection pool
func NewHTTPFetcher(config *Config, logger logging.Logger) *HTTPFetcher {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	var rt http.RoundTripper = transport
	if len(config.Headers) > 0 {
		rt = &HeaderMapTransport{Headers: config.Headers, Base: transport}
	}

	f := &HTTPFetcher{
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: rt,
		},
		config: config,
		logger: logger,
	}

	if config.RateLimit > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return f
}

// Fetch downloads url into memory
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.FetchTo(ctx, url, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FetchTo streams the response body for url into w
func (f *HTTPFetcher) FetchTo(ctx context.Context, url string, w io.Writer) error {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return common.NewFetchError(url, "rate limiter wait failed", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return common.NewFetchError(url, "failed to create request", err)
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "*/*")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return common.NewFetchError(url, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return common.NewFetchError(url, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status), nil)
	}

	var reader io.Reader = resp.Body
	if f.config.BufferSize > 0 {
		reader = bufio.NewReaderSize(resp.Body, f.config.BufferSize)
	}

	n, err := io.Copy(w, reader)
	if err != nil {
		return common.NewFetchError(url, "failed to read response", err)
	}

	f.logger.Debug("Fetched resource", logging.Fields{
		"url":         url,
		"bytes":       n,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

// Close releases pooled connections
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
