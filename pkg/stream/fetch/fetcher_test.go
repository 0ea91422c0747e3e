package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, "hls-fetch/1.0", config.UserAgent)
	assert.NotNil(t, config.Headers)
	assert.Zero(t, config.RateLimit)
}

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.ts":
			w.Header().Set("X-Seen-Token", r.Header.Get("X-Token"))
			w.Header().Set("X-Seen-Agent", r.Header.Get("User-Agent"))
			w.Write([]byte("segment-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	t.Run("successful fetch", func(t *testing.T) {
		fetcher := NewHTTPFetcher(nil, nil)
		defer fetcher.Close()

		data, err := fetcher.Fetch(context.Background(), server.URL+"/ok.ts")
		require.NoError(t, err)
		assert.Equal(t, "segment-bytes", string(data))
	})

	t.Run("fetch to writer", func(t *testing.T) {
		fetcher := NewHTTPFetcher(nil, nil)
		defer fetcher.Close()

		var buf bytes.Buffer
		require.NoError(t, fetcher.FetchTo(context.Background(), server.URL+"/ok.ts", &buf))
		assert.Equal(t, "segment-bytes", buf.String())
	})

	t.Run("non-success status is a fetch error", func(t *testing.T) {
		fetcher := NewHTTPFetcher(nil, nil)
		defer fetcher.Close()

		_, err := fetcher.Fetch(context.Background(), server.URL+"/missing.ts")
		require.Error(t, err)
		assert.True(t, common.IsCode(err, common.ErrCodeFetch))
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("custom headers are sent", func(t *testing.T) {
		config := DefaultConfig()
		config.Headers = map[string]string{"X-Token": "secret"}
		config.RateLimit = 100
		fetcher := NewHTTPFetcher(config, nil)
		defer fetcher.Close()

		req, err := http.NewRequest(http.MethodGet, server.URL+"/ok.ts", nil)
		require.NoError(t, err)
		resp, err := fetcher.client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "secret", resp.Header.Get("X-Seen-Token"))
	})

	t.Run("cancelled context", func(t *testing.T) {
		fetcher := NewHTTPFetcher(nil, nil)
		defer fetcher.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := fetcher.Fetch(ctx, server.URL+"/ok.ts")
		assert.Error(t, err)
	})
}

func TestFunc(t *testing.T) {
	f := Func(func(ctx context.Context, url string) ([]byte, error) {
		return []byte(url), nil
	})

	data, err := f.Fetch(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestLoadHeaders(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		headers, err := LoadHeaders("")
		require.NoError(t, err)
		assert.Nil(t, headers)
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "headers.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"Referer":"https://example.com"}`), 0644))

		headers, err := LoadHeaders(path)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", headers["Referer"])
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "headers.json")
		require.NoError(t, os.WriteFile(path, []byte(`not json`), 0644))

		_, err := LoadHeaders(path)
		assert.Error(t, err)
	})
}
