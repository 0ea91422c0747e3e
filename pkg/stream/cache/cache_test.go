package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const segmentURL = "https://cdn.example.com/vod/seg001.ts"

// countingFetcher returns the URL as the body, or fails for URLs in fail
func countingFetcher(calls *atomic.Int64, fail map[string]bool) fetch.Fetcher {
	return fetch.Func(func(ctx context.Context, url string) ([]byte, error) {
		calls.Add(1)
		if fail[url] {
			return nil, errors.New("HTTP 500: Internal Server Error")
		}
		return []byte("payload:" + url), nil
	})
}

func TestEnsureIdempotent(t *testing.T) {
	var calls atomic.Int64
	c, err := New(t.TempDir(), countingFetcher(&calls, nil), nil, nil)
	require.NoError(t, err)

	require.NoError(t, c.Ensure(context.Background(), segmentURL))
	require.NoError(t, c.Ensure(context.Background(), segmentURL))

	assert.Equal(t, int64(1), calls.Load())
	assert.True(t, c.Has(segmentURL))

	data, err := c.Read(segmentURL)
	require.NoError(t, err)
	assert.Equal(t, "payload:"+segmentURL, string(data))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Fetches)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(len(data)), stats.BytesFetched)
}

func TestEnsureExistingEntrySkipsNetwork(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seg001.ts"), []byte("from a previous run"), 0644))

	var calls atomic.Int64
	c, err := New(dir, countingFetcher(&calls, nil), nil, nil)
	require.NoError(t, err)

	require.NoError(t, c.Ensure(context.Background(), segmentURL))
	assert.Zero(t, calls.Load())

	data, err := c.Read(segmentURL)
	require.NoError(t, err)
	assert.Equal(t, "from a previous run", string(data))
}

func TestEnsureFailureLeavesNoEntry(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int64
	c, err := New(dir, countingFetcher(&calls, map[string]bool{segmentURL: true}), nil, nil)
	require.NoError(t, err)

	err = c.Ensure(context.Background(), segmentURL)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.ErrCodeFetch))
	assert.False(t, c.Has(segmentURL))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A later attempt fetches again
	_ = c.Ensure(context.Background(), segmentURL)
	assert.Equal(t, int64(2), calls.Load())
}

func TestEnsureConcurrentSameKey(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})
	fetcher := fetch.Func(func(ctx context.Context, url string) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("shared"), nil
	})

	c, err := New(t.TempDir(), fetcher, nil, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Ensure(context.Background(), segmentURL)
		}()
	}
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), calls.Load())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Fetches)
	assert.Equal(t, int64(7), stats.Hits)

	data, err := c.Read(segmentURL)
	require.NoError(t, err)
	assert.Equal(t, "shared", string(data))
}

func TestEnsureWaitersCountAsHits(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fetcher := fetch.Func(func(ctx context.Context, url string) ([]byte, error) {
		once.Do(func() { close(started) })
		<-release
		return []byte("payload:" + url), nil
	})

	c, err := New(t.TempDir(), fetcher, nil, nil)
	require.NoError(t, err)

	urls := []string{
		"https://cdn.example.com/vod/a.ts",
		"https://cdn.example.com/vod/b.ts",
		"https://cdn.example.com/vod/a.ts",
		"https://cdn.example.com/vod/a.ts",
	}

	var wg sync.WaitGroup
	ensure := func(u string) {
		defer wg.Done()
		assert.NoError(t, c.Ensure(context.Background(), u))
	}

	wg.Add(1)
	go ensure(urls[0])
	<-started

	for _, u := range urls[1:] {
		wg.Add(1)
		go ensure(u)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Fetches)
	assert.Equal(t, int64(len(urls)), stats.Fetches+stats.Hits)
}

func TestReadMissing(t *testing.T) {
	c, err := New(t.TempDir(), fetch.Func(nil), nil, nil)
	require.NoError(t, err)

	_, err = c.Read(segmentURL)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.ErrCodeIO))
}

func TestKeyStrategies(t *testing.T) {
	a := "https://cdn.example.com/low/seg1.ts"
	b := "https://cdn.example.com/high/seg1.ts"

	t.Run("basename", func(t *testing.T) {
		c, err := New(t.TempDir(), fetch.Func(nil), nil, nil)
		require.NoError(t, err)

		assert.Equal(t, "seg1.ts", c.Key(a))
		assert.Equal(t, c.Key(a), c.Key(b))
		assert.Equal(t, "seg1.ts", c.Key(a+"?token=1"))
	})

	t.Run("hash", func(t *testing.T) {
		c, err := New(t.TempDir(), fetch.Func(nil), &Options{KeyStrategy: KeyHash, DirMode: 0755, FileMode: 0644}, nil)
		require.NoError(t, err)

		assert.NotEqual(t, c.Key(a), c.Key(b))
		assert.Equal(t, c.Key(a), c.Key(a))
		assert.Equal(t, ".ts", filepath.Ext(c.Key(a)))
	})

	t.Run("basename falls back to hash", func(t *testing.T) {
		c, err := New(t.TempDir(), fetch.Func(nil), nil, nil)
		require.NoError(t, err)

		key := c.Key("https://cdn.example.com/")
		assert.Len(t, key, 64)
		assert.Len(t, c.Key("https://cdn.example.com/.hidden.ts"), 64+len(".ts"))
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := New(t.TempDir(), fetch.Func(nil), &Options{KeyStrategy: "md5"}, nil)
		assert.Error(t, err)
	})
}

func TestPartialFilesAreNotEntries(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, fetch.Func(nil), nil, nil)
	require.NoError(t, err)

	partial := filepath.Join(dir, ".seg001.ts.1234"+partialSuffix)
	require.NoError(t, os.WriteFile(partial, []byte("half"), 0644))

	assert.False(t, c.Has(segmentURL))

	removed, err := c.CleanPartials()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = os.Stat(partial)
	assert.True(t, os.IsNotExist(err))
}
