package merge

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/hls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapReader map[string][]byte

func (m mapReader) Read(segmentURL string) ([]byte, error) {
	data, ok := m[segmentURL]
	if !ok {
		return nil, common.NewIOError(segmentURL, "failed to read cached segment", os.ErrNotExist)
	}
	return data, nil
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestMergeToOrder(t *testing.T) {
	playlist := &hls.Playlist{SegmentURLs: []string{"c.ts", "a.ts", "b.ts", "a.ts"}}
	reader := mapReader{
		"a.ts": []byte("AA"),
		"b.ts": []byte("BBB"),
		"c.ts": []byte("C"),
	}

	var buf bytes.Buffer
	n, err := NewMerger(nil).MergeTo(context.Background(), playlist, reader, nil, &buf)
	require.NoError(t, err)

	assert.Equal(t, "CAABBBAA", buf.String())
	assert.Equal(t, int64(8), n)
}

func TestMergeDecrypts(t *testing.T) {
	key := bytes.Repeat([]byte{0x2b}, 16)
	iv := bytes.Repeat([]byte{0x01}, 16)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	encrypt := func(p []byte) []byte {
		out := make([]byte, len(p))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, p)
		return out
	}

	first := bytes.Repeat([]byte("first segment..."), 2)
	second := bytes.Repeat([]byte("second segment.."), 3)

	playlist := &hls.Playlist{SegmentURLs: []string{"1.ts", "2.ts"}}
	reader := mapReader{"1.ts": encrypt(first), "2.ts": encrypt(second)}

	decoder, err := hls.NewAESDecoder(key, iv)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.ts")
	n, err := NewMerger(nil).Merge(context.Background(), playlist, reader, decoder, out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, first...), second...), data)
	assert.Equal(t, int64(len(data)), n)
}

func TestMergeErrors(t *testing.T) {
	t.Run("missing segment", func(t *testing.T) {
		playlist := &hls.Playlist{SegmentURLs: []string{"a.ts", "missing.ts"}}
		_, err := NewMerger(nil).MergeTo(context.Background(), playlist, mapReader{"a.ts": []byte("A")}, nil, &bytes.Buffer{})
		require.Error(t, err)
		assert.True(t, common.IsCode(err, common.ErrCodeIO))
	})

	t.Run("undecodable segment leaves partial output", func(t *testing.T) {
		decoder, err := hls.NewAESDecoder(bytes.Repeat([]byte{1}, 16), bytes.Repeat([]byte{2}, 16))
		require.NoError(t, err)

		playlist := &hls.Playlist{SegmentURLs: []string{"a.ts", "b.ts"}}
		reader := mapReader{"a.ts": make([]byte, 16), "b.ts": make([]byte, 15)}

		out := filepath.Join(t.TempDir(), "out.ts")
		n, err := NewMerger(nil).Merge(context.Background(), playlist, reader, decoder, out)
		require.Error(t, err)
		assert.True(t, common.IsCode(err, common.ErrCodeCrypto))
		assert.Equal(t, int64(16), n)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Len(t, data, 16)
	})

	t.Run("write failure", func(t *testing.T) {
		playlist := &hls.Playlist{SegmentURLs: []string{"a.ts"}}
		_, err := NewMerger(nil).MergeTo(context.Background(), playlist, mapReader{"a.ts": []byte("A")}, nil, failingWriter{})
		assert.True(t, common.IsCode(err, common.ErrCodeIO))
	})

	t.Run("output directory missing", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "no", "such", "dir", "out.ts")
		_, err := NewMerger(nil).Merge(context.Background(), &hls.Playlist{}, mapReader{}, nil, out)
		assert.True(t, common.IsCode(err, common.ErrCodeIO))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		playlist := &hls.Playlist{SegmentURLs: []string{"a.ts"}}
		_, err := NewMerger(nil).MergeTo(ctx, playlist, mapReader{"a.ts": []byte("A")}, nil, &bytes.Buffer{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMergeEmptyPlaylist(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.ts")
	n, err := NewMerger(nil).Merge(context.Background(), &hls.Playlist{}, mapReader{}, nil, out)
	require.NoError(t, err)
	assert.Zero(t, n)

	fi, err := os.Stat(out)
	require.NoError(t, err)
	assert.Zero(t, fi.Size())
}
