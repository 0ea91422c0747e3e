package hls

import (
	"context"
	"fmt"
	"sync"
)

const testBaseURL = "https://cdn.example.com/vod/show"

// Playlists used across the package tests
var (
	testKey = []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	testIV  = []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f}

	testMediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:10.0,
seg0.ts
#EXTINF:10.0,
seg1.ts
#EXTINF:10.0,
seg2.ts
#EXT-X-ENDLIST
`

	testMasterPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=852x480
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2560000,RESOLUTION=1280x720
high/index.m3u8
`

	testEncryptedPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-KEY:METHOD=AES-128,URI="key.bin",IV=0x000102030405060708090A0B0C0D0E0F
#EXTINF:10.0,
enc0.ts
#EXTINF:10.0,
enc1.ts
#EXT-X-ENDLIST
`
)

// fakeFetcher serves fixed bodies and counts requests per URL
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  map[string]int
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	f := &fakeFetcher{
		bodies: make(map[string][]byte),
		calls:  make(map[string]int),
	}
	for k, v := range bodies {
		f.bodies[k] = []byte(v)
	}
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("HTTP 404: %s", url)
	}
	return body, nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}
