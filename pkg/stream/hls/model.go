package hls

import (
	"encoding/hex"
	"fmt"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
)

// Method is the segment encryption method declared by EXT-X-KEY
type Method string

const (
	MethodNone   Method = "NONE"
	MethodAES128 Method = "AES-128"
)

// BlockSize is the AES block, key and IV length in bytes
const BlockSize = 16

// EncryptionDescriptor carries the parsed EXT-X-KEY attributes and the fetched key
type EncryptionDescriptor struct {
	Method Method `json:"method" yaml:"method"`
	KeyURI string `json:"key_uri,omitempty" yaml:"key_uri,omitempty"`
	Key    []byte `json:"-" yaml:"-"`
	IV     []byte `json:"-" yaml:"-"`
}

// IVHex returns the IV as 0x-prefixed hex, or "" when absent
func (e *EncryptionDescriptor) IVHex() string {
	if e == nil || len(e.IV) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(e.IV)
}

// Validate checks that an AES-128 descriptor has a usable key and IV. A missing or
// short key/IV is a configuration error for the whole run.
func (e *EncryptionDescriptor) Validate() error {
	if e == nil || e.Method != MethodAES128 {
		return nil
	}
	if len(e.Key) != BlockSize {
		return common.NewParseError(e.KeyURI,
			fmt.Sprintf("AES-128 requires a %d-byte key, got %d bytes", BlockSize, len(e.Key)), nil)
	}
	if len(e.IV) != BlockSize {
		return common.NewParseError(e.KeyURI,
			fmt.Sprintf("AES-128 requires a %d-byte IV, got %d bytes", BlockSize, len(e.IV)), nil)
	}
	return nil
}

// Playlist is the flattened result of parsing a root playlist
type Playlist struct {
	URL         string                `json:"url" yaml:"url"`
	BaseURL     string                `json:"base_url" yaml:"base_url"`
	VariantURLs []string              `json:"variants" yaml:"variants"`
	SegmentURLs []string              `json:"segments" yaml:"segments"`
	Encryption  *EncryptionDescriptor `json:"encryption" yaml:"encryption"`

	// Source is the raw root playlist text
	Source []byte `json:"-" yaml:"-"`
}

// IsEncrypted reports whether segments must be decrypted before merging
func (p *Playlist) IsEncrypted() bool {
	return p.Encryption != nil && p.Encryption.Method == MethodAES128
}

// Metadata summarizes the playlist for display
func (p *Playlist) Metadata() *common.StreamMetadata {
	method := MethodNone
	if p.Encryption != nil {
		method = p.Encryption.Method
	}
	return &common.StreamMetadata{
		URL:      p.URL,
		Type:     common.StreamTypeHLS,
		Segments: len(p.SegmentURLs),
		Variants: len(p.VariantURLs),
		Method:   string(method),
	}
}
