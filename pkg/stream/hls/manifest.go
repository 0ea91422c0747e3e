package hls

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the playlist record kept in the cache directory
const ManifestFile = "playlist.yaml"

// Manifest records what a run resolved, so a cache directory can be matched to its source
type Manifest struct {
	URL         string    `yaml:"url"`
	ParsedAt    time.Time `yaml:"parsed_at"`
	Method      Method    `yaml:"method"`
	KeyURI      string    `yaml:"key_uri,omitempty"`
	IV          string    `yaml:"iv,omitempty"`
	VariantURLs []string  `yaml:"variants,omitempty"`
	SegmentURLs []string  `yaml:"segments"`
}

// NewManifest builds a manifest from a parsed playlist. Key bytes are never recorded.
func NewManifest(p *Playlist) *Manifest {
	m := &Manifest{
		URL:         p.URL,
		ParsedAt:    time.Now().UTC(),
		Method:      MethodNone,
		VariantURLs: p.VariantURLs,
		SegmentURLs: p.SegmentURLs,
	}
	if p.Encryption != nil {
		m.Method = p.Encryption.Method
		m.KeyURI = p.Encryption.KeyURI
		m.IV = p.Encryption.IVHex()
	}
	return m
}

// WriteManifest writes the manifest for p into dir
func WriteManifest(dir string, p *Playlist) error {
	data, err := yaml.Marshal(NewManifest(p))
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads a manifest previously written into dir
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}
