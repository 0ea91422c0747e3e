package hls

import (
	"bytes"
	"fmt"

	"github.com/grafov/m3u8"
)

// Structure describes the root playlist as a conforming HLS document
type Structure struct {
	Type           string   `json:"type" yaml:"type"`
	Version        uint8    `json:"version" yaml:"version"`
	TargetDuration float64  `json:"target_duration,omitempty" yaml:"target_duration,omitempty"`
	MediaSequence  uint64   `json:"media_sequence,omitempty" yaml:"media_sequence,omitempty"`
	Segments       int      `json:"segments,omitempty" yaml:"segments,omitempty"`
	Closed         bool     `json:"closed,omitempty" yaml:"closed,omitempty"`
	Bandwidths     []uint32 `json:"bandwidths,omitempty" yaml:"bandwidths,omitempty"`
}

// InspectStructure decodes playlist text with a full HLS decoder. It is purely
// informational; segment resolution never depends on it.
func InspectStructure(source []byte) (*Structure, error) {
	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(source), false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode playlist structure: %w", err)
	}

	switch listType {
	case m3u8.MASTER:
		master := p.(*m3u8.MasterPlaylist)
		s := &Structure{
			Type:    "master",
			Version: master.Version(),
		}
		for _, v := range master.Variants {
			if v != nil {
				s.Bandwidths = append(s.Bandwidths, v.Bandwidth)
			}
		}
		return s, nil
	case m3u8.MEDIA:
		media := p.(*m3u8.MediaPlaylist)
		return &Structure{
			Type:           "media",
			Version:        media.Version(),
			TargetDuration: media.TargetDuration,
			MediaSequence:  media.SeqNo,
			Segments:       int(media.Count()),
			Closed:         media.Closed,
		}, nil
	default:
		return nil, fmt.Errorf("unknown playlist type")
	}
}
