package common

// StreamType represents the type of a stream resource
type StreamType string

const (
	StreamTypeHLS         StreamType = "hls"
	StreamTypeUnsupported StreamType = "unsupported"
)

// StreamMetadata contains metadata and info about the stream
type StreamMetadata struct {
	URL      string     `json:"url" yaml:"url"`
	Type     StreamType `json:"type" yaml:"type"`
	Segments int        `json:"segments" yaml:"segments"`
	Variants int        `json:"variants" yaml:"variants"`
	Method   string     `json:"encryption" yaml:"encryption"`
}
