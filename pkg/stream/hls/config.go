package hls

// Config holds configuration for HLS processing
type Config struct {
	Parser *ParserConfig `json:"parser"`
}

// ParserConfig holds configuration for M3U8 parsing
type ParserConfig struct {
	// StrictMethod rejects an EXT-X-KEY whose METHOD is not recognized instead
	// of treating the stream as unencrypted.
	StrictMethod bool `json:"strict_method"`
	// FollowVariants fetches nested .m3u8 references and appends their segments.
	FollowVariants bool `json:"follow_variants"`
}

// DefaultConfig returns the default HLS configuration
func DefaultConfig() *Config {
	return &Config{
		Parser: &ParserConfig{
			StrictMethod:   false,
			FollowVariants: true,
		},
	}
}
