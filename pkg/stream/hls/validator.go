package hls

import (
	"net/url"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
)

// ValidateURL checks that a root playlist URL is absolute http(s) before any fetch
func ValidateURL(streamURL string) error {
	parsedURL, err := url.Parse(streamURL)
	if err != nil {
		return common.NewStreamError(common.StreamTypeHLS, streamURL,
			common.ErrCodeInvalidFormat, "invalid URL format", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return common.NewStreamError(common.StreamTypeHLS, streamURL,
			common.ErrCodeUnsupported, "unsupported URL scheme", nil)
	}

	if parsedURL.Host == "" {
		return common.NewStreamError(common.StreamTypeHLS, streamURL,
			common.ErrCodeInvalidFormat, "URL has no host", nil)
	}

	return nil
}
