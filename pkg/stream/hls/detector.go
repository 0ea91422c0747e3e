package hls

import (
	"net/url"
	"strings"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
)

// DetectFromURL matches the URL with common HLS patterns
func DetectFromURL(streamURL string) common.StreamType {
	if !common.IsValidURL(streamURL) {
		return common.StreamTypeUnsupported
	}

	u, err := url.Parse(strings.TrimSpace(streamURL))
	if err != nil {
		return common.StreamTypeUnsupported
	}

	path := strings.ToLower(u.Path)

	if strings.HasSuffix(path, ".m3u8") ||
		strings.HasSuffix(path, ".m3u") ||
		strings.Contains(u.RawQuery, "m3u8") {
		return common.StreamTypeHLS
	}
	return common.StreamTypeUnsupported
}

// parseAttributes parses M3U8 attribute strings like 'METHOD=AES-128,URI="key.bin",IV=0x00'.
// Commas inside quoted values do not split.
func parseAttributes(attrString string) map[string]string {
	attrs := make(map[string]string)

	var parts []string
	var current strings.Builder
	inQuotes := false

	for _, char := range attrString {
		switch char {
		case '"':
			inQuotes = !inQuotes
			current.WriteRune(char)
		case ',':
			if inQuotes {
				current.WriteRune(char)
			} else {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 {
			attrs[strings.ToUpper(strings.TrimSpace(kv[0]))] = common.CleanAttributeValue(kv[1])
		}
	}

	return attrs
}
