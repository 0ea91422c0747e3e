package hls

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/RyanBlaney/hls-fetch/pkg/stream/common"
	"github.com/RyanBlaney/hls-fetch/pkg/stream/fetch"
	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

const (
	tagKey = "#EXT-X-KEY:"

	attrMethod = "METHOD"
	attrURI    = "URI"
	attrIV     = "IV"

	variantSuffix = ".m3u8"
	segmentSuffix = ".ts"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parser resolves a root playlist into an ordered list of segment URLs
type Parser struct {
	fetcher fetch.Fetcher
	config  *ParserConfig
	logger  logging.Logger
}

// NewParser creates a parser that reads playlists and keys through fetcher
func NewParser(fetcher fetch.Fetcher, config *ParserConfig, logger logging.Logger) *Parser {
	if config == nil {
		config = DefaultConfig().Parser
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Parser{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// Parse parses rootURL with the default parser configuration
func Parse(ctx context.Context, rootURL string, fetcher fetch.Fetcher) (*Playlist, error) {
	return NewParser(fetcher, nil, nil).Parse(ctx, rootURL)
}

// Parse fetches the root playlist, collects its direct segments and EXT-X-KEY, then
// appends the segments of every referenced variant playlist in encounter order.
// Every reference, including those inside variants, resolves against the root's directory.
func (p *Parser) Parse(ctx context.Context, rootURL string) (*Playlist, error) {
	base, err := baseDirectory(rootURL)
	if err != nil {
		return nil, common.NewParseError(rootURL, "invalid playlist URL", err)
	}

	text, err := p.fetchText(ctx, rootURL)
	if err != nil {
		return nil, err
	}

	playlist := &Playlist{
		URL:         rootURL,
		BaseURL:     base.String(),
		VariantURLs: make([]string, 0),
		SegmentURLs: make([]string, 0),
		Encryption:  &EncryptionDescriptor{Method: MethodNone},
		Source:      []byte(text),
	}

	for _, line := range splitLines(text) {
		if strings.HasPrefix(line, "#") {
			if strings.HasPrefix(line, tagKey) {
				enc, err := p.parseKeyTag(ctx, line, base)
				if err != nil {
					return nil, err
				}
				playlist.Encryption = enc
			}
			continue
		}

		switch {
		case common.HasPathSuffix(line, variantSuffix):
			ref, err := resolveReference(base, line)
			if err != nil {
				return nil, err
			}
			playlist.VariantURLs = append(playlist.VariantURLs, ref)
		case common.HasPathSuffix(line, segmentSuffix):
			ref, err := resolveReference(base, line)
			if err != nil {
				return nil, err
			}
			playlist.SegmentURLs = append(playlist.SegmentURLs, ref)
		}
	}

	direct := len(playlist.SegmentURLs)

	if p.config.FollowVariants {
		for _, variantURL := range playlist.VariantURLs {
			segments, err := p.parseVariant(ctx, variantURL, base)
			if err != nil {
				return nil, err
			}
			playlist.SegmentURLs = append(playlist.SegmentURLs, segments...)
		}
	}

	p.logger.Debug("Parsed playlist", logging.Fields{
		"url":             rootURL,
		"direct_segments": direct,
		"variants":        len(playlist.VariantURLs),
		"segments":        len(playlist.SegmentURLs),
		"encryption":      string(playlist.Encryption.Method),
	})

	return playlist, nil
}

// parseVariant returns the segment references of one nested playlist
func (p *Parser) parseVariant(ctx context.Context, variantURL string, base *url.URL) ([]string, error) {
	text, err := p.fetchText(ctx, variantURL)
	if err != nil {
		return nil, err
	}

	segments := make([]string, 0)
	for _, line := range splitLines(text) {
		if strings.HasPrefix(line, "#") || !common.HasPathSuffix(line, segmentSuffix) {
			continue
		}
		ref, err := resolveReference(base, line)
		if err != nil {
			return nil, err
		}
		segments = append(segments, ref)
	}

	p.logger.Debug("Parsed variant playlist", logging.Fields{
		"url":      variantURL,
		"segments": len(segments),
	})

	return segments, nil
}

// parseKeyTag parses an EXT-X-KEY line and fetches the key it points to
func (p *Parser) parseKeyTag(ctx context.Context, line string, base *url.URL) (*EncryptionDescriptor, error) {
	attrs := parseAttributes(strings.TrimPrefix(line, tagKey))
	enc := &EncryptionDescriptor{Method: MethodNone}

	switch method := Method(strings.ToUpper(attrs[attrMethod])); method {
	case MethodAES128:
		enc.Method = MethodAES128
	case MethodNone, "":
	default:
		if p.config.StrictMethod {
			return nil, common.NewStreamError(common.StreamTypeHLS, "", common.ErrCodeUnsupported,
				fmt.Sprintf("unsupported encryption method %q", method), nil)
		}
		p.logger.Warn("Unsupported encryption method, treating segments as unencrypted", logging.Fields{
			"method": string(method),
		})
	}

	if uri := attrs[attrURI]; uri != "" {
		keyURL, err := resolveReference(base, uri)
		if err != nil {
			return nil, err
		}
		key, err := p.fetcher.Fetch(ctx, keyURL)
		if err != nil {
			return nil, common.NewParseError(keyURL, "failed to fetch encryption key", err)
		}
		enc.KeyURI = keyURL
		enc.Key = key
	}

	if iv, ok := attrs[attrIV]; ok {
		decoded, err := decodeIV(iv)
		if err != nil {
			return nil, common.NewParseError("", fmt.Sprintf("invalid IV %q", iv), err)
		}
		enc.IV = decoded
	}

	return enc, nil
}

// fetchText fetches a playlist resource and checks that it decodes as text
func (p *Parser) fetchText(ctx context.Context, playlistURL string) (string, error) {
	data, err := p.fetcher.Fetch(ctx, playlistURL)
	if err != nil {
		return "", common.NewParseError(playlistURL, "failed to fetch playlist", err)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", common.NewParseError(playlistURL, "playlist is not valid UTF-8 text", nil)
	}

	return string(data), nil
}

// baseDirectory returns the directory of a playlist URL, with a trailing slash
func baseDirectory(rootURL string) (*url.URL, error) {
	u, err := url.Parse(rootURL)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("playlist URL must be absolute")
	}
	return u.ResolveReference(&url.URL{Path: "./"}), nil
}

// resolveReference joins a playlist reference onto the base directory. Absolute
// references replace the base entirely.
func resolveReference(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", common.NewParseError(ref, "invalid playlist reference", err)
	}
	return base.ResolveReference(u).String(), nil
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func decodeIV(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if len(value) >= 2 && (value[:2] == "0x" || value[:2] == "0X") {
		value = value[2:]
	}
	return hex.DecodeString(value)
}
