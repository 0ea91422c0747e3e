package common

import (
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// IsValidURL performs basic URL validation
func IsValidURL(url string) bool {
	url = strings.TrimSpace(url)
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// FormatDuration formats duration for display
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.String()
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return strconv.Itoa(seconds) + "s"
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60

	if remainingSeconds == 0 {
		return strconv.Itoa(minutes) + "m"
	}

	return strconv.Itoa(minutes) + "m" + strconv.Itoa(remainingSeconds) + "s"
}

// CleanAttributeValue strips surrounding quotes and whitespace from a tag attribute value
func CleanAttributeValue(value string) string {
	value = strings.TrimSpace(value)
	return strings.TrimSpace(strings.Trim(value, "\"'"))
}

// LastPathSegment returns the final path component of a URL, ignoring any query or fragment.
func LastPathSegment(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// HasPathSuffix reports whether the path part of a URL reference ends with suffix
func HasPathSuffix(ref, suffix string) bool {
	p := ref
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.HasSuffix(strings.ToLower(p), suffix)
}
