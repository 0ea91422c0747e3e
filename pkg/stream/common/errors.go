package common

import "errors"

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// StreamError represents stream-related errors
type StreamError struct {
	Type    StreamType `json:"type"`
	URL     string     `json:"url"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Cause   error      `json:"-"`
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Stage names the pipeline stage an error code belongs to
func (e *StreamError) Stage() string {
	switch e.Code {
	case ErrCodeParse, ErrCodeInvalidFormat, ErrCodeUnsupported:
		return "parse"
	case ErrCodeFetch:
		return "fetch"
	case ErrCodeIO:
		return "storage"
	case ErrCodeCrypto:
		return "decrypt"
	default:
		return "stream"
	}
}

// Common error codes
const (
	ErrCodeParse         = "PARSE_FAILED"
	ErrCodeFetch         = "FETCH_FAILED"
	ErrCodeIO            = "IO_FAILED"
	ErrCodeCrypto        = "CRYPTO_FAILED"
	ErrCodeInvalidFormat = "INVALID_FORMAT"
	ErrCodeUnsupported   = "UNSUPPORTED_STREAM"
)

// NewStreamError creates a new stream error
func NewStreamError(streamType StreamType, url, code, message string, cause error) *StreamError {
	return &StreamError{
		Type:    streamType,
		URL:     url,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewParseError reports an unfetchable or malformed playlist or key resource
func NewParseError(url, message string, cause error) *StreamError {
	return NewStreamError(StreamTypeHLS, url, ErrCodeParse, message, cause)
}

// NewFetchError reports a failed transport call
func NewFetchError(url, message string, cause error) *StreamError {
	return NewStreamError(StreamTypeHLS, url, ErrCodeFetch, message, cause)
}

// NewIOError reports a local storage failure
func NewIOError(url, message string, cause error) *StreamError {
	return NewStreamError(StreamTypeHLS, url, ErrCodeIO, message, cause)
}

// NewCryptoError reports a segment that could not be decoded
func NewCryptoError(url, message string, cause error) *StreamError {
	return NewStreamError(StreamTypeHLS, url, ErrCodeCrypto, message, cause)
}

// ErrorCode returns the code of the outermost StreamError in the chain, or "".
func ErrorCode(err error) string {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err carries a StreamError with the given code
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}
