package http11

import "errors"

// Parse and response errors. Connection-level failures never escape the
// connection: the dispatcher maps them to a 4xx response or a silent close.
var (
	// ErrMalformedRequest indicates a request line or header block that
	// does not parse.
	ErrMalformedRequest = errors.New("http11: malformed request")

	// ErrRequestTooLarge indicates the header block exceeds MaxRequestSize.
	ErrRequestTooLarge = errors.New("http11: request too large")

	// ErrURLTooLong indicates the request target exceeds MaxURLLen.
	ErrURLTooLong = errors.New("http11: request URL too long")

	// ErrUnknownMethod indicates a method outside the supported set.
	ErrUnknownMethod = errors.New("http11: unknown request method")

	// ErrBadVersion indicates a protocol other than HTTP/1.0 or HTTP/1.1.
	ErrBadVersion = errors.New("http11: invalid HTTP version")

	// ErrTooManyHeaders indicates the header count exceeds MaxHeaders.
	ErrTooManyHeaders = errors.New("http11: too many request headers")

	// ErrTooManyCookies indicates the cookie count exceeds MaxCookies.
	ErrTooManyCookies = errors.New("http11: too many request cookies")

	// ErrMissingAddress indicates the configured client address header
	// (X-Forwarded-For or X-Real-IP) is absent.
	ErrMissingAddress = errors.New("http11: missing client address header")

	// ErrResponseSent indicates a second response on the same request.
	ErrResponseSent = errors.New("http11: response already sent")

	// ErrBodyTooLarge indicates a request body beyond the reader limit.
	ErrBodyTooLarge = errors.New("http11: request body too large")

	// ErrWriteFailed indicates the peer stopped accepting response bytes.
	ErrWriteFailed = errors.New("http11: write to client failed")

	// ErrRangeUnit indicates a Range unit other than bytes.
	ErrRangeUnit = errors.New("http11: unsupported range unit")

	// ErrRangeInvalid indicates an unparsable or out-of-bounds range.
	ErrRangeInvalid = errors.New("http11: invalid byte range")

	// ErrRangeOverlap indicates overlapping range fragments, refused
	// with 416 rather than merged.
	ErrRangeOverlap = errors.New("http11: overlapping byte ranges")

	// ErrChunkedEncoding indicates malformed chunk framing.
	ErrChunkedEncoding = errors.New("http11: chunked encoding error")
)
