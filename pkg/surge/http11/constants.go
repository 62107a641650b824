// Package http11 implements the per-connection HTTP/1.x state machine:
// incremental request parsing, the handler-facing IO surface, response
// assembly with compression and chunked framing, and keep-alive recycling.
//
// The package works on raw socket descriptors. The dispatcher feeds bytes
// into the state machine and hands ready requests to worker goroutines;
// handler writes go straight to the kernel socket with no intermediate
// response buffer beyond the status-line/header prelude.
package http11

// Method identifies the request method. HEAD is represented as Get with
// the HeadersOnly flag set on the request.
type Method uint8

const (
	Get Method = iota
	Post
	Put
	Patch
	Delete
	Options
)

var methodNames = [...]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// String returns the wire spelling of the method.
func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return "UNKNOWN"
}

// Encoding identifies a content coding. The numeric order matters: the
// negotiation tiebreaker picks the highest acceptable value when the
// preferred coding is rejected, so stronger codings rank higher.
type Encoding int8

const (
	Identity Encoding = iota
	Deflate
	Gzip
	Brotli
	Zstd
)

// String returns the Content-Encoding token for the coding.
func (e Encoding) String() string {
	switch e {
	case Identity:
		return "identity"
	case Deflate:
		return "deflate"
	case Gzip:
		return "gzip"
	case Brotli:
		return "br"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// AcceptSet is a bitmap over Encoding values as produced by
// ParseAcceptableEncodings.
type AcceptSet uint32

// Has reports whether the coding is acceptable.
func (s AcceptSet) Has(e Encoding) bool {
	return s&(1<<uint(e)) != 0
}

// Best returns the highest-ranked acceptable coding.
// Second result is false when the set is empty.
func (s AcceptSet) Best() (Encoding, bool) {
	for e := Zstd; e >= Identity; e-- {
		if s.Has(e) {
			return e, true
		}
	}
	return Identity, false
}

const allEncodings AcceptSet = 1<<uint(Identity) | 1<<uint(Deflate) |
	1<<uint(Gzip) | 1<<uint(Brotli) | 1<<uint(Zstd)

// Limits caps the structural size of one request.
type Limits struct {
	// MaxRequestSize bounds the request line plus header block in bytes.
	MaxRequestSize int

	// MaxURLLen bounds the request-target length.
	MaxURLLen int

	// MaxHeaders bounds the number of header lines.
	MaxHeaders int

	// MaxCookies bounds the number of cookie pairs.
	MaxCookies int
}

// DefaultLimits returns the caps used unless configuration overrides them.
func DefaultLimits() Limits {
	return Limits{
		MaxRequestSize: 40 * 1024,
		MaxURLLen:      20 * 1024,
		MaxHeaders:     64,
		MaxCookies:     64,
	}
}

// AddrMode selects how the client address attached to a request is derived.
type AddrMode int

const (
	// AddrSocket uses the accept-time peer address.
	AddrSocket AddrMode = iota

	// AddrXForwardedFor takes the first element of the X-Forwarded-For
	// header. The header is mandatory in this mode.
	AddrXForwardedFor

	// AddrXRealIP takes the X-Real-IP header value. The header is
	// mandatory in this mode.
	AddrXRealIP
)

// String returns the configuration-file spelling of the address mode.
func (m AddrMode) String() string {
	switch m {
	case AddrSocket:
		return "Socket"
	case AddrXForwardedFor:
		return "X-Forwarded-For"
	case AddrXRealIP:
		return "X-Real-IP"
	default:
		return "unknown"
	}
}

// Keep-alive advertisement on persistent responses.
const (
	keepAliveMax = 1000
)

// readChunk is the growth granularity of the incoming buffer.
const readChunk = 8 * 1024

// maxChunkPayload caps the payload carried by one chunk frame.
const maxChunkPayload = 0xFFFF
