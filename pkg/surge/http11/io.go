package http11

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"

	"github.com/yourusername/surge/pkg/surge/memory"
	"github.com/yourusername/surge/pkg/surge/socket"
)

// ParseStatus is the outcome of feeding accumulated bytes to the parser.
type ParseStatus int

const (
	// StatusBusy means the header terminator has not arrived yet.
	StatusBusy ParseStatus = iota

	// StatusReady means a complete request is parsed and the connection
	// can be handed to a worker.
	StatusReady

	// StatusClose means the connection must be torn down, either because
	// the request is malformed or the peer went away.
	StatusClose
)

// Handler processes one parsed request. It runs on a worker goroutine and
// writes the response through the IO it receives.
type Handler func(req *RequestInfo, io *IO)

// IO is the per-connection state machine. The dispatcher owns it while
// bytes accumulate; ownership moves to a worker for the handler call and
// returns on rearm. The deadline is the only field touched from both
// sides, through atomic loads and stores.
type IO struct {
	settings *Settings

	fd       int
	sockAddr string

	// Monotonic ms timestamps. socketStart caps the connection lifetime
	// against KeepAliveTime; timeoutAt drives the dispatcher's poll
	// timeout and is refreshed by every read and write.
	socketStart int64
	timeoutAt   atomic.Int64

	incoming struct {
		buf   []byte
		pos   int
		intro []byte
		extra []byte
	}

	// Request describes the current parsed request. Valid between
	// ParseRequest returning StatusReady and the next Rearm.
	Request RequestInfo

	ready    bool
	parseErr error

	response struct {
		headers    []KeyValue
		finalizers []func()
		started    bool
	}

	scratch *memory.Scratch
}

// NewIO creates a parked connection state machine. Init attaches it to an
// accepted socket.
func NewIO(settings *Settings) *IO {
	if settings == nil {
		settings = DefaultSettings()
	}

	client := &IO{
		settings: settings,
		fd:       -1,
		scratch:  memory.NewScratch(0),
	}
	client.Request.reset()

	return client
}

// Init attaches the state machine to a freshly accepted descriptor.
func (c *IO) Init(fd int, start int64, sa unix.Sockaddr) {
	c.fd = fd
	c.sockAddr = socket.AddrString(sa)
	c.socketStart = start
	c.timeoutAt.Store(start + c.settings.IdleTimeout.Milliseconds())
}

// Fd returns the attached descriptor, or -1 when parked.
func (c *IO) Fd() int {
	return c.fd
}

// SocketStart returns the accept timestamp on the monotonic ms clock.
func (c *IO) SocketStart() int64 {
	return c.socketStart
}

// Deadline returns the current inactivity deadline (monotonic ms).
func (c *IO) Deadline() int64 {
	return c.timeoutAt.Load()
}

// IsBusy reports whether a request is mid-flight: bytes have been
// received or a parsed request is being handled. The dispatcher logs
// unexpected closes only for busy connections.
func (c *IO) IsBusy() bool {
	return len(c.incoming.buf) > 0 || c.ready
}

// ParseError returns the reason the last ParseRequest yielded StatusClose,
// or nil for a clean peer close.
func (c *IO) ParseError() error {
	return c.parseErr
}

// Allocator exposes the request-scoped scratch region to handlers.
// Everything allocated from it dies at the next keep-alive rearm.
func (c *IO) Allocator() *memory.Scratch {
	return c.scratch
}

// ReadBuffer returns spare buffer capacity for a read syscall, growing
// the buffer by readChunk when exhausted. CommitRead makes received
// bytes visible to the parser.
func (c *IO) ReadBuffer() []byte {
	buf := c.incoming.buf

	if cap(buf)-len(buf) < readChunk {
		grown := make([]byte, len(buf), cap(buf)+readChunk)
		copy(grown, buf)
		c.incoming.buf = grown
		buf = grown
	}

	return buf[len(buf):cap(buf)]
}

// CommitRead appends n received bytes and refreshes the idle deadline.
func (c *IO) CommitRead(n int) {
	c.incoming.buf = c.incoming.buf[:len(c.incoming.buf)+n]
	c.timeoutAt.Store(MonotonicNow() + c.settings.IdleTimeout.Milliseconds())
}

// InitAddress resolves the client address according to the configured
// mode. Called once per request after a successful parse; failure means
// the request must be answered with 400.
func (c *IO) InitAddress() error {
	switch c.settings.AddrMode {
	case AddrSocket:
		c.Request.ClientAddr = c.sockAddr

	case AddrXForwardedFor:
		str := c.Request.GetHeaderValue("X-Forwarded-For")
		if str == "" {
			c.settings.logger().Warn("X-Forwarded-For header is missing but is required by the configuration")
			return ErrMissingAddress
		}

		if comma := strings.IndexByte(str, ','); comma >= 0 {
			str = str[:comma]
		}
		str = strings.TrimSpace(str)

		if str == "" {
			return ErrMissingAddress
		}
		c.Request.ClientAddr = c.scratch.DupString(str)

	case AddrXRealIP:
		str := strings.TrimSpace(c.Request.GetHeaderValue("X-Real-IP"))
		if str == "" {
			c.settings.logger().Warn("X-Real-IP header is missing but is required by the configuration")
			return ErrMissingAddress
		}
		c.Request.ClientAddr = c.scratch.DupString(str)
	}

	return nil
}

// Rearm recycles the connection after a handler returns, running
// finalizers and moving residual bytes to the front of the parse buffer.
// It reports whether the connection may serve another request; start < 0
// forces a terminal rearm (close path).
func (c *IO) Rearm(start int64) bool {
	keepalive := c.Request.KeepAlive && start >= 0

	c.finalize()

	c.response.headers = c.response.headers[:0]
	c.response.started = false

	c.scratch.Reset()

	// Residual bytes past the previous terminator may already hold the
	// next pipelined request
	extra := c.incoming.extra
	c.incoming.buf = c.incoming.buf[:copy(c.incoming.buf[:cap(c.incoming.buf)], extra)]
	c.incoming.pos = 0
	c.incoming.intro = nil
	c.incoming.extra = nil

	c.Request.reset()
	c.ready = false
	c.parseErr = nil

	if keepalive {
		c.timeoutAt.Store(start + c.settings.IdleTimeout.Milliseconds())
	}

	return keepalive
}

// Close detaches and closes the descriptor, running any pending
// finalizers first.
func (c *IO) Close() {
	c.finalize()

	socket.Close(c.fd)
	c.fd = -1
}

func (c *IO) finalize() {
	finalizers := c.response.finalizers
	c.response.finalizers = nil

	for _, fn := range finalizers {
		fn()
	}
}

// AddFinalizer registers fn to run exactly once when the request is
// recycled or the connection closes, whichever comes first.
func (c *IO) AddFinalizer(fn func()) {
	c.response.finalizers = append(c.response.finalizers, fn)
}

// AddHeader appends a response header. Duplicates are allowed; both
// strings are copied into the request-scoped scratch region.
func (c *IO) AddHeader(key, value string) {
	c.response.headers = append(c.response.headers, KeyValue{
		Key:   c.scratch.DupString(key),
		Value: c.scratch.DupString(value),
	})
}

// AddEncodingHeader emits the Content-Encoding header for a coding.
// Identity emits nothing.
func (c *IO) AddEncodingHeader(encoding Encoding) {
	if encoding != Identity {
		c.AddHeader("Content-Encoding", encoding.String())
	}
}

// AddCookieHeader emits a Set-Cookie header. A nil-equivalent empty value
// deletes the cookie through Max-Age=0. SameSite is always Strict.
func (c *IO) AddCookieHeader(path, name, value string, httpOnly bool) {
	var cookie string
	if value != "" {
		cookie = name + "=" + value + "; Path=" + path + ";"
	} else {
		cookie = name + "=; Path=" + path + "; Max-Age=0;"
	}

	cookie += " SameSite=Strict;"
	if httpOnly {
		cookie += " HttpOnly;"
	}

	c.AddHeader("Set-Cookie", cookie)
}

// AddCachingHeaders emits Cache-Control and, when etag is set, ETag.
// maxAge is in milliseconds; zero means no-store.
func (c *IO) AddCachingHeaders(maxAge int64, etag string) {
	if maxAge > 0 || etag != "" {
		if maxAge > 0 {
			c.AddHeader("Cache-Control", "max-age="+strconv.FormatInt(maxAge/1000, 10))
		} else {
			c.AddHeader("Cache-Control", "no-store")
		}
		if etag != "" {
			c.AddHeader("ETag", etag)
		}
	} else {
		c.AddHeader("Cache-Control", "no-store")
	}
}

// NegotiateEncoding picks a response coding from the request's
// Accept-Encoding header. Preferred codings win in their given order;
// otherwise the strongest acceptable coding is used. When the client
// rejects everything a 406 is sent and ok is false.
func (c *IO) NegotiateEncoding(preferred ...Encoding) (Encoding, bool) {
	acceptable := ParseAcceptableEncodings(c.Request.GetHeaderValue("Accept-Encoding"))

	encoding, ok := negotiate(acceptable, preferred...)
	if !ok {
		c.SendError(406, "")
		return Identity, false
	}

	return encoding, true
}

// prepareResponse assembles the status line and header block. The caller
// must return the buffer to introPool after writing it.
func (c *IO) prepareResponse(status int, encoding Encoding, length int64) *bytebufferpool.ByteBuffer {
	intro := introPool.Get()

	if c.Request.Version == 11 {
		intro.B = append(intro.B, "HTTP/1.1 "...)
	} else {
		intro.B = append(intro.B, "HTTP/1.0 "...)
	}
	intro.B = strconv.AppendInt(intro.B, int64(status), 10)
	intro.B = append(intro.B, ' ')
	intro.B = append(intro.B, StatusText(status)...)
	intro.B = append(intro.B, '\r', '\n')

	if c.Request.KeepAlive {
		intro.B = append(intro.B, "Connection: keep-alive\r\nKeep-Alive: timeout="...)
		intro.B = strconv.AppendInt(intro.B, int64(c.settings.KeepAliveTime.Seconds()), 10)
		intro.B = append(intro.B, ", max="...)
		intro.B = strconv.AppendInt(intro.B, keepAliveMax, 10)
		intro.B = append(intro.B, '\r', '\n')
	} else {
		intro.B = append(intro.B, "Connection: close\r\n"...)
	}

	for _, header := range c.response.headers {
		intro.B = append(intro.B, header.Key...)
		intro.B = append(intro.B, ':', ' ')
		intro.B = append(intro.B, header.Value...)
		intro.B = append(intro.B, '\r', '\n')
	}

	if encoding != Identity {
		intro.B = append(intro.B, "Content-Encoding: "...)
		intro.B = append(intro.B, encoding.String()...)
		intro.B = append(intro.B, '\r', '\n')
	}

	if length >= 0 {
		intro.B = append(intro.B, "Content-Length: "...)
		intro.B = strconv.AppendInt(intro.B, length, 10)
		intro.B = append(intro.B, "\r\n\r\n"...)
	} else {
		intro.B = append(intro.B, "Transfer-Encoding: chunked\r\n\r\n"...)
	}

	return intro
}

var introPool bytebufferpool.Pool

// writeDirect pushes bytes straight to the kernel socket, refreshing the
// send deadline. A failed write clears keep-alive; disconnect errors are
// not logged.
func (c *IO) writeDirect(data []byte) error {
	if err := socket.WriteAll(c.fd, data); err != nil {
		if !socket.IsDisconnect(err) {
			c.settings.logger().WithField("error", err).Warn("Failed to send to client")
		}

		c.Request.KeepAlive = false
		return ErrWriteFailed
	}

	c.timeoutAt.Store(MonotonicNow() + c.settings.SendTimeout.Milliseconds())
	return nil
}

type directWriter struct {
	io *IO
}

func (w directWriter) Write(p []byte) (int, error) {
	if err := w.io.writeDirect(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// responseWriter is the stream handed out by OpenForWrite. It feeds the
// compressor (if any), which feeds either direct or chunked framing.
type responseWriter struct {
	io      *IO
	encoder io.WriteCloser
	chunked *chunkedWriter
	discard bool
	closed  bool
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if w.discard {
		return len(p), nil
	}
	return w.encoder.Write(p)
}

// Close finishes the body: flushes the compressor, emits the chunked
// terminator and uncorks the socket.
func (w *responseWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var err error
	if !w.discard {
		err = w.encoder.Close()
		if w.chunked != nil {
			if cerr := w.chunked.Close(); err == nil {
				err = cerr
			}
		}
	}

	socket.Push(w.io.fd)

	if err != nil {
		w.io.Request.KeepAlive = false
	}
	return err
}

// OpenForWrite starts the response: status line and headers go out
// immediately, the returned stream carries the body. A negative length
// selects chunked transfer; the body is then passed through the given
// coding. With a non-negative length the body bytes are sent verbatim
// and must already match the declared coding.
//
// For HEAD requests the headers (including Content-Length) are sent but
// every body byte is discarded.
func (c *IO) OpenForWrite(status int, encoding Encoding, length int64) (io.WriteCloser, error) {
	if c.response.started {
		return nil, ErrResponseSent
	}
	c.response.started = true

	intro := c.prepareResponse(status, encoding, length)
	err := c.writeDirect(intro.B)
	introPool.Put(intro)

	if err != nil {
		return nil, err
	}

	w := &responseWriter{io: c}

	if c.Request.HeadersOnly {
		w.discard = true
		return w, nil
	}

	if length >= 0 {
		w.encoder = nopWriteCloser{directWriter{c}}
		return w, nil
	}

	w.chunked = &chunkedWriter{io: c}
	w.encoder, err = newEncoder(w.chunked, encoding)
	if err != nil {
		return nil, err
	}

	return w, nil
}

// Send writes a complete response. The body callback receives the
// response stream; returning an error clears keep-alive and abandons the
// connection after the response.
func (c *IO) Send(status int, encoding Encoding, length int64, body func(w io.Writer) error) {
	w, err := c.OpenForWrite(status, encoding, length)
	if err != nil {
		if err != ErrWriteFailed {
			c.settings.logger().WithField("error", err).Error("Cannot send response")
		}
		return
	}

	if body != nil {
		if err := body(w); err != nil {
			c.Request.KeepAlive = false
		}
	}

	_ = w.Close()
}

// SendEmpty sends a bodyless response with Content-Length 0.
func (c *IO) SendEmpty(status int) {
	c.Send(status, Identity, 0, nil)
}

// SendText sends a text body with the given mime type, which defaults to
// text/plain.
func (c *IO) SendText(status int, text string, mimetype string) {
	if mimetype == "" {
		mimetype = "text/plain"
	}
	c.AddHeader("Content-Type", mimetype)

	c.Send(status, Identity, int64(len(text)), func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

// SendBinary sends a binary body; mimetype may be empty.
func (c *IO) SendBinary(status int, data []byte, mimetype string) {
	if mimetype != "" {
		c.AddHeader("Content-Type", mimetype)
	}

	c.Send(status, Identity, int64(len(data)), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// SendError sends a plain-text error body of the form
// "Error <code>: <reason>\n<details>".
func (c *IO) SendError(status int, details string) {
	text := fmt.Sprintf("Error %d: %s\n%s", status, StatusText(status), details)
	c.SendText(status, text, "")
}

// SendAsset serves a possibly pre-compressed body, negotiating the
// response coding against the client. When the negotiated coding matches
// srcEncoding the bytes ship verbatim; otherwise the asset is transcoded
// on the fly.
func (c *IO) SendAsset(status int, data []byte, mimetype string, srcEncoding Encoding) {
	encoding, ok := c.NegotiateEncoding(srcEncoding, Identity)
	if !ok {
		return
	}

	if mimetype != "" {
		c.AddHeader("Content-Type", mimetype)
	}

	if encoding == srcEncoding {
		c.AddEncodingHeader(encoding)
		c.Send(status, Identity, int64(len(data)), func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		})
		return
	}

	c.Send(status, encoding, -1, func(w io.Writer) error {
		src, err := newDecoder(bytes.NewReader(data), srcEncoding)
		if err != nil {
			return err
		}

		_, err = io.Copy(w, src)
		return err
	})
}

// SendFile transmits an open file as the response body with zero-copy
// sendfile where the platform has it. The descriptor is closed before
// returning. A negative length is resolved with fstat.
func (c *IO) SendFile(status int, fd int, length int64) {
	defer socket.Close(fd)

	if c.response.started {
		c.settings.logger().Error("Cannot send file after response was started")
		return
	}

	if length < 0 {
		var stat unix.Stat_t
		if err := unix.Fstat(fd, &stat); err != nil {
			c.settings.logger().WithField("error", err).Error("Cannot get file size")
			c.Request.KeepAlive = false
			return
		}
		length = stat.Size
	}

	c.response.started = true

	intro := c.prepareResponse(status, Identity, length)
	err := c.writeDirect(intro.B)
	introPool.Put(intro)

	if err != nil {
		return
	}

	defer socket.Push(c.fd)

	if c.Request.HeadersOnly {
		return
	}

	var offset int64
	sent, err := socket.SendFile(c.fd, fd, &offset, length)

	if err != nil {
		if !socket.IsDisconnect(err) {
			c.settings.logger().WithField("error", err).Warn("Failed to send file")
		}
		c.Request.KeepAlive = false
		return
	}
	if sent < length {
		c.settings.logger().Error("Truncated file sent")
		c.Request.KeepAlive = false
		return
	}

	c.timeoutAt.Store(MonotonicNow() + c.settings.SendTimeout.Milliseconds())
}

// SendFilePath opens a regular file and transmits it as the response
// body. Directories and special files are answered with 404.
func (c *IO) SendFilePath(status int, path string, mimetype string) bool {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		c.SendError(404, "")
		return false
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil || stat.Mode&unix.S_IFMT != unix.S_IFREG {
		socket.Close(fd)
		c.settings.logger().WithField("path", path).Error("Not a regular file")
		c.SendError(404, "")
		return false
	}

	if mimetype != "" {
		c.AddHeader("Content-Type", mimetype)
	}

	c.SendFile(status, fd, stat.Size)
	return true
}

// OpenForRead returns the request body stream. Only identity bodies with
// a Content-Length are supported; a declared length beyond maxLen fails
// with ErrBodyTooLarge so the caller can answer 413.
func (c *IO) OpenForRead(maxLen int64) (io.Reader, error) {
	lengthStr := c.Request.GetHeaderValue("Content-Length")
	if lengthStr == "" {
		return &bodyReader{io: c}, nil
	}

	length, err := strconv.ParseInt(lengthStr, 10, 64)
	if err != nil || length < 0 {
		return nil, ErrMalformedRequest
	}
	if maxLen >= 0 && length > maxLen {
		return nil, ErrBodyTooLarge
	}

	return &bodyReader{io: c, remaining: length}, nil
}

// bodyReader drains body bytes: first the residue read together with the
// headers, then blocking reads from the socket. Reads refresh the idle
// deadline so a slow body does not trip the dispatcher's reaper.
type bodyReader struct {
	io        *IO
	remaining int64
}

func (r *bodyReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}

	c := r.io

	if len(c.incoming.extra) > 0 {
		n := copy(p, c.incoming.extra)
		c.incoming.extra = c.incoming.extra[n:]
		r.remaining -= int64(n)
		return n, nil
	}

	n, err := socket.Read(c.fd, p)
	if err != nil {
		c.Request.KeepAlive = false
		return n, err
	}
	if n == 0 {
		c.Request.KeepAlive = false
		return 0, io.ErrUnexpectedEOF
	}

	c.timeoutAt.Store(MonotonicNow() + c.settings.IdleTimeout.Milliseconds())
	r.remaining -= int64(n)

	return n, nil
}
