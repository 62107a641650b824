package http11

import (
	"strings"
	"testing"
)

func newTestIO() *IO {
	return NewIO(DefaultSettings())
}

// feed pushes bytes into the incoming buffer the way the dispatcher does
// and runs the parser.
func feed(c *IO, data string) ParseStatus {
	status := StatusBusy
	for len(data) > 0 {
		buf := c.ReadBuffer()
		n := copy(buf, data)
		data = data[n:]
		c.CommitRead(n)
		status = c.ParseRequest()
	}
	return status
}

func TestParseSimpleRequest(t *testing.T) {
	c := newTestIO()

	status := feed(c, "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n")
	if status != StatusReady {
		t.Fatalf("status = %v, want Ready", status)
	}

	req := &c.Request
	if req.Method != Get {
		t.Errorf("method = %v, want Get", req.Method)
	}
	if req.Path != "/index.html" {
		t.Errorf("path = %q", req.Path)
	}
	if req.Version != 11 {
		t.Errorf("version = %d, want 11", req.Version)
	}
	if !req.KeepAlive {
		t.Error("HTTP/1.1 must default to keep-alive")
	}
	if got := req.GetHeaderValue("Host"); got != "example.com" {
		t.Errorf("Host = %q", got)
	}
}

func TestParseByteAtATime(t *testing.T) {
	// Feeding one byte at a time must return Ready exactly once, at the
	// terminator position
	request := "GET /a/b?x=1 HTTP/1.1\r\nHost: x\r\nAccept: */*\r\n\r\n"

	c := newTestIO()

	readyCount := 0
	readyAt := -1

	for i := 0; i < len(request); i++ {
		status := feed(c, request[i:i+1])

		switch status {
		case StatusReady:
			readyCount++
			readyAt = i + 1
		case StatusClose:
			t.Fatalf("unexpected Close at offset %d", i)
		}
	}

	if readyCount != 1 {
		t.Fatalf("Ready returned %d times, want once", readyCount)
	}
	if readyAt != len(request) {
		t.Errorf("Ready at offset %d, want %d", readyAt, len(request))
	}
}

func TestParseMethods(t *testing.T) {
	tests := []struct {
		line        string
		method      Method
		headersOnly bool
	}{
		{"GET / HTTP/1.1", Get, false},
		{"POST / HTTP/1.1", Post, false},
		{"PUT / HTTP/1.1", Put, false},
		{"PATCH / HTTP/1.1", Patch, false},
		{"DELETE / HTTP/1.1", Delete, false},
		{"OPTIONS / HTTP/1.1", Options, false},
		{"HEAD / HTTP/1.1", Get, true},
		{"get / HTTP/1.1", Get, false}, // methods are uppercased
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			c := newTestIO()

			status := feed(c, tt.line+"\r\nHost: x\r\n\r\n")
			if status != StatusReady {
				t.Fatalf("status = %v, want Ready", status)
			}
			if c.Request.Method != tt.method {
				t.Errorf("method = %v, want %v", c.Request.Method, tt.method)
			}
			if c.Request.HeadersOnly != tt.headersOnly {
				t.Errorf("headersOnly = %v, want %v", c.Request.HeadersOnly, tt.headersOnly)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  error
	}{
		{"missing method", " / HTTP/1.1\r\n\r\n", ErrMalformedRequest},
		{"bad version", "GET / HTTP/2.0\r\n\r\n", ErrBadVersion},
		{"no slash url", "GET index.html HTTP/1.1\r\n\r\n", ErrMalformedRequest},
		{"unknown method", "BREW / HTTP/1.1\r\n\r\n", ErrUnknownMethod},
		{"header without colon", "GET / HTTP/1.1\r\nBroken header\r\n\r\n", ErrMalformedRequest},
		{"empty header key", "GET / HTTP/1.1\r\n: value\r\n\r\n", ErrMalformedRequest},
		{"garbage after version", "GET / HTTP/1.1 extra\r\n\r\n", ErrMalformedRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestIO()

			status := feed(c, tt.data)
			if status != StatusClose {
				t.Fatalf("status = %v, want Close", status)
			}
			if c.ParseError() != tt.err {
				t.Errorf("error = %v, want %v", c.ParseError(), tt.err)
			}
		})
	}
}

func TestParseOversizedRequest(t *testing.T) {
	settings := DefaultSettings()
	settings.Limits.MaxRequestSize = 256

	c := NewIO(settings)

	big := "GET / HTTP/1.1\r\nPadding: " + strings.Repeat("a", 512) + "\r\n\r\n"

	status := feed(c, big)
	if status != StatusClose {
		t.Fatalf("status = %v, want Close", status)
	}
	if c.ParseError() != ErrRequestTooLarge {
		t.Errorf("error = %v, want ErrRequestTooLarge", c.ParseError())
	}
}

func TestParseURLTooLong(t *testing.T) {
	settings := DefaultSettings()
	settings.Limits.MaxURLLen = 64

	c := NewIO(settings)

	status := feed(c, "GET /"+strings.Repeat("a", 128)+" HTTP/1.1\r\n\r\n")
	if status != StatusClose {
		t.Fatalf("status = %v, want Close", status)
	}
	if c.ParseError() != ErrURLTooLong {
		t.Errorf("error = %v, want ErrURLTooLong", c.ParseError())
	}
}

func TestParseLenientLFTerminator(t *testing.T) {
	c := newTestIO()

	status := feed(c, "GET / HTTP/1.0\nHost: x\n\n")
	if status != StatusReady {
		t.Fatalf("status = %v, want Ready", status)
	}
	if got := c.Request.GetHeaderValue("Host"); got != "x" {
		t.Errorf("Host = %q", got)
	}
}

func TestParseHeaderNormalization(t *testing.T) {
	c := newTestIO()

	status := feed(c, "GET / HTTP/1.1\r\ncontent-TYPE: text/html\r\nx-fORwarded-for: 1.2.3.4\r\n\r\n")
	if status != StatusReady {
		t.Fatalf("status = %v, want Ready", status)
	}

	if c.Request.Headers[0].Key != "Content-Type" {
		t.Errorf("key = %q, want Content-Type", c.Request.Headers[0].Key)
	}
	if c.Request.Headers[1].Key != "X-Forwarded-For" {
		t.Errorf("key = %q, want X-Forwarded-For", c.Request.Headers[1].Key)
	}
}

func TestParseHeaderValueTrimmed(t *testing.T) {
	c := newTestIO()

	feed(c, "GET / HTTP/1.1\r\nHost:   spaced.example.com   \r\n\r\n")

	if got := c.Request.GetHeaderValue("Host"); got != "spaced.example.com" {
		t.Errorf("Host = %q", got)
	}
}

func TestParseConnectionClose(t *testing.T) {
	c := newTestIO()

	feed(c, "GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	if c.Request.KeepAlive {
		t.Error("Connection: close must clear keep-alive")
	}

	c = newTestIO()
	feed(c, "GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n")
	if !c.Request.KeepAlive {
		t.Error("HTTP/1.0 with Connection: keep-alive must keep the connection")
	}

	c = newTestIO()
	feed(c, "GET / HTTP/1.0\r\nHost: x\r\n\r\n")
	if c.Request.KeepAlive {
		t.Error("plain HTTP/1.0 must not keep-alive")
	}
}

func TestParseCookies(t *testing.T) {
	c := newTestIO()

	status := feed(c, "GET / HTTP/1.1\r\nCookie: session=abc123; theme=dark; lang=en\r\n\r\n")
	if status != StatusReady {
		t.Fatalf("status = %v, want Ready", status)
	}

	if len(c.Request.Cookies) != 3 {
		t.Fatalf("cookie count = %d, want 3", len(c.Request.Cookies))
	}
	if got := c.Request.GetCookieValue("session"); got != "abc123" {
		t.Errorf("session = %q", got)
	}
	if got := c.Request.GetCookieValue("theme"); got != "dark" {
		t.Errorf("theme = %q", got)
	}
}

func TestParseTooManyCookies(t *testing.T) {
	settings := DefaultSettings()
	settings.Limits.MaxCookies = 4

	c := NewIO(settings)

	var cookies []string
	for i := 0; i < 8; i++ {
		cookies = append(cookies, "k"+strings.Repeat("x", i)+"=v")
	}

	status := feed(c, "GET / HTTP/1.1\r\nCookie: "+strings.Join(cookies, "; ")+"\r\n\r\n")
	if status != StatusClose {
		t.Fatalf("status = %v, want Close", status)
	}
	if c.ParseError() != ErrTooManyCookies {
		t.Errorf("error = %v, want ErrTooManyCookies", c.ParseError())
	}
}

func TestParseTooManyHeaders(t *testing.T) {
	settings := DefaultSettings()
	settings.Limits.MaxHeaders = 4

	c := NewIO(settings)

	var lines []string
	for i := 0; i < 8; i++ {
		lines = append(lines, "X-Header-"+strings.Repeat("a", i)+": v")
	}

	status := feed(c, "GET / HTTP/1.1\r\n"+strings.Join(lines, "\r\n")+"\r\n\r\n")
	if status != StatusClose {
		t.Fatalf("status = %v, want Close", status)
	}
	if c.ParseError() != ErrTooManyHeaders {
		t.Errorf("error = %v, want ErrTooManyHeaders", c.ParseError())
	}
}

func TestParseQueryValues(t *testing.T) {
	c := newTestIO()

	status := feed(c, "GET /search?q=hello+world&lang=en&empty=&esc=%41%42%2F HTTP/1.1\r\n\r\n")
	if status != StatusReady {
		t.Fatalf("status = %v, want Ready", status)
	}

	if c.Request.Path != "/search" {
		t.Errorf("path = %q", c.Request.Path)
	}
	if got := c.Request.GetQueryValue("q"); got != "hello world" {
		t.Errorf("q = %q, want %q", got, "hello world")
	}
	if got := c.Request.GetQueryValue("lang"); got != "en" {
		t.Errorf("lang = %q", got)
	}
	if got := c.Request.GetQueryValue("esc"); got != "AB/" {
		t.Errorf("esc = %q, want AB/", got)
	}
}

func TestParsePipelinedRequests(t *testing.T) {
	// Two requests in one segment: the second is parsed after Rearm
	// with no byte leakage between them
	c := newTestIO()

	data := "GET /a HTTP/1.1\r\nHost: x\r\n\r\nGET /b HTTP/1.1\r\nHost: y\r\n\r\n"

	status := feed(c, data)
	if status != StatusReady {
		t.Fatalf("first status = %v, want Ready", status)
	}
	if c.Request.Path != "/a" {
		t.Errorf("first path = %q", c.Request.Path)
	}

	if !c.Rearm(MonotonicNow()) {
		t.Fatal("keep-alive rearm failed")
	}

	status = c.ParseRequest()
	if status != StatusReady {
		t.Fatalf("second status = %v, want Ready", status)
	}
	if c.Request.Path != "/b" {
		t.Errorf("second path = %q", c.Request.Path)
	}
	if got := c.Request.GetHeaderValue("Host"); got != "y" {
		t.Errorf("second Host = %q, headers leaked", got)
	}

	// Nothing left over
	if !c.Rearm(MonotonicNow()) {
		t.Fatal("second rearm failed")
	}
	if status := c.ParseRequest(); status != StatusBusy {
		t.Errorf("third status = %v, want Busy", status)
	}
}

func TestParseBodyBytesPreserved(t *testing.T) {
	c := newTestIO()

	status := feed(c, "POST /upload HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")
	if status != StatusReady {
		t.Fatalf("status = %v, want Ready", status)
	}

	r, err := c.OpenForRead(1024)
	if err != nil {
		t.Fatalf("OpenForRead: %v", err)
	}

	body := make([]byte, 16)
	n, _ := r.Read(body)
	if string(body[:n]) != "hello" {
		t.Errorf("body = %q, want hello", body[:n])
	}
}

func TestParseBodyTooLarge(t *testing.T) {
	c := newTestIO()

	feed(c, "POST / HTTP/1.1\r\nContent-Length: 4096\r\n\r\n")

	if _, err := c.OpenForRead(1024); err != ErrBodyTooLarge {
		t.Errorf("error = %v, want ErrBodyTooLarge", err)
	}
}

func BenchmarkParseRequest(b *testing.B) {
	request := "GET /api/users?limit=10 HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"User-Agent: bench/1.0\r\n" +
		"Accept: application/json\r\n" +
		"Accept-Encoding: gzip, br\r\n" +
		"\r\n"

	c := newTestIO()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		buf := c.ReadBuffer()
		n := copy(buf, request)
		c.CommitRead(n)

		if status := c.ParseRequest(); status != StatusReady {
			b.Fatalf("status = %v", status)
		}

		c.Rearm(0)
	}
}
