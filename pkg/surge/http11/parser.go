package http11

import (
	"bytes"
	"strings"
)

var (
	crlfTerminator = []byte("\r\n\r\n")
	lfTerminator   = []byte("\n\n")
)

// ParseRequest scans the accumulated incoming bytes for the header
// terminator and, once found, parses the request line, headers, cookies
// and query values in place.
//
// StatusBusy means more bytes are needed. StatusClose means the request
// is malformed or too large; ParseError then tells the caller which
// response to send before closing. Calling it again after StatusReady
// without a Rearm in between reports StatusBusy.
func (c *IO) ParseRequest() ParseStatus {
	if c.ready {
		return StatusBusy
	}

	buf := c.incoming.buf

	// Resume the terminator scan where the previous read left off; back
	// up a few bytes in case the terminator straddles two reads.
	start := c.incoming.pos - 3
	if start < 0 {
		start = 0
	}

	termStart, termLen := findTerminator(buf[start:])
	if termStart < 0 {
		c.incoming.pos = len(buf)

		if len(buf) > c.settings.Limits.MaxRequestSize {
			c.parseErr = ErrRequestTooLarge
			return StatusClose
		}

		return StatusBusy
	}
	termStart += start

	if termStart > c.settings.Limits.MaxRequestSize {
		c.parseErr = ErrRequestTooLarge
		return StatusClose
	}

	c.incoming.pos = termStart
	c.incoming.intro = buf[:termStart]
	c.incoming.extra = buf[termStart+termLen:]

	if err := c.parseIntro(c.incoming.intro); err != nil {
		c.parseErr = err
		return StatusClose
	}

	c.ready = true
	return StatusReady
}

// findTerminator locates the earliest header terminator, accepting the
// lenient LF-only form sent by sloppy clients.
func findTerminator(buf []byte) (int, int) {
	crlf := bytes.Index(buf, crlfTerminator)
	lf := bytes.Index(buf, lfTerminator)

	switch {
	case crlf < 0 && lf < 0:
		return -1, 0
	case crlf < 0:
		return lf, len(lfTerminator)
	case lf < 0 || crlf <= lf:
		return crlf, len(crlfTerminator)
	default:
		return lf, len(lfTerminator)
	}
}

func (c *IO) parseIntro(intro []byte) error {
	line, remain := splitLine(intro)

	if err := c.parseRequestLine(line); err != nil {
		return err
	}

	headers := 0
	cookies := 0

	for len(remain) > 0 {
		line, remain = splitLine(remain)
		if len(line) == 0 {
			continue
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return ErrMalformedRequest
		}

		key := trimBytesRight(line[:colon])
		if len(key) == 0 {
			return ErrMalformedRequest
		}
		value := trimBytes(line[colon+1:])

		normalizeHeaderKey(key)

		if headers++; headers > c.settings.Limits.MaxHeaders {
			return ErrTooManyHeaders
		}

		keyStr := b2s(key)
		valueStr := b2s(value)

		c.Request.Headers = append(c.Request.Headers, KeyValue{Key: keyStr, Value: valueStr})

		switch keyStr {
		case "Connection":
			c.Request.KeepAlive = !equalFold(valueStr, "close")
		case "Cookie":
			n, err := c.parseCookies(value, cookies)
			if err != nil {
				return err
			}
			cookies = n
		}
	}

	return c.parseQueryValues()
}

func (c *IO) parseRequestLine(line []byte) error {
	method, rest := splitByte(line, ' ')
	url, rest := splitByte(rest, ' ')
	protocol, rest := splitByte(rest, ' ')

	upperBytes(method)

	if len(method) == 0 {
		return ErrMalformedRequest
	}
	if len(url) == 0 || url[0] != '/' {
		return ErrMalformedRequest
	}
	if len(url) > c.settings.Limits.MaxURLLen {
		return ErrURLTooLong
	}

	switch {
	case equalFold(b2s(protocol), "HTTP/1.0"):
		c.Request.Version = 10
		c.Request.KeepAlive = false
	case equalFold(b2s(protocol), "HTTP/1.1"):
		c.Request.Version = 11
		c.Request.KeepAlive = true
	default:
		return ErrBadVersion
	}

	if len(rest) > 0 {
		// Unexpected data after the protocol token
		return ErrMalformedRequest
	}

	methodStr := b2s(method)
	if methodStr == "HEAD" {
		c.Request.Method = Get
		c.Request.HeadersOnly = true
	} else {
		found := false
		for i, name := range methodNames {
			if methodStr == name {
				c.Request.Method = Method(i)
				found = true
				break
			}
		}
		if !found {
			return ErrUnknownMethod
		}
	}

	path, query := splitByte(url, '?')
	c.Request.Path = b2s(path)
	c.Request.Query = b2s(query)

	return nil
}

func (c *IO) parseCookies(value []byte, count int) (int, error) {
	for len(value) > 0 {
		var pair []byte
		pair, value = splitByte(value, ';')
		pair = trimBytes(pair)

		if len(pair) == 0 {
			continue
		}

		name, val := splitByte(pair, '=')
		if len(name) == 0 {
			return count, ErrMalformedRequest
		}

		if count++; count > c.settings.Limits.MaxCookies {
			return count, ErrTooManyCookies
		}

		c.Request.Cookies = append(c.Request.Cookies, KeyValue{
			Key:   b2s(name),
			Value: b2s(val),
		})
	}

	return count, nil
}

func (c *IO) parseQueryValues() error {
	query := c.Request.Query

	for len(query) > 0 {
		var pair string
		if amp := strings.IndexByte(query, '&'); amp >= 0 {
			pair, query = query[:amp], query[amp+1:]
		} else {
			pair, query = query, ""
		}
		if pair == "" {
			continue
		}

		key := pair
		value := ""
		for i := 0; i < len(pair); i++ {
			if pair[i] == '=' {
				key, value = pair[:i], pair[i+1:]
				break
			}
		}

		c.Request.Values = append(c.Request.Values, KeyValue{
			Key:   c.decodeComponent(key),
			Value: c.decodeComponent(value),
		})
	}

	return nil
}

// decodeComponent URL-decodes a query component into the scratch region.
// Undecodable escapes pass through verbatim.
func (c *IO) decodeComponent(s string) string {
	plain := true
	for i := 0; i < len(s); i++ {
		if s[i] == '%' || s[i] == '+' {
			plain = false
			break
		}
	}
	if plain {
		return s
	}

	out := c.scratch.Alloc(len(s))
	out = out[:0]

	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '+':
			out = append(out, ' ')
		case s[i] == '%' && i+2 < len(s):
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if ok1 && ok2 {
				out = append(out, hi<<4|lo)
				i += 2
			} else {
				out = append(out, s[i])
			}
		default:
			out = append(out, s[i])
		}
	}

	return b2s(out)
}

func unhex(ch byte) (byte, bool) {
	switch {
	case '0' <= ch && ch <= '9':
		return ch - '0', true
	case 'a' <= ch && ch <= 'f':
		return ch - 'a' + 10, true
	case 'A' <= ch && ch <= 'F':
		return ch - 'A' + 10, true
	default:
		return 0, false
	}
}

// normalizeHeaderKey canonicalizes a header name in place: the first
// letter and any letter after a dash are uppercased, the rest lowercased.
func normalizeHeaderKey(key []byte) {
	upper := true
	for i, ch := range key {
		if upper {
			if 'a' <= ch && ch <= 'z' {
				key[i] = ch - ('a' - 'A')
			}
		} else {
			if 'A' <= ch && ch <= 'Z' {
				key[i] = ch + ('a' - 'A')
			}
		}
		upper = key[i] == '-'
	}
}

func upperBytes(b []byte) {
	for i, ch := range b {
		if 'a' <= ch && ch <= 'z' {
			b[i] = ch - ('a' - 'A')
		}
	}
}

// splitLine cuts the next line off the block, tolerating both CRLF and
// bare-LF endings.
func splitLine(block []byte) ([]byte, []byte) {
	nl := bytes.IndexByte(block, '\n')
	if nl < 0 {
		return block, nil
	}

	line := block[:nl]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, block[nl+1:]
}

// splitByte cuts at the first occurrence of sep. The separator is
// consumed; a missing separator leaves the remainder empty.
func splitByte(b []byte, sep byte) ([]byte, []byte) {
	idx := bytes.IndexByte(b, sep)
	if idx < 0 {
		return b, nil
	}
	return b[:idx], b[idx+1:]
}

func trimBytes(b []byte) []byte {
	return trimBytesRight(trimBytesLeft(b))
}

func trimBytesLeft(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	return b
}

func trimBytesRight(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}
