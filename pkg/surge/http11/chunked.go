package http11

import (
	"bufio"
	"io"

	"github.com/valyala/bytebufferpool"
)

const hexDigits = "0123456789ABCDEF"

// chunkFramePool holds scratch buffers used to assemble chunk frames so a
// whole frame goes to the kernel in one send.
var chunkFramePool bytebufferpool.Pool

// chunkedWriter frames writes as HTTP/1.1 chunks:
// <hex-length>CRLF<payload>CRLF, with payloads capped at maxChunkPayload.
// Close emits the 0CRLF CRLF terminator.
type chunkedWriter struct {
	io     *IO
	closed bool
}

func (w *chunkedWriter) Write(p []byte) (int, error) {
	total := len(p)

	for len(p) > 0 {
		payload := p
		if len(payload) > maxChunkPayload {
			payload = payload[:maxChunkPayload]
		}
		p = p[len(payload):]

		frame := chunkFramePool.Get()

		n := len(payload)
		frame.B = append(frame.B,
			hexDigits[(n>>12)&0xF], hexDigits[(n>>8)&0xF],
			hexDigits[(n>>4)&0xF], hexDigits[n&0xF],
			'\r', '\n')
		frame.B = append(frame.B, payload...)
		frame.B = append(frame.B, '\r', '\n')

		err := w.io.writeDirect(frame.B)
		chunkFramePool.Put(frame)

		if err != nil {
			return total - len(p) - len(payload), err
		}
	}

	return total, nil
}

// Close terminates the chunked body. Safe to call once.
func (w *chunkedWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	return w.io.writeDirect([]byte("0\r\n\r\n"))
}

// ChunkedReader decodes a chunked transfer-encoded stream, presenting the
// dechunked payload as a continuous io.Reader. Chunk extensions are
// ignored; trailer lines are consumed and discarded. Read returns io.EOF
// after the terminating zero-length chunk.
type ChunkedReader struct {
	r         *bufio.Reader
	remaining int64
	err       error
	eof       bool
}

// NewChunkedReader wraps r in a chunked decoder.
func NewChunkedReader(r io.Reader) *ChunkedReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &ChunkedReader{r: br}
}

func (cr *ChunkedReader) Read(p []byte) (int, error) {
	if cr.err != nil {
		return 0, cr.err
	}
	if cr.eof {
		return 0, io.EOF
	}

	if cr.remaining == 0 {
		if err := cr.readChunkHeader(); err != nil {
			cr.err = err
			return 0, err
		}

		if cr.remaining == 0 {
			// Last chunk: consume trailers up to the blank line
			if err := cr.readTrailers(); err != nil {
				cr.err = err
				return 0, err
			}
			cr.eof = true
			return 0, io.EOF
		}
	}

	if int64(len(p)) > cr.remaining {
		p = p[:cr.remaining]
	}

	n, err := cr.r.Read(p)
	cr.remaining -= int64(n)

	if err == io.EOF {
		err = ErrChunkedEncoding
	}
	if err != nil {
		cr.err = err
		return n, err
	}

	if cr.remaining == 0 {
		if err := cr.readCRLF(); err != nil {
			cr.err = err
			return n, err
		}
	}

	return n, nil
}

func (cr *ChunkedReader) readChunkHeader() error {
	line, err := cr.readLine()
	if err != nil {
		return err
	}

	// Drop any chunk extension
	for i := 0; i < len(line); i++ {
		if line[i] == ';' {
			line = line[:i]
			break
		}
	}

	if len(line) == 0 {
		return ErrChunkedEncoding
	}

	var size int64
	for _, c := range line {
		var digit int64
		switch {
		case '0' <= c && c <= '9':
			digit = int64(c - '0')
		case 'a' <= c && c <= 'f':
			digit = int64(c-'a') + 10
		case 'A' <= c && c <= 'F':
			digit = int64(c-'A') + 10
		default:
			return ErrChunkedEncoding
		}

		size = size<<4 | digit
		if size > 1<<32 {
			return ErrChunkedEncoding
		}
	}

	cr.remaining = size
	return nil
}

func (cr *ChunkedReader) readTrailers() error {
	for {
		line, err := cr.readLine()
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}
	}
}

func (cr *ChunkedReader) readCRLF() error {
	line, err := cr.readLine()
	if err != nil {
		return err
	}
	if len(line) != 0 {
		return ErrChunkedEncoding
	}
	return nil
}

func (cr *ChunkedReader) readLine() ([]byte, error) {
	line, err := cr.r.ReadSlice('\n')
	if err != nil {
		if err == io.EOF {
			return nil, ErrChunkedEncoding
		}
		return nil, err
	}

	line = line[:len(line)-1]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, nil
}
