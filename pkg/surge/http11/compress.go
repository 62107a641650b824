package http11

import (
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// newEncoder wraps w in a compressor for the given coding. Identity
// returns w unchanged behind a no-op Close.
func newEncoder(w io.Writer, encoding Encoding) (io.WriteCloser, error) {
	switch encoding {
	case Identity:
		return nopWriteCloser{w}, nil
	case Deflate:
		return zlib.NewWriter(w), nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Brotli:
		return brotli.NewWriter(w), nil
	case Zstd:
		return zstd.NewWriter(w)
	default:
		return nil, ErrMalformedRequest
	}
}

// newDecoder wraps r in a decompressor for the given coding. Used when a
// pre-compressed asset has to be served to a client that rejects the
// asset's coding.
func newDecoder(r io.Reader, encoding Encoding) (io.Reader, error) {
	switch encoding {
	case Identity:
		return r, nil
	case Deflate:
		return zlib.NewReader(r)
	case Gzip:
		return gzip.NewReader(r)
	case Brotli:
		return brotli.NewReader(r), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, ErrMalformedRequest
	}
}
