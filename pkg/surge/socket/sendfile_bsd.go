//go:build darwin || freebsd || dragonfly

package socket

import "golang.org/x/sys/unix"

// SendFile transmits count bytes from a file descriptor to a socket using
// the BSD sendfile(2). The response headers are written separately before
// the call; the single-syscall header iovec variant is not exposed here.
func SendFile(sock int, file int, offset *int64, count int64) (int64, error) {
	var written int64

	for written < count {
		chunk := count - written
		if chunk > maxSendfileChunk {
			chunk = maxSendfileChunk
		}

		n, err := unix.Sendfile(sock, file, offset, int(chunk))
		if n > 0 {
			written += int64(n)
		}
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return written, err
		}
		if n == 0 {
			break
		}
	}

	return written, nil
}

const maxSendfileChunk = 1 << 30
