//go:build linux

package socket

import "golang.org/x/sys/unix"

// SendFile transmits count bytes from a file descriptor to a socket using
// sendfile(2). No userspace copy takes place; the kernel moves pages from
// the page cache straight into the socket buffer.
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
			if err == unix.EINTR {
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

// Largest single sendfile request; the kernel caps transfers near 2 GiB.
const maxSendfileChunk = 1 << 30
