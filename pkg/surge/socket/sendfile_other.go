//go:build !linux && !darwin && !freebsd && !dragonfly

package socket

import "golang.org/x/sys/unix"

// SendFile copies count bytes from a file descriptor to a socket through a
// userspace buffer. Platforms without sendfile(2) take this fallback path.
func SendFile(sock int, file int, offset *int64, count int64) (int64, error) {
	buf := make([]byte, 64*1024)

	var written int64
	for written < count {
		chunk := int64(len(buf))
		if chunk > count-written {
			chunk = count - written
		}

		n, err := unix.Pread(file, buf[:chunk], *offset)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return written, err
		}
		if n == 0 {
			break
		}

		if err := WriteAll(sock, buf[:n]); err != nil {
			return written, err
		}

		*offset += int64(n)
		written += int64(n)
	}

	return written, nil
}
