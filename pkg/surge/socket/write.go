package socket

import "golang.org/x/sys/unix"

// WriteAll writes all of p to fd, retrying on EINTR and short writes.
// The platform send flags suppress SIGPIPE and keep segments coalesced
// until Push is called at the end of the response.
func WriteAll(fd int, p []byte) error {
	for len(p) > 0 {
		n, err := unix.SendmsgN(fd, p, nil, nil, sendFlags)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		p = p[n:]
	}
	return nil
}

// ReadNonblock reads into p without blocking, regardless of the descriptor's
// blocking mode. Returns 0, EAGAIN when no data is queued.
func ReadNonblock(fd int, p []byte) (int, error) {
	for {
		n, _, err := unix.Recvfrom(fd, p, unix.MSG_DONTWAIT)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Read performs a blocking read into p.
func Read(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}
