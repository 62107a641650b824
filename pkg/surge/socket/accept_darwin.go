//go:build darwin

package socket

import "golang.org/x/sys/unix"

// Accept accepts one pending connection. Darwin has no accept4, so CLOEXEC
// is set in a second step; SO_NOSIGPIPE replaces the MSG_NOSIGNAL send flag
// used on the other platforms.
func Accept(lfd int) (int, unix.Sockaddr, error) {
	fd, sa, err := unix.Accept(lfd)
	if err != nil {
		return -1, nil, err
	}

	unix.CloseOnExec(fd)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)

	return fd, sa, nil
}
