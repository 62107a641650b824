//go:build linux || freebsd || netbsd || openbsd || dragonfly

package socket

import "golang.org/x/sys/unix"

// Accept accepts one pending connection with CLOEXEC set atomically.
// The returned descriptor is left in blocking mode: reads go through
// MSG_DONTWAIT on the dispatcher, writes block on the worker.
func Accept(lfd int) (int, unix.Sockaddr, error) {
	fd, sa, err := unix.Accept4(lfd, unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, err
	}
	return fd, sa, nil
}
