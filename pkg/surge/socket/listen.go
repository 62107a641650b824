package socket

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Listen creates a bound, listening, non-blocking socket of the given type.
// TCP listeners get SO_REUSEADDR and, where the platform supports it,
// SO_REUSEPORT so several dispatchers can share one port with in-kernel
// load balancing.
func Listen(typ Type, port int, unixPath string) (int, error) {
	switch typ {
	case Dual, IPv4, IPv6:
		return listenIP(typ, port)
	case Unix:
		return listenUnix(unixPath)
	default:
		return -1, fmt.Errorf("socket: invalid socket type %d", typ)
	}
}

func listenIP(typ Type, port int) (int, error) {
	// Port 0 binds an ephemeral port; configuration-level validation
	// requires an explicit port but tests rely on kernel assignment.
	if port < 0 || port > 65535 {
		return -1, fmt.Errorf("socket: port %d is invalid (range: 1 - 65535)", port)
	}
	if typ == Dual && !SupportsDualStack {
		return -1, fmt.Errorf("socket: dual-stack sockets are not supported on this platform")
	}

	family := unix.AF_INET6
	if typ == IPv4 {
		family = unix.AF_INET
	}

	// SOCK_CLOEXEC is not available in socket(2) everywhere; set the
	// flag separately
	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket: failed to create socket: %w", err)
	}
	unix.CloseOnExec(fd)

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		Close(fd)
		return -1, fmt.Errorf("socket: failed to set SO_REUSEADDR: %w", err)
	}
	setReusePort(fd)

	if family == unix.AF_INET6 {
		v6only := 0
		if typ == IPv6 {
			v6only = 1
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, v6only); err != nil {
			Close(fd)
			return -1, fmt.Errorf("socket: failed to set IPV6_V6ONLY: %w", err)
		}
	}

	var sa unix.Sockaddr
	if family == unix.AF_INET {
		sa = &unix.SockaddrInet4{Port: port}
	} else {
		sa = &unix.SockaddrInet6{Port: port}
	}

	if err := unix.Bind(fd, sa); err != nil {
		Close(fd)
		return -1, fmt.Errorf("socket: failed to bind to port %d: %w", port, err)
	}
	if err := unix.Listen(fd, ListenBacklog); err != nil {
		Close(fd)
		return -1, fmt.Errorf("socket: failed to listen on port %d: %w", port, err)
	}

	applyListenerOptions(fd)

	if err := unix.SetNonblock(fd, true); err != nil {
		Close(fd)
		return -1, fmt.Errorf("socket: failed to set non-blocking mode: %w", err)
	}

	return fd, nil
}

func listenUnix(path string) (int, error) {
	if path == "" {
		return -1, fmt.Errorf("socket: unix socket path must be set")
	}
	if len(path) >= maxUnixPathLen {
		return -1, fmt.Errorf("socket: socket path %q is too long (max length = %d)", path, maxUnixPathLen-1)
	}

	// Remove a stale socket file left behind by a previous run
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSocket != 0 {
		_ = os.Remove(path)
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: failed to create unix socket: %w", err)
	}
	unix.CloseOnExec(fd)

	sa := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, sa); err != nil {
		Close(fd)
		return -1, fmt.Errorf("socket: failed to bind to %q: %w", path, err)
	}
	if err := os.Chmod(path, 0666); err != nil {
		Close(fd)
		return -1, fmt.Errorf("socket: failed to chmod %q: %w", path, err)
	}
	if err := unix.Listen(fd, ListenBacklog); err != nil {
		Close(fd)
		return -1, fmt.Errorf("socket: failed to listen on %q: %w", path, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		Close(fd)
		return -1, fmt.Errorf("socket: failed to set non-blocking mode: %w", err)
	}

	return fd, nil
}

// maxUnixPathLen mirrors the size of sockaddr_un.sun_path on the supported
// platforms. Linux allows 108 bytes, the BSDs 104; use the smaller bound.
const maxUnixPathLen = 104
