//go:build linux

package dispatch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// epollSource drives the Linux epoll demultiplexer. Clients are watched
// edge-triggered; the dispatcher drains reads until EAGAIN so no edge is
// lost. Wakeups go through an eventfd registered alongside the sockets.
type epollSource struct {
	epfd   int
	wakefd int

	events []unix.EpollEvent
}

func newPlatformSource() (Source, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("dispatch: failed to initialize epoll: %w", err)
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("dispatch: failed to create eventfd: %w", err)
	}

	s := &epollSource{epfd: epfd, wakefd: wakefd}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		s.Close()
		return nil, fmt.Errorf("dispatch: failed to register eventfd: %w", err)
	}

	return s, nil
}

func (s *epollSource) AddListener(fd int) error {
	// EPOLLEXCLUSIVE keeps one shared listener from waking every
	// dispatcher on each connection
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLEXCLUSIVE, Fd: int32(fd)}

	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("dispatch: failed to add listener to epoll: %w", err)
	}
	return nil
}

func (s *epollSource) AddClient(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(fd)}

	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil && err != unix.EEXIST {
		return fmt.Errorf("dispatch: failed to add descriptor to epoll: %w", err)
	}
	return nil
}

func (s *epollSource) DisableClient(fd int) {
	_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (s *epollSource) EnableClient(fd int) {
	_ = s.AddClient(fd)
}

func (s *epollSource) RemoveClient(fd int) {
	_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (s *epollSource) Wake() {
	var one [8]byte
	one[0] = 1
	_, _ = unix.Write(s.wakefd, one[:])
}

func (s *epollSource) WakeFD() int {
	return s.wakefd
}

func (s *epollSource) Wait(events []Event, timeout int64) (int, error) {
	if cap(s.events) < len(events) {
		s.events = make([]unix.EpollEvent, len(events))
	}
	raw := s.events[:len(events)]

	ms := int(timeout)
	if timeout < 0 || timeout > int64(^uint32(0)>>1) {
		ms = -1
	}

	n, err := unix.EpollWait(s.epfd, raw, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("dispatch: failed to poll descriptors: %w", err)
	}

	for i := 0; i < n; i++ {
		events[i] = Event{
			FD:  int(raw[i].Fd),
			HUP: raw[i].Events&unix.EPOLLHUP != 0,
		}

		if events[i].FD == s.wakefd {
			// Drain the eventfd counter
			var buf [8]byte
			_, _ = unix.Read(s.wakefd, buf[:])
		}
	}

	return n, nil
}

func (s *epollSource) Close() {
	_ = unix.Close(s.wakefd)
	_ = unix.Close(s.epfd)
}
