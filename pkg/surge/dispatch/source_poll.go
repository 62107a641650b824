//go:build unix && !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package dispatch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pollSource is the portable fallback demultiplexer built on poll(2).
// It keeps the registered set in a map and rebuilds the pollfd slice per
// wait; level-triggered semantics mean disabled descriptors are simply
// left out of the set.
type pollSource struct {
	pipeRead int
	pipeWrit int

	fds  map[int]bool // fd -> enabled
	pfds []unix.PollFd
}

func newPlatformSource() (Source, error) {
	var pipeFDs [2]int
	if err := unix.Pipe(pipeFDs[:]); err != nil {
		return nil, fmt.Errorf("dispatch: failed to create wake pipe: %w", err)
	}
	unix.CloseOnExec(pipeFDs[0])
	unix.CloseOnExec(pipeFDs[1])
	_ = unix.SetNonblock(pipeFDs[0], true)
	_ = unix.SetNonblock(pipeFDs[1], true)

	s := &pollSource{
		pipeRead: pipeFDs[0],
		pipeWrit: pipeFDs[1],
		fds:      make(map[int]bool),
	}
	s.fds[s.pipeRead] = true

	return s, nil
}

func (s *pollSource) AddListener(fd int) error {
	s.fds[fd] = true
	return nil
}

func (s *pollSource) AddClient(fd int) error {
	s.fds[fd] = true
	return nil
}

func (s *pollSource) DisableClient(fd int) {
	s.fds[fd] = false
}

func (s *pollSource) EnableClient(fd int) {
	s.fds[fd] = true
}

func (s *pollSource) RemoveClient(fd int) {
	delete(s.fds, fd)
}

func (s *pollSource) Wake() {
	var one [1]byte
	_, _ = unix.Write(s.pipeWrit, one[:])
}

func (s *pollSource) WakeFD() int {
	return s.pipeRead
}

func (s *pollSource) Wait(events []Event, timeout int64) (int, error) {
	s.pfds = s.pfds[:0]
	for fd, enabled := range s.fds {
		if enabled {
			s.pfds = append(s.pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		}
	}

	ms := int(timeout)
	if timeout < 0 || timeout > int64(^uint32(0)>>1) {
		ms = -1
	}

	n, err := unix.Poll(s.pfds, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("dispatch: failed to poll descriptors: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	count := 0
	for _, pfd := range s.pfds {
		if count >= len(events) {
			break
		}
		if pfd.Revents == 0 {
			continue
		}

		events[count] = Event{
			FD:  int(pfd.Fd),
			HUP: pfd.Revents&unix.POLLHUP != 0,
		}

		if int(pfd.Fd) == s.pipeRead {
			var buf [64]byte
			_, _ = unix.Read(s.pipeRead, buf[:])
		}

		count++
	}

	return count, nil
}

func (s *pollSource) Close() {
	_ = unix.Close(s.pipeRead)
	_ = unix.Close(s.pipeWrit)
}
