//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package dispatch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// kqueueSource drives the BSD kqueue demultiplexer. Client filters use
// EV_CLEAR so repeated readiness needs fresh data, mirroring the
// edge-triggered epoll setup; wakeups travel over a self-pipe.
type kqueueSource struct {
	kq       int
	pipeRead int
	pipeWrit int

	changes []unix.Kevent_t
	events  []unix.Kevent_t
}

func newPlatformSource() (Source, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("dispatch: failed to initialize kqueue: %w", err)
	}
	unix.CloseOnExec(kq)

	var pipeFDs [2]int
	if err := unix.Pipe(pipeFDs[:]); err != nil {
		unix.Close(kq)
		return nil, fmt.Errorf("dispatch: failed to create wake pipe: %w", err)
	}
	unix.CloseOnExec(pipeFDs[0])
	unix.CloseOnExec(pipeFDs[1])
	_ = unix.SetNonblock(pipeFDs[0], true)
	_ = unix.SetNonblock(pipeFDs[1], true)

	s := &kqueueSource{kq: kq, pipeRead: pipeFDs[0], pipeWrit: pipeFDs[1]}

	s.change(s.pipeRead, unix.EVFILT_READ, unix.EV_ADD)

	return s, nil
}

func (s *kqueueSource) change(fd int, filter int16, flags uint16) {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, int(filter), int(flags))
	s.changes = append(s.changes, ev)
}

func (s *kqueueSource) AddListener(fd int) error {
	s.change(fd, unix.EVFILT_READ, unix.EV_ADD)
	return nil
}

func (s *kqueueSource) AddClient(fd int) error {
	s.change(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR)
	return nil
}

func (s *kqueueSource) DisableClient(fd int) {
	s.change(fd, unix.EVFILT_READ, unix.EV_DISABLE)
}

func (s *kqueueSource) EnableClient(fd int) {
	s.change(fd, unix.EVFILT_READ, unix.EV_ENABLE|unix.EV_CLEAR)
}

func (s *kqueueSource) RemoveClient(fd int) {
	s.change(fd, unix.EVFILT_READ, unix.EV_DELETE)
}

func (s *kqueueSource) Wake() {
	var one [1]byte
	_, _ = unix.Write(s.pipeWrit, one[:])
}

func (s *kqueueSource) WakeFD() int {
	return s.pipeRead
}

func (s *kqueueSource) Wait(events []Event, timeout int64) (int, error) {
	if cap(s.events) < len(events) {
		s.events = make([]unix.Kevent_t, len(events))
	}
	raw := s.events[:len(events)]

	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout * 1e6)
		ts = &t
	}

	// Pending registrations ride along with the wait call
	changes := s.changes
	s.changes = s.changes[:0]

	n, err := unix.Kevent(s.kq, changes, raw, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("dispatch: failed to poll descriptors: %w", err)
	}

	for i := 0; i < n; i++ {
		events[i] = Event{
			FD:  int(raw[i].Ident),
			HUP: raw[i].Flags&unix.EV_EOF != 0,
		}

		if events[i].FD == s.pipeRead {
			var buf [64]byte
			_, _ = unix.Read(s.pipeRead, buf[:])
		}
	}

	return n, nil
}

func (s *kqueueSource) Close() {
	_ = unix.Close(s.pipeRead)
	_ = unix.Close(s.pipeWrit)
	_ = unix.Close(s.kq)
}
