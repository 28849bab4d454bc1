//go:build darwin

package lthread

import (
	"golang.org/x/sys/unix"
)

// Maximum file descriptor we support with direct indexing.
const maxFDs = 65536

// IOEvents represents the type of I/O events to wait for or report.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// pollEvent is one (fd, readiness) pair returned by a poll.
type pollEvent struct {
	fd     int
	events IOEvents
}

// poller wraps kqueue behind the uniform arm/disarm/poll interface. Each
// direction is its own kevent filter, so independent read and write waiters
// on one fd need no mask merging; the armed mask is kept for symmetry with
// the epoll implementation and for disarm bookkeeping.
//
// The poller is owned by exactly one scheduler; no locking.
type poller struct {
	kq       int
	armed    []IOEvents
	eventBuf []unix.Kevent_t
	closed   bool
}

func (p *poller) init(maxEvents int) error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	p.armed = make([]IOEvents, maxFDs)
	p.eventBuf = make([]unix.Kevent_t, maxEvents)
	return nil
}

func (p *poller) close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.kq)
}

// arm adds the given direction(s) to the fd's armed set.
func (p *poller) arm(fd int, events IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	add := events &^ p.armed[fd]
	if add == 0 {
		return nil
	}
	changes := keventChanges(fd, add, unix.EV_ADD|unix.EV_ENABLE)
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return err
	}
	p.armed[fd] |= add
	return nil
}

// disarm removes the given direction(s) from the fd's armed set.
func (p *poller) disarm(fd int, events IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	del := events & p.armed[fd]
	if del == 0 {
		return nil
	}
	p.armed[fd] &^= del
	changes := keventChanges(fd, del, unix.EV_DELETE)
	// delete errors are ignored; the fd may already be closed
	_, _ = unix.Kevent(p.kq, changes, nil, nil)
	return nil
}

// poll blocks up to timeoutMs for readiness, filling out. EINTR is absorbed
// and reported as an empty batch.
func (p *poller) poll(timeoutMs int, out []pollEvent) (int, error) {
	if p.closed {
		return 0, ErrPollerClosed
	}
	ts := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
	n, err := unix.Kevent(p.kq, nil, p.eventBuf, &ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = pollEvent{
			fd:     int(p.eventBuf[i].Ident),
			events: keventToEvents(&p.eventBuf[i]),
		}
	}
	return n, nil
}

// keventChanges builds the changelist entries for the given direction(s).
func keventChanges(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if events&EventRead != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}
	if events&EventWrite != 0 {
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}
	return changes
}

// keventToEvents converts one kevent to IOEvents.
func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	return events
}
