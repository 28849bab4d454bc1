//go:build linux

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

// poller wraps epoll behind the uniform arm/disarm/poll interface.
//
// Arming is level-triggered, used in oneshot mode: the scheduler disarms a
// direction before resuming its waiter, so a readiness condition is reported
// at most once per arm. A per-fd armed mask supports independent read and
// write waiters on the same fd.
//
// The poller is owned by exactly one scheduler; no locking.
type poller struct {
	epfd     int
	armed    []IOEvents
	eventBuf []unix.EpollEvent
	closed   bool
}

func (p *poller) init(maxEvents int) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = epfd
	p.armed = make([]IOEvents, maxFDs)
	p.eventBuf = make([]unix.EpollEvent, maxEvents)
	return nil
}

func (p *poller) close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.epfd)
}

// arm adds the given direction(s) to the fd's armed set.
func (p *poller) arm(fd int, events IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	old := p.armed[fd]
	mask := old | events
	if mask == old {
		return nil
	}
	ev := &unix.EpollEvent{
		Events: eventsToEpoll(mask),
		Fd:     int32(fd),
	}
	op := unix.EPOLL_CTL_MOD
	if old == 0 {
		op = unix.EPOLL_CTL_ADD
	}
	if err := unix.EpollCtl(p.epfd, op, fd, ev); err != nil {
		return err
	}
	p.armed[fd] = mask
	return nil
}

// disarm removes the given direction(s) from the fd's armed set, deleting
// the registration once no direction remains.
func (p *poller) disarm(fd int, events IOEvents) error {
	if p.closed {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= maxFDs {
		return ErrFDOutOfRange
	}
	old := p.armed[fd]
	if old == 0 {
		return nil
	}
	mask := old &^ events
	if mask == old {
		return nil
	}
	p.armed[fd] = mask
	if mask == 0 {
		return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	ev := &unix.EpollEvent{
		Events: eventsToEpoll(mask),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

// poll blocks up to timeoutMs for readiness, filling out. EINTR is absorbed
// and reported as an empty batch.
func (p *poller) poll(timeoutMs int, out []pollEvent) (int, error) {
	if p.closed {
		return 0, ErrPollerClosed
	}
	n, err := unix.EpollWait(p.epfd, p.eventBuf, timeoutMs)
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
			fd:     int(p.eventBuf[i].Fd),
			events: epollToEvents(p.eventBuf[i].Events),
		}
	}
	return n, nil
}

// eventsToEpoll converts IOEvents to epoll event flags. Read arms also watch
// peer half-close so waiters resume with FDEOF instead of blocking forever.
func eventsToEpoll(events IOEvents) uint32 {
	var epollEvents uint32
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	return epollEvents
}

// epollToEvents converts epoll event flags to IOEvents.
func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		events |= EventHangup
	}
	return events
}
