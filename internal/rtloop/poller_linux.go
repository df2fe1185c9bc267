//go:build linux

package rtloop

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// IOEvents is a bitmask of I/O readiness conditions, mirroring spec §4.1's
// "read?/write?" registration parameters plus the error/hangup conditions
// the kernel reports unconditionally.
type IOEvents uint32

const (
	// EventRead indicates the descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition.
	EventError
	// EventHangup indicates the peer closed its end.
	EventHangup
)

// IOCallback is invoked, on the owning thread's loop goroutine, when a
// registered descriptor becomes ready.
type IOCallback func(fd int, events IOEvents)

// poller wraps a Linux epoll instance: direct epoll_ctl/epoll_wait
// wrapping, map-keyed here (rather than a 64K direct-index array) since a
// single daemon thread registers at most a handful of descriptors
// (link-state netlink sockets, PTP event/general sockets, PPS fds, control
// socket) rather than an arbitrary-scale fd set.
type poller struct {
	epfd int

	mu  sync.Mutex
	fds map[int]registeredFD

	eventBuf [64]unix.EpollEvent
}

type registeredFD struct {
	events   IOEvents
	callback IOCallback
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("rtloop: epoll_create1: %w", err)
	}
	return &poller{epfd: epfd, fds: make(map[int]registeredFD)}, nil
}

func (p *poller) close() error {
	return unix.Close(p.epfd)
}

func eventsToEpoll(e IOEvents) uint32 {
	var out uint32
	if e&EventRead != 0 {
		out |= unix.EPOLLIN
	}
	if e&EventWrite != 0 {
		out |= unix.EPOLLOUT
	}
	return out
}

func epollToEvents(e uint32) IOEvents {
	var out IOEvents
	if e&unix.EPOLLIN != 0 {
		out |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		out |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		out |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		out |= EventHangup
	}
	return out
}

// add registers fd for the given events, putting it into nonblocking mode
// per spec §4.1 ("fd is put into nonblocking mode").
func (p *poller) add(fd int, events IOEvents, cb IOCallback) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("rtloop: set nonblock: %w", err)
	}

	p.mu.Lock()
	if _, exists := p.fds[fd]; exists {
		p.mu.Unlock()
		return ErrFDAlreadyRegistered
	}
	p.fds[fd] = registeredFD{events: events, callback: cb}
	p.mu.Unlock()

	ev := unix.EpollEvent{Events: eventsToEpoll(events) | unix.EPOLLHUP | unix.EPOLLERR, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		p.mu.Lock()
		delete(p.fds, fd)
		p.mu.Unlock()
		return fmt.Errorf("rtloop: epoll_ctl add: %w", err)
	}
	return nil
}

func (p *poller) remove(fd int) error {
	p.mu.Lock()
	_, exists := p.fds[fd]
	delete(p.fds, fd)
	p.mu.Unlock()
	if !exists {
		return ErrFDNotRegistered
	}
	// Linux ignores the event argument for EPOLL_CTL_DEL, but older kernels
	// require a non-nil pointer.
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, &unix.EpollEvent{})
	return nil
}

// wait blocks up to timeoutMillis (-1 for indefinite) and dispatches ready
// descriptors to their callbacks. Returns the number of events dispatched.
func (p *poller) wait(timeoutMillis int) (int, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("rtloop: epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		p.mu.Lock()
		entry, ok := p.fds[fd]
		p.mu.Unlock()
		if !ok {
			continue
		}
		entry.callback(fd, epollToEvents(p.eventBuf[i].Events))
	}
	return n, nil
}
