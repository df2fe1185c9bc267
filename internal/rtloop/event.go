//go:build linux

package rtloop

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// EventID is a thread-local, typed event handle.
type EventID uint32

// EventFunc is invoked on the owning thread when its event fires.
type EventFunc func(id EventID)

type eventSource struct {
	id       EventID
	fd       int
	onFire   EventFunc
	writeFd  int // == fd for eventfd; kept distinct for clarity/testing
}

// EventWriter is a cloneable, thread-safe handle used to post to an Event
// from any goroutine. Posting while a post is already pending (unread)
// coalesces: the owning thread wakes exactly once per accumulated burst,
// which is the native semantics of a Linux eventfd counter.
type EventWriter struct {
	fd int
}

// Clone returns an independent copy of the writer, safe to hand to another
// goroutine (spec §4.1: "writers are cloneable and thread-safe").
func (w EventWriter) Clone() EventWriter { return w }

// Post wakes the owning thread's event callback. Safe for concurrent use
// and safe to call from the owning thread itself.
func (w EventWriter) Post() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(w.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

// CreateEvent registers a new event source on the calling thread, returning
// a Writer other goroutines (or the thread itself) use to trigger onFire.
func (t *Thread) CreateEvent(id EventID, onFire EventFunc) (EventWriter, error) {
	if onFire == nil {
		panic("rtloop: nil onFire")
	}

	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return EventWriter{}, err
	}

	t.eventMu.Lock()
	if _, exists := t.eventByID[id]; exists {
		t.eventMu.Unlock()
		_ = unix.Close(fd)
		return EventWriter{}, ErrEventIDInUse
	}
	src := &eventSource{id: id, fd: fd, onFire: onFire, writeFd: fd}
	t.eventByID[id] = src
	t.eventMu.Unlock()

	if err := t.poller.add(fd, EventRead, func(fd int, _ IOEvents) {
		drainEventfd(fd)
		t.safeCall(func() { onFire(id) })
	}); err != nil {
		t.eventMu.Lock()
		delete(t.eventByID, id)
		t.eventMu.Unlock()
		_ = unix.Close(fd)
		return EventWriter{}, err
	}

	return EventWriter{fd: fd}, nil
}

func drainEventfd(fd int) {
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
}

// eventfdNonblock creates a nonblocking, close-on-exec eventfd, used both
// for user Events and for each Thread's internal wakeup mechanism.
func eventfdNonblock() (int, error) {
	return unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
}
