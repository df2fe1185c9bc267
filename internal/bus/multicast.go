package bus

import (
	"errors"
	"sync"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/rtloop"
)

// GroupID identifies a multicast group, keyed by message id per spec §4.2.
type GroupID uint32

// Standard errors.
var (
	// ErrAlreadyPublisher is returned by Publish for a duplicate (thread,
	// group) registration (spec §4.2: "idempotent-guarded").
	ErrAlreadyPublisher = errors.New("bus: thread already publishes to group")
	// ErrAlreadySubscriber is returned by SubscribeMessages and
	// SubscribeEvents for a duplicate
	// (thread, group) registration.
	ErrAlreadySubscriber = errors.New("bus: thread already subscribes to group")
)

type subscriber struct {
	thread *rtloop.Thread
	// exactly one of msgID/eventWriter is set, selecting message-receiver
	// vs event-receiver mode (spec §4.2).
	isEventReceiver bool
	msgID           uint32
	eventWriter     rtloop.EventWriter
}

// Bus is a multicast message bus: threads publish (become potential
// senders) or subscribe (become receivers) to groups keyed by GroupID.
type Bus struct {
	mu          sync.Mutex
	publishers  map[GroupID]map[string]struct{} // group -> thread name
	subscribers map[GroupID][]subscriber
}

// NewBus constructs an empty multicast bus.
func NewBus() *Bus {
	return &Bus{
		publishers:  make(map[GroupID]map[string]struct{}),
		subscribers: make(map[GroupID][]subscriber),
	}
}

// Publish registers t as a potential sender to group. Idempotent-guarded:
// a duplicate registration returns ErrAlreadyPublisher.
func (b *Bus) Publish(t *rtloop.Thread, group GroupID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.publishers[group]
	if !ok {
		set = make(map[string]struct{})
		b.publishers[group] = set
	}
	if _, dup := set[t.Name()]; dup {
		return ErrAlreadyPublisher
	}
	set[t.Name()] = struct{}{}
	return nil
}

// SubscribeMessages registers t as a message-receiver for group: on send,
// the sender clones the envelope from pool and delivers it as msgID.
func (b *Bus) SubscribeMessages(t *rtloop.Thread, group GroupID, msgID uint32) error {
	return b.subscribe(t, group, subscriber{thread: t, msgID: msgID})
}

// SubscribeEvents registers t as an event-receiver for group: on send, no
// payload is delivered, only t's event (via writer) is posted.
func (b *Bus) SubscribeEvents(t *rtloop.Thread, group GroupID, writer rtloop.EventWriter) error {
	return b.subscribe(t, group, subscriber{thread: t, isEventReceiver: true, eventWriter: writer})
}

func (b *Bus) subscribe(t *rtloop.Thread, group GroupID, sub subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.subscribers[group] {
		if existing.thread.Name() == t.Name() {
			return ErrAlreadySubscriber
		}
	}
	b.subscribers[group] = append(b.subscribers[group], sub)
	return nil
}

// Send dispatches payload to every subscriber of group as msgID, cloning a
// fresh envelope per message-receiver subscriber from pool. It snapshots
// the subscriber list under the bus lock then dispatches outside it,
// matching spec §4.2's multicast_send.
//
// On partial failure (one subscriber's allocation fails), envelopes already
// cloned for other, as-yet-undelivered recipients are freed, and the first
// error encountered is returned; messages already delivered remain
// delivered (spec §4.2).
func (b *Bus) Send(from *rtloop.Thread, group GroupID, msgID uint32, pool *Pool, payload any) error {
	b.mu.Lock()
	snapshot := append([]subscriber(nil), b.subscribers[group]...)
	b.mu.Unlock()

	var firstErr error
	var clones []*rtloop.Envelope

	for _, sub := range snapshot {
		if sub.isEventReceiver {
			if err := sub.eventWriter.Post(); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}

		env, err := pool.Allocate()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		env.Payload = payload
		clones = append(clones, env)

		if err := from.Send(env, sub.thread, sub.msgID); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
