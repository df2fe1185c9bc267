package rtloop

// Handlers is the callback contract a thread's owner implements, re-
// expressed (per spec §9 design notes) as a four-method interface rather
// than raw function pointers: "a trait/interface with four methods
// (on_startup, on_shutdown, on_message, on_user_fds). Construction of a
// thread takes an instance of this trait plus a context value."
//
// Methods run strictly serialized and non-preemptively on the thread's own
// goroutine (spec §4.1): no two Handlers methods for the same Thread ever
// execute concurrently, and a method must never block indefinitely.
type Handlers interface {
	// OnStartup runs once, before the thread begins servicing its reactor.
	// A non-nil error aborts Spawn and tears the thread down.
	OnStartup(t *Thread) error

	// OnShutdown runs once, after an exit has been requested and before
	// the thread's goroutine returns. It should release resources the
	// handler itself owns; the runtime handles timers/events/fds/mailbox.
	OnShutdown(t *Thread)

	// OnMessage handles one message drawn from the thread's mailbox.
	OnMessage(t *Thread, msg *Envelope)

	// OnUserFDs is part of the interface but the runtime does not call it:
	// readiness of a user-registered descriptor is delivered only to the
	// callback passed to AddUserFD, so implementations may leave this a
	// no-op.
	OnUserFDs(t *Thread, fd int, events IOEvents)
}

// BaseHandlers provides no-op implementations of every Handlers method, so
// concrete handlers can embed it and override only what they need -
// matching the teacher's UnimplementedEvent pattern (logiface/logiface.go).
type BaseHandlers struct{}

func (BaseHandlers) OnStartup(*Thread) error         { return nil }
func (BaseHandlers) OnShutdown(*Thread)               {}
func (BaseHandlers) OnMessage(*Thread, *Envelope)      {}
func (BaseHandlers) OnUserFDs(*Thread, int, IOEvents) {}
