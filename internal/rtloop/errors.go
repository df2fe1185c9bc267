package rtloop

import "errors"

// Standard errors, following a flat sentinel-error convention.
var (
	// ErrThreadNotRunning is returned when an operation requires a running
	// thread and none is found.
	ErrThreadNotRunning = errors.New("rtloop: thread is not running")

	// ErrThreadAlreadyRunning is returned by Spawn-adjacent APIs misused on
	// an already-started thread.
	ErrThreadAlreadyRunning = errors.New("rtloop: thread is already running")

	// ErrTimerIDInUse is returned by CreateTimer when id collides with an
	// existing timer on the same thread (spec §4.1: "id unique per thread").
	ErrTimerIDInUse = errors.New("rtloop: timer id already in use")

	// ErrTimerNotFound is returned by StartTimer/StopTimer/Remaining for an
	// unknown timer id.
	ErrTimerNotFound = errors.New("rtloop: timer id not found")

	// ErrEventIDInUse is returned by CreateEvent for a colliding id.
	ErrEventIDInUse = errors.New("rtloop: event id already in use")

	// ErrFDAlreadyRegistered is returned by AddUserFD for an fd already
	// registered on this thread.
	ErrFDAlreadyRegistered = errors.New("rtloop: fd already registered")

	// ErrFDNotRegistered is returned by RemoveUserFD for an fd that was
	// never registered.
	ErrFDNotRegistered = errors.New("rtloop: fd not registered")

	// ErrPoolExhausted is returned when a bounded resource (e.g. a message
	// pool) has no free slots. Recoverable per spec §7 (transient local).
	ErrPoolExhausted = errors.New("rtloop: pool exhausted")

	// ErrSendWaitAsymmetry is the value SendWait panics with, when
	// SetDebugAssertions(true) is in effect, for a call on a thread pair
	// that would violate spec §4.1's "for any thread pair A/B, send_wait is
	// used in at most one direction" rule.
	ErrSendWaitAsymmetry = errors.New("rtloop: send_wait direction asymmetry violated")

	// ErrJoinTimeout is returned when a child thread fails to join within
	// the bounded shutdown timeout (spec §5, ~1s).
	ErrJoinTimeout = errors.New("rtloop: join timed out, thread orphaned")
)
