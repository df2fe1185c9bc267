package clockreg

import "sync"

// LockToken threads re-entry through a call chain that already holds the
// process-wide hardware-state lock, implementing spec §4.4's "recursive
// process-wide hardware_state_lock ... a thread may re-enter" via the
// borrow-token redesign spec §9 names as an acceptable alternative to a
// true OS recursive mutex (Go's sync.Mutex has none): "redesign to pass
// borrow tokens through call chains that need the same guarantee."
//
// A nil *LockToken means "no token held yet"; functions that may be called
// either top-level or re-entrantly take one as their first parameter and
// call HardwareStateLock.Acquire(tok) before touching shared clock state.
type LockToken struct {
	held bool
}

// HardwareStateLock is the single process-wide lock spec §4.4 requires:
// "mutations are serialized on this lock; reads that require consistency
// also take it."
type HardwareStateLock struct {
	mu sync.Mutex
}

// Acquire locks the guard unless tok already indicates this call chain
// holds it, in which case it is a no-op re-entry. The returned release
// function must always be called, typically via defer.
func (l *HardwareStateLock) Acquire(tok *LockToken) (release func()) {
	if tok != nil && tok.held {
		return func() {}
	}
	l.mu.Lock()
	if tok != nil {
		tok.held = true
	}
	return func() {
		if tok != nil {
			tok.held = false
		}
		l.mu.Unlock()
	}
}
