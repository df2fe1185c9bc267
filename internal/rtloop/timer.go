package rtloop

import (
	"container/heap"
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging"
)

// TimerID is a thread-local, typed timer handle (spec §9 design notes:
// "typed handles ... so misuse is a compile-time error").
type TimerID uint32

// ClockDomain selects the time base a timer's deadlines are computed
// against, per spec §4.1.
type ClockDomain int

const (
	// ClockMonotonic is immune to wall-clock steps; used for most internal
	// timers (selection interval, statistics interval, announce timeouts).
	ClockMonotonic ClockDomain = iota
	// ClockRealtime tracks wall-clock time, used for absolute-mode timers.
	ClockRealtime
)

// TimerExpiryFunc is invoked on the owning thread when a timer fires.
// missed reports how many additional periodic expiries elapsed before this
// dispatch could run (spec §4.1: "the runtime reports the count").
type TimerExpiryFunc func(id TimerID, missed int)

// missedExpiryWarnThreshold is the spec §4.1 threshold ("more than a
// threshold (two)") above which a diagnostic warning is logged.
const missedExpiryWarnThreshold = 2

type timerEntry struct {
	id       TimerID
	domain   ClockDomain
	periodic bool
	interval time.Duration
	deadline time.Time
	onExpiry TimerExpiryFunc
	active   bool // false once stopped, but may still be in the heap
	heapIdx  int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].heapIdx = i; h[j].heapIdx = j }
func (h *timerHeap) Push(x any)         { e := x.(*timerEntry); e.heapIdx = len(*h); *h = append(*h, e) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// CreateTimer creates a new (initially stopped) timer on the calling
// thread's loop. id must be unique per thread (spec §4.1).
func (t *Thread) CreateTimer(id TimerID, domain ClockDomain, onExpiry TimerExpiryFunc) error {
	if onExpiry == nil {
		panic("rtloop: nil onExpiry")
	}

	t.timerMu.Lock()
	defer t.timerMu.Unlock()

	if _, exists := t.timerByID[id]; exists {
		return ErrTimerIDInUse
	}

	t.timerByID[id] = &timerEntry{
		id:       id,
		domain:   domain,
		onExpiry: onExpiry,
	}
	return nil
}

// StartTimer (re)arms a timer. If periodic, it fires every interval; if
// absolute, interval is interpreted as wall time (spec §4.1).
func (t *Thread) StartTimer(id TimerID, periodic bool, absolute bool, interval time.Duration) error {
	t.timerMu.Lock()
	e, ok := t.timerByID[id]
	if !ok {
		t.timerMu.Unlock()
		return ErrTimerNotFound
	}
	if e.active {
		heap.Fix(&t.timers, e.heapIdx)
	}

	e.periodic = periodic
	e.interval = interval
	if absolute {
		e.deadline = time.Unix(0, interval.Nanoseconds())
	} else {
		e.deadline = t.clockNow(e.domain).Add(interval)
	}

	if !e.active {
		e.active = true
		heap.Push(&t.timers, e)
	} else {
		heap.Fix(&t.timers, e.heapIdx)
	}
	t.timerMu.Unlock()

	t.wake()
	return nil
}

// StopTimer disarms a timer; it remains defined and may be restarted.
func (t *Thread) StopTimer(id TimerID) error {
	t.timerMu.Lock()
	defer t.timerMu.Unlock()

	e, ok := t.timerByID[id]
	if !ok {
		return ErrTimerNotFound
	}
	if e.active {
		heap.Remove(&t.timers, e.heapIdx)
		e.active = false
	}
	return nil
}

// Remaining returns the time until id's next expiry, or 0 if stopped/past due.
func (t *Thread) Remaining(id TimerID) (time.Duration, error) {
	t.timerMu.Lock()
	defer t.timerMu.Unlock()

	e, ok := t.timerByID[id]
	if !ok {
		return 0, ErrTimerNotFound
	}
	if !e.active {
		return 0, nil
	}
	d := e.deadline.Sub(t.clockNow(e.domain))
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (t *Thread) clockNow(domain ClockDomain) time.Time {
	if domain == ClockRealtime {
		return time.Now()
	}
	return t.monotonicNow()
}

// runDueTimers pops and dispatches every timer whose deadline has elapsed,
// returning the duration until the next pending deadline (or -1 if none).
// Styled after a reactor loop's runTimers, generalized to
// named/periodic/missed-expiry-counted timers.
func (t *Thread) runDueTimers() time.Duration {
	t.timerMu.Lock()
	defer t.timerMu.Unlock()

	for len(t.timers) > 0 {
		e := t.timers[0]
		now := t.clockNow(e.domain)
		if e.deadline.After(now) {
			return e.deadline.Sub(now)
		}

		heap.Pop(&t.timers)
		e.active = false

		missed := 0
		nextDeadline := e.deadline
		if e.periodic && e.interval > 0 {
			for !nextDeadline.After(now) {
				nextDeadline = nextDeadline.Add(e.interval)
				missed++
			}
			missed-- // the expiry we're about to dispatch isn't "missed"
			if missed < 0 {
				missed = 0
			}
			e.deadline = nextDeadline
			e.active = true
			heap.Push(&t.timers, e)
		}

		cb, cbID := e.onExpiry, e.id
		t.timerMu.Unlock()
		if missed > missedExpiryWarnThreshold {
			t.logger.Log(logging.LevelWarning, "timer missed multiple expiries",
				logging.F("timer_id", cbID), logging.F("missed", missed))
		}
		t.safeCall(func() { cb(cbID, missed) })
		t.timerMu.Lock()
	}
	return -1
}
