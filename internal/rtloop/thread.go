// Package rtloop implements a cooperative thread-and-message runtime: one
// single-threaded reactor per Thread, multiplexing an internal message
// queue, timers, events, and user I/O descriptors over a single poll
// loop, following an epoll-reactor idiom generalized to a named
// spawn/exit/send/send_wait contract.
package rtloop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging"
)

const joinTimeout = time.Second

// Thread is one cooperative reactor: exactly one goroutine runs its
// Handlers methods, strictly serialized (spec §4.1, §5).
type Thread struct {
	name     string
	handlers Handlers
	logger   logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state    atomic.Int32
	loopDone chan struct{}

	poller  *poller
	wakeFD  int // eventfd used to break epoll_wait from any goroutine
	wakeBuf [8]byte

	mailbox *mailbox

	timerMu   sync.Mutex
	timers    timerHeap
	timerByID map[TimerID]*timerEntry

	eventMu   sync.Mutex
	eventByID map[EventID]*eventSource

	monotonicBase time.Time

	reapPolicy ZombieReapPolicy

	parent   *Thread
	mu       sync.Mutex
	children map[string]*Thread
}

// Spawn creates and starts a child thread, blocking until its OnStartup
// handler returns (spec §4.1: "block until its startup handler returns").
// On failure the nascent thread is torn down and the error propagated.
func Spawn(parent *Thread, name string, handlers Handlers, logger logging.Logger) (*Thread, error) {
	t := &Thread{
		name:      name,
		handlers:  handlers,
		logger:    logging.OrDefault(logger).With(logging.F("thread", name)),
		loopDone:  make(chan struct{}),
		mailbox:   newMailbox(mailboxCapacityDefault),
		timerByID: make(map[TimerID]*timerEntry),
		eventByID: make(map[EventID]*eventSource),
		parent:    parent,
		children:  make(map[string]*Thread),
	}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.monotonicBase = time.Now()
	t.state.Store(int32(StateIdle))

	p, err := newPoller()
	if err != nil {
		return nil, fmt.Errorf("rtloop: spawn %s: %w", name, err)
	}
	t.poller = p

	wakeFD, err := createWakeFD()
	if err != nil {
		_ = p.close()
		return nil, fmt.Errorf("rtloop: spawn %s: %w", name, err)
	}
	t.wakeFD = wakeFD
	if err := t.poller.add(wakeFD, EventRead, func(fd int, _ IOEvents) { drainEventfd(fd) }); err != nil {
		_ = p.close()
		return nil, fmt.Errorf("rtloop: spawn %s: %w", name, err)
	}

	if parent != nil {
		parent.mu.Lock()
		parent.children[name] = t
		parent.mu.Unlock()
	}

	startErr := make(chan error, 1)
	go t.run(startErr)

	if err := <-startErr; err != nil {
		return nil, err
	}
	return t, nil
}

func createWakeFD() (int, error) {
	return eventfdNonblock()
}

func (t *Thread) monotonicNow() time.Time { return time.Now() }

// wake breaks the thread's epoll_wait exactly once per accumulated burst of
// calls (eventfd counter semantics), safe from any goroutine.
func (t *Thread) wake() {
	w := EventWriter{fd: t.wakeFD}
	_ = w.Post()
}

func (t *Thread) run(startErr chan<- error) {
	t.state.Store(int32(StateStarting))

	if err := t.handlers.OnStartup(t); err != nil {
		t.state.Store(int32(StateStopped))
		_ = t.poller.close()
		close(t.loopDone)
		startErr <- err
		return
	}

	t.state.Store(int32(StateRunning))
	startErr <- nil

	for t.state.Load() == int32(StateRunning) {
		t.tick()
	}

	t.handlers.OnShutdown(t)

	// Free any undrained mailbox messages back to their pools (spec §4.1
	// "Shutdown": "Undrained messages on internal queues are freed back to
	// their pools").
	for _, msg := range t.mailbox.drain() {
		msg.Free()
	}

	t.state.Store(int32(StateStopped))
	_ = t.poller.close()
	close(t.loopDone)
}

// tick runs one iteration: drain the mailbox, run due timers, then block in
// epoll_wait until the next timer deadline or I/O readiness.
func (t *Thread) tick() {
	for _, msg := range t.mailbox.drain() {
		t.dispatch(msg)
	}
	if t.state.Load() != int32(StateRunning) {
		return
	}

	remaining := t.runDueTimers()

	timeoutMillis := -1
	if remaining >= 0 {
		timeoutMillis = int(remaining / time.Millisecond)
		if timeoutMillis < 0 {
			timeoutMillis = 0
		}
	}

	_, _ = t.poller.wait(timeoutMillis)
}

func (t *Thread) dispatch(msg *Envelope) {
	t.safeCall(func() { t.handlers.OnMessage(t, msg) })
}

// safeCall runs fn with panic recovery: a single handler panic must not
// take down the whole process, but is logged at CRITICAL since it
// represents a programming error in a handler.
func (t *Thread) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Log(logging.LevelCritical, "handler panic recovered",
				logging.F("recover", fmt.Sprint(r)))
		}
	}()
	fn()
}

// Name returns the thread's name, stable for its lifetime.
func (t *Thread) Name() string { return t.name }

// State returns the thread's current lifecycle state.
func (t *Thread) State() State { return State(t.state.Load()) }

// Context returns a Context canceled when the thread begins exiting.
func (t *Thread) Context() context.Context { return t.ctx }

// Exit requests the current thread to stop: it finishes its current tick,
// runs OnShutdown, and returns. Only valid when called from within the
// thread's own handlers (spec §4.1: "current thread only"). If the thread
// has a parent, Exit posts a MsgExitNotification carrying code so the
// parent learns of the exit (spec §4.1: "notifies parent") rather than
// merely being unlinked from its children map.
func (t *Thread) Exit(code int) {
	t.state.Store(int32(StateStopping))
	t.cancel()
	if t.parent != nil {
		t.parent.mu.Lock()
		delete(t.parent.children, t.name)
		t.parent.mu.Unlock()

		_ = t.Send(&Envelope{Payload: ExitNotification{Child: t, Code: code}}, t.parent, MsgExitNotification)
	}
}

// SetReapPolicy configures what happens to t's bookkeeping once stopped
// (spec §4.1 "Shutdown": immediate vs defer-to-program-exit).
func (t *Thread) SetReapPolicy(p ZombieReapPolicy) { t.reapPolicy = p }

// ReapPolicy returns the thread's configured zombie-reap policy.
func (t *Thread) ReapPolicy() ZombieReapPolicy { return t.reapPolicy }

// Destroy stops a child thread: sends an exit signal, waits for it to join
// with a bounded timeout, then tears it down (spec §4.1, §5). Exceeding the
// timeout logs and orphans the thread rather than blocking forever.
func (t *Thread) Destroy() error {
	t.state.Store(int32(StateStopping))
	t.cancel()
	t.wake()

	if t.parent != nil {
		t.parent.mu.Lock()
		delete(t.parent.children, t.name)
		t.parent.mu.Unlock()
	}

	select {
	case <-t.loopDone:
		return nil
	case <-time.After(joinTimeout):
		t.logger.Log(logging.LevelCritical, "thread join timed out, orphaning")
		return ErrJoinTimeout
	}
}
