package linkstate

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/bus"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/rtloop"
)

// MsgLinkTableUpdated is the bus message ID the engine sends on its
// notifier group (see SetNotifier) after each successful publication
// (spec §4.8: "orchestrating hotplug ... when the link table changes").
const MsgLinkTableUpdated uint32 = 1

// LinkTableUpdate is the payload delivered with MsgLinkTableUpdated. The
// recipient owns the embedded reference (spec §4.3 "Reference counting":
// "each consumer must release(version) exactly once") and must call
// Ring.Release(Table) exactly once once it is done with it.
type LinkTableUpdate struct {
	Table *LinkTable
}

// quiescenceDelay is how long the engine waits after the last observed
// netlink event before finalizing a work-in-progress table (spec §4.3:
// "a quiescence timer fires after a burst of events").
const quiescenceDelay = 200 * time.Millisecond

// genetlinkRetryInterval governs how often the engine retries resolving a
// missing genetlink family (spec §4.3: "defer-and-retry on each subsequent
// service cycle").
const genetlinkRetryInterval = 5 * time.Second

// Engine is the link-state reconciliation engine: an rtloop.Thread that
// owns a route-netlink socket, lazily-dialed team/ethtool genetlink
// clients, a work-in-progress table, and a publication Ring.
//
// Styled after an epoll-driven single-thread reactor: the route-netlink fd
// is registered as a user fd, and both the quiescence and genetlink-retry
// timers are rtloop timers.
type Engine struct {
	rtloop.BaseHandlers

	thread *rtloop.Thread
	logger logging.Logger

	ring *Ring

	routeConn rtlinkConn
	ethtool   *EthtoolClient
	team      *TeamClient

	wip          map[int32]*Link
	needRescan   bool
	needTeamScan bool

	consumerCount int32

	// notifyBus/notifyGroup/notifyPool configure a spec §4.2 multicast
	// notification sent after each successful publication (see
	// SetNotifier); notifyBus is nil until configured, in which case no
	// notification is sent.
	notifyBus   *bus.Bus
	notifyGroup bus.GroupID
	notifyPool  *bus.Pool
}

// SetNotifier wires the engine to publish a LinkTableUpdate over b's group
// after each successful publication (spec §4.2's multicast_send, spec
// §4.8: consumers "rebuilding servo bindings when the link table
// changes"). consumerCount passed to New must equal the number of
// subscribers on group, since the ring's reference count and the bus
// fan-out both assume exactly one Release call per delivered message.
// Call this before Start.
func (e *Engine) SetNotifier(b *bus.Bus, group bus.GroupID, pool *bus.Pool) {
	e.notifyBus = b
	e.notifyGroup = group
	e.notifyPool = pool
}

// Timer IDs local to the engine's thread (spec §9 design notes: typed
// handles are unique per thread, so two small constants suffice here).
const (
	timerQuiesce rtloop.TimerID = iota + 1
	timerGenetlinkRetry
)

// rtlinkConn is the subset of *netlink.Conn the engine uses, isolated so
// tests can substitute a fake without opening a real socket.
type rtlinkConn interface {
	Fd() int
	Dump() ([]Link, error)
	Receive() (links []Link, deleted []bool, err error)
	Close() error
}

// New constructs an Engine with consumerCount subscribers expected per
// published version (spec §4.3 "Reference counting"). It does not open any
// kernel socket until Start is called.
func New(consumerCount int32, logger logging.Logger) *Engine {
	return &Engine{
		ring:          NewRing(),
		wip:           make(map[int32]*Link),
		consumerCount: consumerCount,
		logger:        logging.OrDefault(logger),
	}
}

// Ring exposes the engine's publication ring for subscribers.
func (e *Engine) Ring() *Ring { return e.ring }

// Start spawns the engine's reactor thread, opens the route-netlink
// connection, and issues the initial dump (spec §4.3: "the engine issues
// an explicit dump on startup").
func (e *Engine) Start(parent *rtloop.Thread) error {
	t, err := rtloop.Spawn(parent, "linkstate", e, e.logger)
	if err != nil {
		return fmt.Errorf("linkstate: spawn: %w", err)
	}
	e.thread = t
	return nil
}

// Stop tears down the engine's thread and kernel connections.
func (e *Engine) Stop() error {
	if e.thread != nil {
		if err := e.thread.Destroy(); err != nil {
			return err
		}
	}
	if e.team != nil {
		e.team.Close()
	}
	if e.ethtool != nil {
		e.ethtool.Close()
	}
	if e.routeConn != nil {
		e.routeConn.Close()
	}
	return nil
}

// OnStartup implements rtloop.Handlers.
func (e *Engine) OnStartup(t *rtloop.Thread) error {
	e.thread = t

	conn, err := newRTLinkConn()
	if err != nil {
		return fmt.Errorf("linkstate: open route netlink: %w", err)
	}
	e.routeConn = conn

	if err := t.AddUserFD(conn.Fd(), true, false, e.onRouteFD); err != nil {
		conn.Close()
		return fmt.Errorf("linkstate: register route netlink fd: %w", err)
	}

	if err := t.CreateTimer(timerQuiesce, rtloop.ClockMonotonic, e.onQuiesce); err != nil {
		return fmt.Errorf("linkstate: create quiescence timer: %w", err)
	}
	if err := t.CreateTimer(timerGenetlinkRetry, rtloop.ClockMonotonic, e.onRetryGenetlink); err != nil {
		return fmt.Errorf("linkstate: create retry timer: %w", err)
	}

	e.dialGenetlink()
	e.fullDump()
	return nil
}

// OnShutdown implements rtloop.Handlers.
func (e *Engine) OnShutdown(t *rtloop.Thread) {
	if e.routeConn != nil {
		t.RemoveUserFD(e.routeConn.Fd())
	}
}

// dialGenetlink attempts to resolve the team and ethtool families. Failure
// is recorded as a need-rescan condition rather than propagated: spec §4.3
// requires "defer-and-retry on each subsequent service cycle" for a
// missing genetlink family, not a fatal error.
func (e *Engine) dialGenetlink() {
	if e.ethtool == nil {
		if c, err := DialEthtool(); err == nil {
			e.ethtool = c
		} else {
			e.needRescan = true
			e.logger.Log(logging.LevelWarning, "ethtool genetlink family unavailable, deferring", logging.F("error", err))
		}
	}
	if e.team == nil {
		if c, err := DialTeam(); err == nil {
			e.team = c
		} else {
			e.needTeamScan = true
			e.logger.Log(logging.LevelWarning, "team genetlink family unavailable, deferring", logging.F("error", err))
		}
	}
	if e.ethtool == nil || e.team == nil {
		e.thread.StartTimer(timerGenetlinkRetry, false, false, genetlinkRetryInterval)
	}
}

func (e *Engine) onRetryGenetlink(rtloop.TimerID, int) {
	e.dialGenetlink()
	if e.ethtool != nil && e.team != nil {
		e.needRescan = false
		e.needTeamScan = false
	}
}

// fullDump re-dumps the entire link table from route netlink, discarding
// any in-progress state (spec §4.3: "Kernel event-buffer overrun → issue a
// full re-dump").
func (e *Engine) fullDump() {
	links, err := e.routeConn.Dump()
	if err != nil {
		e.logger.Log(logging.LevelError, "link table dump failed", logging.F("error", err))
		return
	}
	e.wip = make(map[int32]*Link, len(links))
	for i := range links {
		l := links[i]
		e.enrich(&l)
		e.wip[l.Index] = &l
	}
	e.armQuiescence()
}

func (e *Engine) onRouteFD(fd int, events rtloop.IOEvents) {
	links, deleted, err := e.routeConn.Receive()
	if err != nil {
		if errors.Is(err, unix.ENOBUFS) {
			e.fullDump()
			return
		}
		e.logger.Log(logging.LevelError, "link event receive failed", logging.F("error", err))
		return
	}
	for i, l := range links {
		if deleted[i] {
			delete(e.wip, l.Index)
			continue
		}
		// Inherit team/ethtool fields from the prior base record (spec
		// §4.3: "inheriting team and ethtool fields from the prior
		// version when an interface's base record updates").
		if prev, ok := e.wip[l.Index]; ok {
			l.ActiveSlave = prev.ActiveSlave
			l.PHCIndex = prev.PHCIndex
			l.TSCaps = prev.TSCaps
		}
		e.enrich(&l)
		row := l
		e.wip[row.Index] = &row
	}
	e.armQuiescence()
}

// enrich fetches ethtool TSINFO (and, for team interfaces, active-port
// info) for l, folding results directly into it. A failed query leaves
// l's existing PHC/TSCaps/ActiveSlave untouched; a missing ethtool or
// team client additionally sets the relevant need-rescan flag so the next
// dialGenetlink/onRetryGenetlink cycle retries (spec §4.3).
func (e *Engine) enrich(l *Link) {
	if e.ethtool != nil {
		if phc, caps, ok, err := e.ethtool.TSInfo(l.Name); err == nil && ok {
			l.PHCIndex = phc
			l.TSCaps = caps
		}
	} else {
		e.needRescan = true
	}
	if l.Kind == KindTeam {
		if e.team != nil {
			if active, err := e.team.ActivePort(l.Index); err == nil && active != 0 {
				l.ActiveSlave = active
			}
		} else {
			e.needTeamScan = true
		}
	}
}

func (e *Engine) armQuiescence() {
	e.thread.StartTimer(timerQuiesce, false, false, quiescenceDelay)
}

// onQuiesce finalizes the work-in-progress table: compares it row by row
// against the previous published version (spec §4.3 "Publication") and
// publishes only if something changed.
func (e *Engine) onQuiesce(rtloop.TimerID, int) {
	e.finalize()
}

func (e *Engine) finalize() {
	prev := e.ring.Latest()
	changed := e.diff(prev)
	if prev != nil {
		e.ring.Release(prev)
	}
	if !changed {
		return
	}

	rows := make([]Link, 0, len(e.wip))
	for _, l := range e.wip {
		rows = append(rows, *l)
	}

	tbl, err := e.ring.Publish(rows, e.consumerCount)
	if err != nil {
		// Ring head still referenced: spec §4.3 "the engine marks itself
		// as needing re-service once a slot is freed". Re-arm the
		// quiescence timer briefly rather than busy-loop.
		e.thread.StartTimer(timerQuiesce, false, false, quiescenceDelay)
		return
	}

	if e.notifyBus != nil {
		if serr := e.notifyBus.Send(e.thread, e.notifyGroup, MsgLinkTableUpdated, e.notifyPool, LinkTableUpdate{Table: tbl}); serr != nil {
			e.logger.Log(logging.LevelWarning, "link table notification failed", logging.F("error", serr))
		}
	}
}

// diff reports whether e.wip differs from prev under spec §4.3's change
// predicate, including inserts and deletes.
func (e *Engine) diff(prev *LinkTable) bool {
	if prev == nil {
		return len(e.wip) > 0
	}
	if len(prev.Rows) != len(e.wip) {
		return true
	}
	for i := range prev.Rows {
		cur, ok := e.wip[prev.Rows[i].Index]
		if !ok {
			return true
		}
		if significantlyDiffers(&prev.Rows[i], cur) {
			return true
		}
	}
	return false
}
