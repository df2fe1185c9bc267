package engine

import (
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/linkstate"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/rtloop"
)

const (
	timerSelection rtloop.TimerID = iota + 1
	timerStatistics
)

// handlers adapts Engine onto rtloop.Handlers, so the engine's
// selection-interval and statistics-interval ticks run on their own
// cooperative reactor thread (spec §4.8: the engine owns "the registry,
// servos, and sync-module threads" and drives periodic ticks) rather than
// a bare goroutine with a time.Ticker.
type handlers struct {
	rtloop.BaseHandlers
	e *Engine
}

func (h *handlers) OnStartup(t *rtloop.Thread) error {
	h.e.setSelf(t)

	if err := t.CreateTimer(timerSelection, rtloop.ClockMonotonic, func(rtloop.TimerID, int) {
		if err := h.e.Tick(time.Now()); err != nil {
			h.e.logger.Log(logging.LevelWarning, "selection tick failed", logging.F("error", err))
		}
	}); err != nil {
		return err
	}
	if err := t.StartTimer(timerSelection, true, false, h.e.cfg.SelectionInterval); err != nil {
		return err
	}

	if err := t.CreateTimer(timerStatistics, rtloop.ClockMonotonic, func(rtloop.TimerID, int) {
		h.e.EmitStatistics()
		if err := h.e.SaveState(); err != nil {
			h.e.logger.Log(logging.LevelWarning, "periodic save_state failed", logging.F("error", err))
		}
	}); err != nil {
		return err
	}
	return t.StartTimer(timerStatistics, true, false, h.e.cfg.StatisticsInterval)
}

// OnMessage handles a linkstate.MsgLinkTableUpdated notification (see
// linkstate.Engine.SetNotifier/engine.Engine.SetLinkRing): it runs the
// hotplug rescan against the new table (spec §4.8: "orchestrating
// hotplug ... when the link table changes") and releases the engine's
// reference (spec §4.3: "each consumer must release(version) exactly
// once"). Any other message ID is ignored.
func (h *handlers) OnMessage(t *rtloop.Thread, msg *rtloop.Envelope) {
	defer msg.Free()
	upd, ok := msg.Payload.(linkstate.LinkTableUpdate)
	if msg.ID != linkstate.MsgLinkTableUpdated || !ok {
		return
	}
	h.e.Rescan(upd.Table)
	h.e.mu.Lock()
	ring := h.e.linkRing
	h.e.mu.Unlock()
	if ring != nil {
		if err := ring.Release(upd.Table); err != nil {
			h.e.logger.Log(logging.LevelCritical, "link table release failed", logging.F("error", err))
		}
	}
}

// Run spawns the engine's own reactor thread under parent (nil for a
// root thread), acquires the daemon lock file, starts the control
// socket, and sends the init-supervisor READY/ERRNO notification (spec
// §4.8's top-level responsibilities and §6's external interfaces).
//
// On success the caller owns the returned Thread/LockFile/ControlServer
// and is responsible for calling Shutdown with them once the process is
// asked to exit; on failure every partially-acquired resource has already
// been released.
func (e *Engine) Run(parent *rtloop.Thread, logger logging.Logger) (*rtloop.Thread, *LockFile, *ControlServer, error) {
	lock, err := AcquireLockFile(e.cfg.LockFilePath)
	if err != nil {
		_ = Notify(false, 1)
		return nil, nil, nil, err
	}

	thread, err := rtloop.Spawn(parent, "engine", &handlers{e: e}, logger)
	if err != nil {
		_ = lock.Release()
		_ = Notify(false, 1)
		return nil, nil, nil, err
	}

	control, err := ListenControlSocket(e.cfg.ControlSocketPath, e, func() { _ = thread.Destroy() })
	if err != nil {
		_ = thread.Destroy()
		_ = lock.Release()
		_ = Notify(false, 1)
		return nil, nil, nil, err
	}
	go control.Serve()

	if err := Notify(true, 0); err != nil {
		e.logger.Log(logging.LevelWarning, "sd_notify READY failed", logging.F("error", err))
	}

	return thread, lock, control, nil
}

// Shutdown releases every resource Run acquired, in reverse order.
func Shutdown(thread *rtloop.Thread, lock *LockFile, control *ControlServer) error {
	var firstErr error
	if control != nil {
		if err := control.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if thread != nil {
		if err := thread.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if lock != nil {
		if err := lock.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
