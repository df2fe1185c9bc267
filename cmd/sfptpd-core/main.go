// Command sfptpd-core wires a config.EngineConfig built from defaults
// into an engine.Engine, a linkstate.Engine, and a freerun sync-module
// instance, then runs the assembled daemon until SIGINT/SIGTERM.
//
// Building the configuration from a file or command-line flags, forking
// into the background, and dropping privileges are left to the
// deployment wrapping this binary, which can instead call
// engine.New/engine.Engine.Run directly with its own config-loading and
// privileged-helper glue. Additional sync-module variants (ptp, pps,
// ntphelper) are constructed and bound the same way freerun is below;
// this core wires only freerun so the assembly stays readable.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/bus"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/config"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/engine"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/linkstate"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging/zlog"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/servo"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule/freerun"
)

// linkTableGroup is the bus.GroupID the link-state engine multicasts
// table updates on; this core has exactly one subscriber (the engine
// thread's hotplug rescan), so a single fixed group id is enough.
const linkTableGroup bus.GroupID = 1

// initialTableTimeout bounds how long main waits for the netlink thread's
// first published link table before starting the freerun instance
// without one (the instance then runs no clock selection and keeps
// reporting INITIALIZING).
const initialTableTimeout = 2 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sfptpd-core:", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zlog.New(os.Stderr, logging.LevelInfo)
	cfg := config.Default()

	registry := clockreg.New(logger)
	eng := engine.New(cfg, registry, logger)
	eng.LogRotate = func() error {
		logger.Log(logging.LevelNotice, "log rotation requested; no-op in this core")
		return nil
	}

	thread, lock, control, err := eng.Run(nil, logger)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	// Wire the link-state engine's publications onto the engine thread's
	// mailbox (spec §4.8: "a dedicated netlink thread publishes link-table
	// versions"; §4.2's multicast_send carries the notification). One
	// consumer (the engine's own hotplug rescan) subscribes, so New is
	// given a consumer count of one to match the single SubscribeMessages
	// registration.
	msgBus := bus.NewBus()
	notifyPool := bus.NewPool(bus.KindGlobal, 4)
	if err := msgBus.SubscribeMessages(thread, linkTableGroup, linkstate.MsgLinkTableUpdated); err != nil {
		_ = engine.Shutdown(thread, lock, control)
		return fmt.Errorf("subscribe link table updates: %w", err)
	}

	linkEngine := linkstate.New(1, logger)
	linkEngine.SetNotifier(msgBus, linkTableGroup, notifyPool)
	eng.SetLinkRing(linkEngine.Ring())

	if err := linkEngine.Start(nil); err != nil {
		_ = engine.Shutdown(thread, lock, control)
		return fmt.Errorf("start link-state engine: %w", err)
	}

	initialTable := waitForInitialTable(linkEngine, initialTableTimeout)
	if initialTable != nil {
		registry.RescanLinux(initialTable)
		defer linkEngine.Ring().Release(initialTable)
	} else {
		logger.Log(logging.LevelWarning, "no link table available before freerun startup")
	}

	freerunInstance := freerun.NewThreaded(registry, "", 128, initialTable)
	if err := freerunInstance.Start(thread, logger); err != nil {
		_ = linkEngine.Stop()
		_ = engine.Shutdown(thread, lock, control)
		return fmt.Errorf("start freerun instance: %w", err)
	}
	eng.AddBinding("freerun0", freerunInstance, servo.New(servo.Default()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			if eng.LogRotate != nil {
				_ = eng.LogRotate()
			}
		default:
			signal.Stop(sigCh)
			if err := freerunInstance.Thread().Destroy(); err != nil {
				logger.Log(logging.LevelWarning, "freerun shutdown failed", logging.F("error", err))
			}
			if err := linkEngine.Stop(); err != nil {
				logger.Log(logging.LevelWarning, "link-state engine shutdown failed", logging.F("error", err))
			}
			return engine.Shutdown(thread, lock, control)
		}
	}
	return nil
}

// waitForInitialTable polls the link-state engine's ring for its first
// publication, which arrives asynchronously after the initial netlink
// dump and quiescence delay (spec §4.3). It returns nil, rather than
// blocking indefinitely, if nothing is published within timeout.
func waitForInitialTable(linkEngine *linkstate.Engine, timeout time.Duration) *linkstate.LinkTable {
	deadline := time.Now().Add(timeout)
	for {
		if tbl := linkEngine.Ring().Latest(); tbl != nil {
			return tbl
		}
		if time.Now().After(deadline) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
}
