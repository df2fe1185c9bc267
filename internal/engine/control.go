package engine

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging"
)

// ControlServer serves the Unix-domain datagram control socket of spec
// §6: "exit, logrotate, stepclocks, selectinstance <name>, testmode <id>
// <p0> <p1> <p2>, dumptables, pid_adjust <kp> <ki> <kd> <servo-mask>
// [reset]. Responses are informational log lines" -- this core logs the
// outcome of each command rather than writing a reply datagram, matching
// that wording literally.
type ControlServer struct {
	engine *Engine
	conn   *net.UnixConn
	logger logging.Logger

	onExit func()

	closeOnce sync.Once
	done      chan struct{}
}

// ListenControlSocket opens path as a Unix datagram socket and returns a
// ControlServer ready to Serve. onExit is invoked (once, asynchronously
// from Serve's goroutine) when an "exit" command is received.
func ListenControlSocket(path string, e *Engine, onExit func()) (*ControlServer, error) {
	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("engine: listen control socket %s: %w", path, err)
	}
	return &ControlServer{
		engine: e,
		conn:   conn,
		logger: e.logger.With(logging.F("component", "control")),
		onExit: onExit,
		done:   make(chan struct{}),
	}, nil
}

// Serve reads and dispatches commands until Close is called. It is meant
// to be run in its own goroutine.
func (c *ControlServer) Serve() {
	buf := make([]byte, 4096)
	for {
		n, _, err := c.conn.ReadFromUnix(buf)
		if err != nil {
			select {
			case <-c.done:
				return
			default:
				c.logger.Log(logging.LevelWarning, "control socket read failed", logging.F("error", err))
				return
			}
		}
		c.dispatch(string(buf[:n]))
	}
}

// Close stops Serve and releases the underlying socket (and, for a
// filesystem-path socket, removes it).
func (c *ControlServer) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	addr, _ := c.conn.LocalAddr().(*net.UnixAddr)
	err := c.conn.Close()
	if addr != nil && addr.Name != "" && addr.Name[0] != '@' {
		_ = os.Remove(addr.Name)
	}
	return err
}

func (c *ControlServer) dispatch(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "exit":
		c.logger.Log(logging.LevelNotice, "control: exit requested")
		if c.onExit != nil {
			go c.onExit()
		}
	case "logrotate":
		if c.engine.LogRotate == nil {
			c.logger.Log(logging.LevelWarning, "control: logrotate requested but no handler installed")
			return
		}
		if err := c.engine.LogRotate(); err != nil {
			c.logger.Log(logging.LevelError, "control: logrotate failed", logging.F("error", err))
			return
		}
		c.logger.Log(logging.LevelNotice, "control: logs rotated")
	case "stepclocks":
		if err := c.engine.StepClocks(); err != nil {
			c.logger.Log(logging.LevelWarning, "control: stepclocks reported an error", logging.F("error", err))
			return
		}
		c.logger.Log(logging.LevelNotice, "control: clocks stepped")
	case "selectinstance":
		if len(args) != 1 {
			c.logger.Log(logging.LevelWarning, "control: selectinstance requires exactly one argument")
			return
		}
		if args[0] == "auto" {
			c.engine.ClearSelectionOverride()
			c.logger.Log(logging.LevelNotice, "control: selection override cleared")
			return
		}
		if err := c.engine.SelectInstance(args[0]); err != nil {
			c.logger.Log(logging.LevelWarning, "control: selectinstance failed", logging.F("error", err))
			return
		}
		c.logger.Log(logging.LevelNotice, "control: instance selected", logging.F("instance", args[0]))
	case "testmode":
		if len(args) != 4 {
			c.logger.Log(logging.LevelWarning, "control: testmode requires id and 3 parameters")
			return
		}
		id, err1 := strconv.Atoi(args[0])
		p0, err2 := strconv.ParseFloat(args[1], 64)
		p1, err3 := strconv.ParseFloat(args[2], 64)
		p2, err4 := strconv.ParseFloat(args[3], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			c.logger.Log(logging.LevelWarning, "control: testmode arguments unparseable")
			return
		}
		c.engine.TestMode(id, p0, p1, p2)
		c.logger.Log(logging.LevelNotice, "control: test mode activated", logging.F("id", id))
	case "dumptables":
		var sb strings.Builder
		if err := c.engine.DumpTables(&sb); err != nil {
			c.logger.Log(logging.LevelWarning, "control: dumptables failed", logging.F("error", err))
			return
		}
		c.logger.Log(logging.LevelInfo, "control: table dump", logging.F("tables", sb.String()))
	case "pid_adjust":
		if len(args) < 4 {
			c.logger.Log(logging.LevelWarning, "control: pid_adjust requires kp ki kd servo-mask [reset]")
			return
		}
		kP, err1 := strconv.ParseFloat(args[0], 64)
		kI, err2 := strconv.ParseFloat(args[1], 64)
		kD, err3 := strconv.ParseFloat(args[2], 64)
		mask, err4 := strconv.ParseUint(args[3], 0, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			c.logger.Log(logging.LevelWarning, "control: pid_adjust arguments unparseable")
			return
		}
		reset := len(args) >= 5 && args[4] == "reset"
		c.engine.PIDAdjust(kP, kI, kD, mask, reset)
		c.logger.Log(logging.LevelNotice, "control: pid gains adjusted", logging.F("mask", mask), logging.F("reset", reset))
	default:
		c.logger.Log(logging.LevelWarning, "control: unrecognized command", logging.F("command", cmd))
	}
}
