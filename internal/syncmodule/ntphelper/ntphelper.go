// Package ntphelper implements the NTP-helper sync-module variant of
// spec.md §4.6: a Unix-domain socket client to a local NTP-like daemon,
// reporting its offset, source, and stratum, and optionally controlling
// it via helper privileges.
package ntphelper

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
)

// daemonReport is the parsed response to a status query: offset
// (nanoseconds, signed), source description, and stratum.
type daemonReport struct {
	offset  time.Duration
	source  string
	stratum uint8
}

// conn abstracts the Unix-domain socket connection so tests can substitute
// a fake without a real daemon.
type conn interface {
	query() (daemonReport, error)
	control(command string) error
	Close() error
}

// socketConn is conn's real implementation: a line-oriented request over
// a Unix-domain datagram/stream socket, the same kind of control-channel
// idiom internal/engine's own control socket uses, just aimed at a peer
// daemon instead of this one's own operators.
type socketConn struct {
	c *net.UnixConn
	r *bufio.Reader
}

// Dial connects to the NTP-like daemon's control socket at path.
func Dial(path string) (*socketConn, error) {
	c, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("ntphelper: dial %s: %w", path, err)
	}
	return &socketConn{c: c, r: bufio.NewReader(c)}, nil
}

func (s *socketConn) Close() error { return s.c.Close() }

// query sends a "status\n" request and parses a "offset=<ns> source=<s>
// stratum=<n>\n" reply.
func (s *socketConn) query() (daemonReport, error) {
	if _, err := io.WriteString(s.c, "status\n"); err != nil {
		return daemonReport{}, fmt.Errorf("ntphelper: query: %w", err)
	}
	line, err := s.r.ReadString('\n')
	if err != nil {
		return daemonReport{}, fmt.Errorf("ntphelper: read reply: %w", err)
	}
	return parseReport(line)
}

// control sends a helper-privilege command (e.g. "panic_off", "burst") and
// expects a single "ok\n" or "error <msg>\n" reply.
func (s *socketConn) control(command string) error {
	if _, err := io.WriteString(s.c, command+"\n"); err != nil {
		return fmt.Errorf("ntphelper: control: %w", err)
	}
	line, err := s.r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("ntphelper: read control reply: %w", err)
	}
	line = strings.TrimSpace(line)
	if line != "ok" {
		return fmt.Errorf("ntphelper: control %q failed: %s", command, line)
	}
	return nil
}

func parseReport(line string) (daemonReport, error) {
	var r daemonReport
	for _, field := range strings.Fields(line) {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch k {
		case "offset":
			ns, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return daemonReport{}, fmt.Errorf("ntphelper: bad offset field %q: %w", v, err)
			}
			r.offset = time.Duration(ns)
		case "source":
			r.source = v
		case "stratum":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil {
				return daemonReport{}, fmt.Errorf("ntphelper: bad stratum field %q: %w", v, err)
			}
			r.stratum = uint8(n)
		}
	}
	return r, nil
}

// Client is the ntphelper sync-module instance.
type Client struct {
	syncmodule.Base

	conn     conn
	priority uint8

	last daemonReport
}

// New constructs a Client wrapping an already-dialed conn (typically the
// result of Dial).
func New(c conn, priority uint8) *Client {
	return &Client{conn: c, priority: priority}
}

// Poll queries the daemon and records the latest report. It should be
// called once per selection interval by the owning thread, the same as
// ptp.Port's internal tick.
func (c *Client) Poll() error {
	report, err := c.conn.query()
	if err != nil {
		return err
	}
	c.last = report
	return nil
}

// GetStatus implements syncmodule.Instance.
func (c *Client) GetStatus() (syncmodule.SyncInstanceStatus, error) {
	return syncmodule.SyncInstanceStatus{
		State:              syncmodule.StateSlave,
		OffsetFromMaster:   c.last.offset,
		ConfiguredPriority: c.priority,
		UserPriority:       c.priority,
		LocalAccuracy:      float64(c.last.stratum) * 1e6, // coarse: one millisecond per stratum level
		Grandmaster: syncmodule.GrandmasterDescriptor{
			ClockClass:    uint8(calibrateClass(c.last.stratum)),
			TimeSource:    syncmodule.TimeSourceNTP,
			ClockAccuracy: 0xFE,
			StepsRemoved:  uint16(c.last.stratum),
		},
	}, nil
}

func calibrateClass(stratum uint8) int {
	if stratum == 0 {
		return 6 // synchronized to a primary reference
	}
	return 187 // "degradation alarm", IEEE 1588 table 5, used here for any non-primary stratum
}

// StepClock asks the daemon's helper privilege to step its own clock;
// ntphelper itself does not own a registry clock handle (spec §4.6:
// "can optionally control it via helper privileges").
func (c *Client) StepClock(offset time.Duration) error {
	return c.conn.control(fmt.Sprintf("step %d", offset.Nanoseconds()))
}

// SaveState writes a freeform text record of the last daemon report.
func (c *Client) SaveState(w io.Writer) error {
	_, err := fmt.Fprintf(w, "ntphelper source=%s stratum=%d offset=%s\n", c.last.source, c.last.stratum, c.last.offset)
	return err
}

// WriteTopology writes a one-line topology record.
func (c *Client) WriteTopology(w io.Writer) error {
	_, err := fmt.Fprintf(w, "ntphelper -> %s (stratum %d)\n", c.last.source, c.last.stratum)
	return err
}

var _ syncmodule.Instance = (*Client)(nil)
