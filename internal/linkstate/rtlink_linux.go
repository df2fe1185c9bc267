//go:build linux

package linkstate

import (
	"fmt"

	"github.com/mdlayher/netlink"
)

// rtlinkConnImpl adapts *netlink.Conn to the engine's rtlinkConn interface,
// extracting the underlying file descriptor via SyscallConn so it can be
// registered directly with the rtloop poller (spec §4.1: "user fds are
// registered with the reactor's epoll instance, not polled separately").
type rtlinkConnImpl struct {
	conn *netlink.Conn
	fd   int
}

func newRTLinkConn() (*rtlinkConnImpl, error) {
	conn, err := OpenRouteConn()
	if err != nil {
		return nil, err
	}
	sc, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("linkstate: route netlink SyscallConn: %w", err)
	}
	var fd int
	if ctrlErr := sc.Control(func(rawFD uintptr) { fd = int(rawFD) }); ctrlErr != nil {
		conn.Close()
		return nil, fmt.Errorf("linkstate: route netlink fd: %w", ctrlErr)
	}
	return &rtlinkConnImpl{conn: conn, fd: fd}, nil
}

func (c *rtlinkConnImpl) Fd() int { return c.fd }

func (c *rtlinkConnImpl) Dump() ([]Link, error) { return DumpLinks(c.conn) }

func (c *rtlinkConnImpl) Receive() ([]Link, []bool, error) { return ReceiveLinkEvents(c.conn) }

func (c *rtlinkConnImpl) Close() error { return c.conn.Close() }
