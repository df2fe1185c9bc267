package engine

import (
	"fmt"
	"net"
	"os"
)

// Notify implements the init-supervisor notification protocol of spec §6:
// if NOTIFY_SOCKET is present in the environment, send READY=1 on
// successful startup or ERRNO=<n> on startup failure. Both abstract
// (@-prefixed) and filesystem socket paths are honored, following
// systemd's sd_notify convention.
func Notify(ready bool, errno int) error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return nil
	}

	sockAddr := notifySockAddr(addr)

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: sockAddr, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("engine: notify dial %s: %w", addr, err)
	}
	defer conn.Close()

	var msg string
	if ready {
		msg = "READY=1"
	} else {
		msg = fmt.Sprintf("ERRNO=%d", errno)
	}

	_, err = conn.Write([]byte(msg))
	if err != nil {
		return fmt.Errorf("engine: notify write: %w", err)
	}
	return nil
}

// notifySockAddr translates an @-prefixed abstract-namespace address
// (the convention NOTIFY_SOCKET uses) into the leading-NUL form Linux's
// abstract Unix socket namespace expects; a filesystem path is returned
// unchanged.
func notifySockAddr(addr string) string {
	if addr != "" && addr[0] == '@' {
		return "\x00" + addr[1:]
	}
	return addr
}
