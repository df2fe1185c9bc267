package engine

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNotifyNoopWithoutEnvVar(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	require.NoError(t, Notify(true, 0))
}

func TestNotifySendsReadyOverFilesystemSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "notify.sock")
	listener, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sockPath, Net: "unixgram"})
	require.NoError(t, err)
	defer listener.Close()

	t.Setenv("NOTIFY_SOCKET", sockPath)
	require.NoError(t, Notify(true, 0))

	buf := make([]byte, 64)
	require.NoError(t, listener.SetReadDeadline(time.Now().Add(time.Second)))
	n, err := listener.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "READY=1", string(buf[:n]))
}

func TestNotifySockAddrTranslatesAbstractPrefix(t *testing.T) {
	require.Equal(t, "\x00sfptpd-core", notifySockAddr("@sfptpd-core"))
	require.Equal(t, "/run/notify.sock", notifySockAddr("/run/notify.sock"))
}

func TestNotifySendsErrno(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "notify.sock")
	listener, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sockPath, Net: "unixgram"})
	require.NoError(t, err)
	defer listener.Close()

	t.Setenv("NOTIFY_SOCKET", sockPath)
	require.NoError(t, Notify(false, 5))

	buf := make([]byte, 64)
	require.NoError(t, listener.SetReadDeadline(time.Now().Add(time.Second)))
	n, err := listener.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ERRNO=5", string(buf[:n]))
}
