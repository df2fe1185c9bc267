package engine

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/config"
)

func TestRunAcquiresLockStartsControlSocketAndShutsDown(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.LockFilePath = filepath.Join(dir, "kernel_clock")
	cfg.ControlSocketPath = filepath.Join(dir, "control.sock")
	cfg.SelectionInterval = 10 * time.Millisecond
	cfg.StatisticsInterval = 10 * time.Millisecond

	e := New(cfg, clockreg.New(nil), nil)
	e.AddBinding("a", &fakeInstance{status: slaveStatus(1)}, nil)

	thread, lock, control, err := e.Run(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, thread)
	require.NotNil(t, lock)
	require.NotNil(t, control)

	// A second Run against the same lock file must fail: the instance is
	// still alive and holding it.
	e2 := New(cfg, clockreg.New(nil), nil)
	_, _, _, err = e2.Run(nil, nil)
	require.Error(t, err)

	// The control socket must be reachable and accept a command.
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: cfg.ControlSocketPath, Net: "unixgram"})
	require.NoError(t, err)
	_, err = conn.Write([]byte("dumptables"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.NoError(t, Shutdown(thread, lock, control))

	// Once released, a fresh Run against the same paths must succeed.
	e3 := New(cfg, clockreg.New(nil), nil)
	e3.AddBinding("a", &fakeInstance{status: slaveStatus(1)}, nil)
	thread3, lock3, control3, err := e3.Run(nil, nil)
	require.NoError(t, err)
	require.NoError(t, Shutdown(thread3, lock3, control3))
}
