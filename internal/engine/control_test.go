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

func newControlTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(config.Default(), clockreg.New(nil), nil)
}

func sendCommand(t *testing.T, path, cmd string) {
	t.Helper()
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(cmd))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond) // let the server goroutine dispatch
}

func TestControlServerSelectInstance(t *testing.T) {
	e := newControlTestEngine(t)
	a := &fakeInstance{status: slaveStatus(128)}
	b := &fakeInstance{status: slaveStatus(64)}
	e.AddBinding("a", a, nil)
	e.AddBinding("b", b, nil)

	sockPath := filepath.Join(t.TempDir(), "control.sock")
	srv, err := ListenControlSocket(sockPath, e, nil)
	require.NoError(t, err)
	go srv.Serve()
	defer srv.Close()

	sendCommand(t, sockPath, "selectinstance a")
	require.NoError(t, e.Tick(time.Now()))
	require.Equal(t, "a", e.ElectedName())
}

func TestControlServerStepClocks(t *testing.T) {
	e := newControlTestEngine(t)
	a := &fakeInstance{}
	e.AddBinding("a", a, nil)

	sockPath := filepath.Join(t.TempDir(), "control.sock")
	srv, err := ListenControlSocket(sockPath, e, nil)
	require.NoError(t, err)
	go srv.Serve()
	defer srv.Close()

	sendCommand(t, sockPath, "stepclocks")
	require.Equal(t, 1, a.stepCount)
}

func TestControlServerExitInvokesCallback(t *testing.T) {
	e := newControlTestEngine(t)

	exited := make(chan struct{})
	sockPath := filepath.Join(t.TempDir(), "control.sock")
	srv, err := ListenControlSocket(sockPath, e, func() { close(exited) })
	require.NoError(t, err)
	go srv.Serve()
	defer srv.Close()

	sendCommand(t, sockPath, "exit")

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("exit callback was not invoked")
	}
}

func TestControlServerTestMode(t *testing.T) {
	e := newControlTestEngine(t)
	a := &fakeInstance{}
	e.AddBinding("a", a, nil)

	sockPath := filepath.Join(t.TempDir(), "control.sock")
	srv, err := ListenControlSocket(sockPath, e, nil)
	require.NoError(t, err)
	go srv.Serve()
	defer srv.Close()

	sendCommand(t, sockPath, "testmode 2 1.5 2.5 3.5")
	id, p0, _, _, ok := e.ActiveTestMode()
	require.True(t, ok)
	require.Equal(t, 2, id)
	require.InDelta(t, 1.5, p0, 0.001)
}

func TestControlServerUnknownCommandDoesNotPanic(t *testing.T) {
	e := newControlTestEngine(t)
	sockPath := filepath.Join(t.TempDir(), "control.sock")
	srv, err := ListenControlSocket(sockPath, e, nil)
	require.NoError(t, err)
	go srv.Serve()
	defer srv.Close()

	sendCommand(t, sockPath, "bogus")
}
