package engine

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireLockFileWritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel_clock")
	lock, err := AcquireLockFile(path)
	require.NoError(t, err)
	defer lock.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	require.Equal(t, os.Getpid(), pid)
}

func TestAcquireLockFileRefusesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel_clock")
	first, err := AcquireLockFile(path)
	require.NoError(t, err)
	defer first.Release()

	_, err = AcquireLockFile(path)
	require.Error(t, err)
}

func TestAcquireLockFileReusableAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel_clock")
	first, err := AcquireLockFile(path)
	require.NoError(t, err)
	require.NoError(t, first.Release())

	second, err := AcquireLockFile(path)
	require.NoError(t, err)
	defer second.Release()
}
