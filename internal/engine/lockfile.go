package engine

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// LockFile is the exclusive daemon-instance lock of spec §6: "create
// /var/run/kernel_clock (or configured path), write the PID, take an
// exclusive fcntl write lock; refuse to start if locked."
type LockFile struct {
	f *os.File
}

// AcquireLockFile opens (creating if necessary) path, takes a
// non-blocking exclusive lock, and writes the current process's PID into
// it. It returns an error, without blocking, if another holder already
// has the file locked.
//
// This uses flock(2) rather than a POSIX fcntl record lock: fcntl locks
// are associated with (process, inode), so a second open of the same
// path by the *same* process would silently succeed rather than
// conflict, which defeats the "refuse to start if locked" requirement
// against a second instance spawned by the same supervisor/session.
// flock locks are associated with the open file description, so they
// conflict correctly regardless of which process or file descriptor
// created them.
func AcquireLockFile(path string) (*LockFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("engine: open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("engine: lock file %s already held: %w", path, err)
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("engine: truncate lock file %s: %w", path, err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("engine: write pid to lock file %s: %w", path, err)
	}

	return &LockFile{f: f}, nil
}

// Release closes the lock file, implicitly releasing the flock (the
// kernel drops an flock lock when its last referencing file descriptor
// is closed).
func (l *LockFile) Release() error {
	return l.f.Close()
}
