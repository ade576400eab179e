package state

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// ErrSessionActive is returned when the session lock is already held,
// meaning another launch of the client is in progress.
var ErrSessionActive = fmt.Errorf("another client session is already active")

// SessionLock holds the flock(2) that enforces the single-session rule:
// no two launches of the same client installation may run concurrently.
type SessionLock struct {
	file *os.File
	path string
}

// AcquireSessionLock takes the session lock without blocking. It returns
// ErrSessionActive when another process already holds it.
func AcquireSessionLock(path string) (*SessionLock, error) {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	//nolint:gosec // G304: lock path comes from the launcher's own layout
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open session lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, ErrSessionActive
		}
		return nil, fmt.Errorf("failed to acquire session lock: %w", err)
	}

	return &SessionLock{file: f, path: path}, nil
}

// Release releases the session lock. Safe to call more than once.
func (sl *SessionLock) Release() error {
	if sl.file == nil {
		return nil
	}

	if err := syscall.Flock(int(sl.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = sl.file.Close()
		sl.file = nil
		return fmt.Errorf("failed to release session lock: %w", err)
	}

	if err := sl.file.Close(); err != nil {
		sl.file = nil
		return fmt.Errorf("failed to close session lock file: %w", err)
	}

	sl.file = nil
	return nil
}

// Path returns the lock file path.
func (sl *SessionLock) Path() string {
	return sl.path
}
