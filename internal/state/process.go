package state

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// IsProcessRunning reports whether a process with the given PID exists.
// It sends signal 0, which performs the existence check without delivering
// anything to the target.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		// On Unix FindProcess always succeeds; treat failure as gone.
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	if err == syscall.ESRCH {
		return false
	}

	// EPERM means the process exists but belongs to someone else. From the
	// supervisor's perspective that still counts as running.
	if err == syscall.EPERM {
		return true
	}

	return false
}

// WritePIDFile persists a process id so a later invocation of the launcher
// can find and probe the spawned client.
func WritePIDFile(path string, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid: %d", pid)
	}
	return AtomicWrite(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

// ReadPIDFile reads a persisted process id. Returns 0 with no error when the
// file is empty; a missing file is reported as-is via os.IsNotExist.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pidStr := strings.TrimSpace(string(data))
	if pidStr == "" {
		return 0, nil
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("invalid PID format: %w", err)
	}

	return pid, nil
}

// RemovePIDFile deletes a persisted process id. Missing files are fine.
func RemovePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}
