package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/steviee/go-mcl/internal/events"
	"github.com/steviee/go-mcl/internal/state"
)

const (
	// StartGraceWindow distinguishes a start failure from a later crash: a
	// client that exits this quickly after spawn never actually started.
	StartGraceWindow = 10 * time.Second

	// StopGracePeriod is how long a graceful termination signal gets before
	// the supervisor escalates to a forceful kill.
	StopGracePeriod = 30 * time.Second

	// stopPollInterval is how often liveness is re-probed while stopping.
	stopPollInterval = 250 * time.Millisecond
)

// Sentinel errors for process supervision.
var (
	// ErrStartFailure is returned when the spawned client exits inside the
	// start grace window.
	ErrStartFailure = errors.New("client exited during start grace window")

	// ErrNotRunning is returned by Stop when there is nothing to stop.
	ErrNotRunning = errors.New("no client process is running")
)

// Status describes the tracked client process.
type Status struct {
	Running   bool
	PID       int
	VersionID string
}

// Supervisor spawns, probes and terminates the client process. The handle
// is persisted to disk so a later launcher invocation can find the client
// it did not itself spawn.
type Supervisor struct {
	mu         sync.Mutex
	layout     *state.Layout
	bus        *events.Bus
	pid        int
	versionID  string
	startGrace time.Duration
	stopGrace  time.Duration
}

// SupervisorConfig holds Supervisor configuration. The grace durations
// default to the package constants; tests shrink them.
type SupervisorConfig struct {
	Layout     *state.Layout
	Bus        *events.Bus
	StartGrace time.Duration
	StopGrace  time.Duration
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(config *SupervisorConfig) *Supervisor {
	startGrace := config.StartGrace
	if startGrace == 0 {
		startGrace = StartGraceWindow
	}
	stopGrace := config.StopGrace
	if stopGrace == 0 {
		stopGrace = StopGracePeriod
	}

	return &Supervisor{
		layout:     config.Layout,
		bus:        config.Bus,
		startGrace: startGrace,
		stopGrace:  stopGrace,
	}
}

// Launch spawns the runtime executable with the plan's arguments and
// working directory. It blocks for the start grace window; an exit inside
// that window is a start failure, reported distinctly from a crash after
// successful start.
func (s *Supervisor) Launch(ctx context.Context, plan *Plan) (int, error) {
	s.mu.Lock()

	// The duplicate check must also see a client spawned by an earlier
	// launcher invocation, which exists only in the PID file.
	running := s.pid
	if running == 0 {
		if filePID, err := state.ReadPIDFile(s.layout.ClientPIDPath()); err == nil {
			running = filePID
		}
	}
	if running != 0 {
		if state.IsProcessRunning(running) {
			s.mu.Unlock()
			return 0, fmt.Errorf("client already running (PID %d)", running)
		}
		// Stale handle left by a dead client; reconcile before spawning.
		s.clearHandleLocked()
	}

	if plan.WorkingDir != "" {
		if err := state.EnsureDir(plan.WorkingDir); err != nil {
			s.mu.Unlock()
			return 0, err
		}
	}

	//nolint:gosec // G204: the argument vector is built by BuildPlan, not user input
	cmd := exec.Command(plan.JavaExecutable, plan.CommandLine()...)
	cmd.Dir = plan.WorkingDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("spawn client: %w", err)
	}

	pid := cmd.Process.Pid
	slog.Info("client spawned",
		"pid", pid,
		"version", plan.VersionID)

	// Record the handle before waiting out the grace window, so a
	// concurrent launch in this process or another refuses immediately.
	// A start failure clears it again. The lock is not held across the
	// grace wait; Stop and CurrentStatus stay responsive during it.
	s.pid = pid
	s.versionID = plan.VersionID
	if err := state.WritePIDFile(s.layout.ClientPIDPath(), pid); err != nil {
		slog.Warn("failed to persist client PID", "error", err)
	}
	s.mu.Unlock()

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	select {
	case waitErr := <-exited:
		// Died before the grace window elapsed: start failure, not a crash.
		s.mu.Lock()
		if s.pid == pid {
			s.clearHandleLocked()
		}
		s.mu.Unlock()

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return 0, fmt.Errorf("%w (exit code %d)", ErrStartFailure, exitCode)

	case <-time.After(s.startGrace):
		// Still alive: the start succeeded.
	}

	s.publishStarted(pid, plan.VersionID)

	// The client outlives this call; reap it in the background so the exit
	// is observed and the handle cleared.
	go s.reap(pid, exited)

	return pid, nil
}

// reap waits for the spawned process to exit and reconciles state.
func (s *Supervisor) reap(pid int, exited <-chan error) {
	waitErr := <-exited

	exitCode := 0
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	slog.Info("client exited", "pid", pid, "exit_code", exitCode)

	s.mu.Lock()
	if s.pid == pid {
		s.clearHandleLocked()
	}
	s.mu.Unlock()

	s.publishStopped(pid, exitCode)
}

// Stop sends a graceful termination signal and escalates to a forceful kill
// if the client has not exited after the grace period. It also stops a
// client recorded only in the PID file by an earlier launcher invocation.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	pid := s.pid
	s.mu.Unlock()

	if pid == 0 {
		filePID, err := state.ReadPIDFile(s.layout.ClientPIDPath())
		if err != nil || filePID == 0 {
			return ErrNotRunning
		}
		pid = filePID
	}

	if !state.IsProcessRunning(pid) {
		s.clearHandle(pid)
		return ErrNotRunning
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find client process: %w", err)
	}

	slog.Info("stopping client", "pid", pid)
	if err := process.Signal(syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("signal client: %w", err)
	}

	deadline := time.Now().Add(s.stopGrace)
	for time.Now().Before(deadline) {
		if !state.IsProcessRunning(pid) {
			s.clearHandle(pid)
			s.publishStopped(pid, 0)
			return nil
		}

		select {
		case <-time.After(stopPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	slog.Warn("client ignored graceful stop, killing", "pid", pid)
	if err := process.Kill(); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("kill client: %w", err)
	}

	s.clearHandle(pid)
	s.publishStopped(pid, -1)
	return nil
}

// CurrentStatus probes the tracked process. The handle is cleared the
// moment the probe finds the process gone, so no later operation believes
// a dead process is alive.
func (s *Supervisor) CurrentStatus() Status {
	s.mu.Lock()
	pid := s.pid
	versionID := s.versionID
	s.mu.Unlock()

	if pid == 0 {
		filePID, err := state.ReadPIDFile(s.layout.ClientPIDPath())
		if err != nil || filePID == 0 {
			return Status{}
		}
		pid = filePID
	}

	if !state.IsProcessRunning(pid) {
		s.clearHandle(pid)
		return Status{}
	}

	return Status{Running: true, PID: pid, VersionID: versionID}
}

// clearHandle drops the in-memory handle and the PID file for pid.
func (s *Supervisor) clearHandle(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pid == 0 || s.pid == pid {
		s.clearHandleLocked()
	}
}

func (s *Supervisor) clearHandleLocked() {
	s.pid = 0
	s.versionID = ""
	if err := state.RemovePIDFile(s.layout.ClientPIDPath()); err != nil {
		slog.Warn("failed to remove client PID file", "error", err)
	}
}

func (s *Supervisor) publishStarted(pid int, versionID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.TopicClientStarted, events.ClientStarted{
		PID:       pid,
		VersionID: versionID,
		StartedAt: time.Now(),
	})
}

func (s *Supervisor) publishStopped(pid, exitCode int) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.TopicClientStopped, events.ClientStopped{
		PID:       pid,
		ExitCode:  exitCode,
		StoppedAt: time.Now(),
	})
}
