package client

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jamesainslie/tally/pkg/daemon"
)

// DaemonPaths configures daemon process operations. Empty fields must be
// filled by the caller; the cmd layer derives them from the config
// package.
type DaemonPaths struct {
	// Binary is the tallyd executable. Auto-discovered when empty:
	// first on PATH, then next to the current executable.
	Binary string

	// PID is the daemon's PID file.
	PID string

	// Status is the daemon's phase file.
	Status string
}

// StartDaemon starts tallyd in the background with the given scan roots.
// Idempotent: a daemon already running is left alone.
func StartDaemon(paths DaemonPaths, roots []string) error {
	if daemon.IsDaemonRunning(paths.PID) {
		return nil
	}

	binary, err := resolveBinary(paths.Binary)
	if err != nil {
		return fmt.Errorf("find tallyd: %w", err)
	}

	// exec.Command, not CommandContext: the daemon must outlive us.
	cmd := exec.Command(binary, roots...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if cmd.Process != nil {
		cmd.Process.Release()
	}

	for range 50 {
		time.Sleep(100 * time.Millisecond)
		if daemon.IsDaemonRunning(paths.PID) {
			return nil
		}
	}
	return errors.New("daemon did not become ready within timeout")
}

// StopDaemon terminates a running tallyd and waits for it to exit.
// Idempotent: no daemon running is success.
func StopDaemon(paths DaemonPaths) error {
	pid, err := daemon.ReadPIDFile(paths.PID)
	if err != nil || !daemon.IsProcessRunning(pid) {
		return nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon: %w", err)
	}

	for range 20 {
		time.Sleep(250 * time.Millisecond)
		if !daemon.IsProcessRunning(pid) {
			return nil
		}
	}
	return errors.New("daemon did not stop within timeout")
}

// RestartDaemon stops and starts the daemon.
func RestartDaemon(paths DaemonPaths, roots []string) error {
	if err := StopDaemon(paths); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if err := StartDaemon(paths, roots); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return nil
}

// RefreshDaemon asks a running tallyd to start a scan pass now.
func RefreshDaemon(paths DaemonPaths) error {
	if daemon.RefreshSignal == nil {
		return errors.New("refresh signal not supported on this platform")
	}

	pid, err := daemon.ReadPIDFile(paths.PID)
	if err != nil {
		return errors.New("daemon not running")
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := process.Signal(daemon.RefreshSignal); err != nil {
		return fmt.Errorf("daemon not running: %w", err)
	}
	return nil
}

// resolveBinary finds the tallyd executable.
func resolveBinary(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	if path, err := exec.LookPath("tallyd"); err == nil {
		return path, nil
	}

	// Fall back to a sibling of the current executable.
	self, err := os.Executable()
	if err != nil {
		return "", errors.New("tallyd not found on PATH")
	}
	sibling := filepath.Join(filepath.Dir(self), "tallyd")
	if _, err := os.Stat(sibling); err != nil {
		return "", errors.New("tallyd not found on PATH or next to " + filepath.Base(self))
	}
	return sibling, nil
}
