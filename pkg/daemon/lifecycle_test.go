package daemon_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/tally/pkg/daemon"
)

// neverPID is far above any real pid_max, so no live process owns it.
const neverPID = "1073741824"

func TestWriteAndReadPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "tallyd.pid")

	if err := daemon.WritePIDFile(pidPath); err != nil {
		t.Fatalf("WritePIDFile failed: %v", err)
	}

	pid, err := daemon.ReadPIDFile(pidPath)
	if err != nil {
		t.Fatalf("ReadPIDFile failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("Expected PID %d, got %d", os.Getpid(), pid)
	}
}

func TestIsDaemonRunning(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "tallyd.pid")

	if daemon.IsDaemonRunning(pidPath) {
		t.Error("Expected false when PID file doesn't exist")
	}

	if err := daemon.WritePIDFile(pidPath); err != nil {
		t.Fatal(err)
	}
	if !daemon.IsDaemonRunning(pidPath) {
		t.Error("Expected true when PID file has current process")
	}

	if err := os.WriteFile(pidPath, []byte(neverPID), 0o644); err != nil {
		t.Fatal(err)
	}
	if daemon.IsDaemonRunning(pidPath) {
		t.Error("Expected false when PID names no live process")
	}
}

func TestRemovePIDFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "tallyd.pid")

	if err := daemon.WritePIDFile(pidPath); err != nil {
		t.Fatalf("WritePIDFile failed: %v", err)
	}
	if err := daemon.RemovePIDFile(pidPath); err != nil {
		t.Fatalf("RemovePIDFile failed: %v", err)
	}
	if _, err := os.Stat(pidPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("PID file should have been removed")
	}
}

func TestRecoverStale(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "tallyd.pid")
	statusPath := filepath.Join(dir, "status")

	// Nothing to recover.
	if err := daemon.RecoverStale(pidPath, statusPath); err != nil {
		t.Errorf("RecoverStale with no PID file = %v, want nil", err)
	}

	// A live daemon (this process) blocks startup.
	if err := daemon.WritePIDFile(pidPath); err != nil {
		t.Fatal(err)
	}
	if err := daemon.RecoverStale(pidPath, statusPath); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Errorf("RecoverStale with live PID = %v, want ErrAlreadyRunning", err)
	}

	// A dead daemon's leftovers are cleaned up.
	if err := os.WriteFile(pidPath, []byte(neverPID), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := daemon.WriteStatus(statusPath, daemon.PhaseIdle); err != nil {
		t.Fatal(err)
	}
	if err := daemon.RecoverStale(pidPath, statusPath); err != nil {
		t.Errorf("RecoverStale with stale PID = %v, want nil", err)
	}
	if _, err := os.Stat(pidPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("stale PID file should have been removed")
	}
	if _, err := os.Stat(statusPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("stale status file should have been removed")
	}
}
