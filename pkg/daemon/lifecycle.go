package daemon

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned when starting a daemon while another
// instance owns the PID file.
var ErrAlreadyRunning = errors.New("daemon already running")

// WritePIDFile writes the current process ID to a file.
func WritePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// ReadPIDFile reads a PID from a file.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// RemovePIDFile removes the PID file.
func RemovePIDFile(path string) error {
	return os.Remove(path)
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// IsDaemonRunning checks if a daemon is running based on its PID file.
func IsDaemonRunning(pidPath string) bool {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return false
	}
	return IsProcessRunning(pid)
}

// RecoverStale checks for and cleans up artifacts of a dead daemon.
// Returns nil when cleanup succeeded or nothing needed recovering, and
// ErrAlreadyRunning when a live daemon owns the PID file.
func RecoverStale(pidPath, statusPath string) error {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		// No PID file or an unreadable one: nothing to recover.
		return nil
	}

	if IsProcessRunning(pid) {
		return ErrAlreadyRunning
	}

	os.Remove(pidPath)
	os.Remove(statusPath)
	return nil
}
