package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Daemon phases recorded in the status file.
const (
	PhaseScanning = "scanning"
	PhaseIdle     = "idle"
)

// WriteStatus records the daemon's current phase in a small text file.
// The write goes through a temp file and rename so a concurrent reader
// never sees a partial phase word.
func WriteStatus(path, phase string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(phase+"\n"), 0o644); err != nil {
		return fmt.Errorf("daemon: write status: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("daemon: write status: %w", err)
	}
	return nil
}

// ReadStatus returns the phase recorded in the status file.
func ReadStatus(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("daemon: read status: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// RemoveStatus removes the status file. A missing file is fine: the
// daemon may never have started.
func RemoveStatus(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("daemon: remove status: %w", err)
	}
	return nil
}
