package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Config holds the daemon's effective settings.
type Config struct {
	// ScanInterval is the idle pause between scan passes.
	ScanInterval time.Duration

	// FileThreshold is the minimum recursive file count for a directory
	// to be cached.
	FileThreshold int64

	// LogLevel is the minimum level emitted: debug, info, warn, error.
	LogLevel string

	// LogFile receives log output when set; empty logs to stderr.
	LogFile string

	// Workers bounds scan concurrency. Zero selects auto-tuning.
	Workers int

	// Exclude lists path prefixes never descended into.
	Exclude []string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ScanInterval:  DefaultScanInterval,
		FileThreshold: DefaultFileThreshold,
		LogLevel:      DefaultLogLevel,
		Exclude:       append([]string(nil), DefaultExclusions...),
	}
}

// Load reads the key=value config file at path. The file is optional:
// a missing file yields the defaults. Unparseable or non-positive values
// fall back to their defaults key by key. A file that cannot be parsed
// at all yields the defaults plus an error the caller can log.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if secs := v.GetInt64("scan_interval"); secs > 0 {
		cfg.ScanInterval = time.Duration(secs) * time.Second
	}
	if threshold := v.GetInt64("file_threshold"); threshold > 0 {
		cfg.FileThreshold = threshold
	}
	if level := strings.TrimSpace(v.GetString("log_level")); level != "" {
		cfg.LogLevel = level
	}
	cfg.LogFile = strings.TrimSpace(v.GetString("log_file"))
	if workers := v.GetInt("workers"); workers > 0 {
		cfg.Workers = workers
	}
	if exclude := splitList(v.GetString("exclude")); len(exclude) > 0 {
		cfg.Exclude = exclude
	}

	return cfg, nil
}

// splitList parses a comma-separated list, dropping empty elements.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ConfigPath returns the per-user config file path.
func ConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "tally", "config")
}

// CacheDir returns $XDG_CACHE_HOME/tally/ for the size store.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "tally")
}

// StateDir returns $XDG_STATE_HOME/tally/ for the status file, pidfile,
// and logs.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "tally")
}

// DBPath returns the canonical size store path.
func DBPath() string {
	return filepath.Join(CacheDir(), "sizes.db")
}

// StatusPath returns the daemon phase file path.
func StatusPath() string {
	return filepath.Join(StateDir(), "status")
}

// PIDPath returns the daemon pidfile path.
func PIDPath() string {
	return filepath.Join(StateDir(), "tallyd.pid")
}

// LogPath returns the default daemon log file path.
func LogPath() string {
	return filepath.Join(StateDir(), "tallyd.log")
}

// EnsureCacheDir creates the cache directory if it doesn't exist.
func EnsureCacheDir() error {
	if err := os.MkdirAll(CacheDir(), 0o755); err != nil {
		return fmt.Errorf("config: creating cache directory: %w", err)
	}
	return nil
}

// EnsureStateDir creates the state directory if it doesn't exist.
func EnsureStateDir() error {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return fmt.Errorf("config: creating state directory: %w", err)
	}
	return nil
}

// WriteDefault writes a commented default config file if none exists.
func WriteDefault() error {
	return writeDefaultTo(ConfigPath())
}

func writeDefaultTo(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("config: checking %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating config directory: %w", err)
	}

	content := fmt.Sprintf(`# tally daemon configuration

# Seconds between scan passes.
scan_interval=%d

# Minimum recursive file count for a directory to be cached.
file_threshold=%d

# Log level: debug, info, warn, error.
log_level=%s

# Log file path; empty logs to stderr.
log_file=

# Scan workers; 0 selects a value from CPU and memory.
workers=0

# Comma-separated path prefixes never scanned.
exclude=%s
`,
		int64(DefaultScanInterval/time.Second),
		DefaultFileThreshold,
		DefaultLogLevel,
		strings.Join(DefaultExclusions, ","),
	)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("config: writing default config: %w", err)
	}
	return nil
}
