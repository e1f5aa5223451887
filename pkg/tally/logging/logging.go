// Package logging provides component loggers for the tally daemon and
// CLI, with optional file output and size-based rotation.
//
// Basic usage:
//
//	if err := logging.Init(logging.Config{Level: "info", Path: path}); err != nil {
//	    ...
//	}
//	defer logging.Close()
//
//	logger := logging.Get("daemon")
//	logger.Info("scan pass complete", "roots", 2)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrInvalidLevel is returned for level strings that name no level.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel maps a level string to a charmbracelet/log level.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the minimum level emitted: debug, info, warn, error.
	// Unrecognized values fall back to info.
	Level string

	// Path is the log file; empty writes to stderr.
	Path string

	// MaxSize is the rotation threshold in bytes for file output.
	// Zero selects DefaultMaxSize.
	MaxSize int64

	// MaxBackups is the number of rotated files kept. Zero selects
	// DefaultMaxBackups; negative keeps none.
	MaxBackups int
}

var (
	mu         sync.Mutex
	root       *log.Logger
	out        io.Closer
	level      log.Level
	components map[string]*log.Logger
)

// Init sets up the shared logger. Call once at process start; Get before
// Init returns a logger that discards everything.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		lvl = log.InfoLevel
	}

	var w io.Writer = os.Stderr
	if cfg.Path != "" {
		rw, err := NewRotatingWriter(cfg.Path, cfg.MaxSize, cfg.MaxBackups)
		if err != nil {
			return fmt.Errorf("logging: %w", err)
		}
		w = rw
		out = rw
	}

	level = lvl
	root = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})
	components = make(map[string]*log.Logger)
	return nil
}

// Get returns the logger for a component, creating it on first use.
func Get(component string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()

	if root == nil {
		return log.New(io.Discard)
	}
	if l, ok := components[component]; ok {
		return l
	}
	l := root.With("component", component)
	l.SetLevel(level)
	components[component] = l
	return l
}

// SetLevel changes the level of the root logger and every component
// logger already handed out.
func SetLevel(s string) error {
	lvl, err := ParseLevel(s)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	level = lvl
	if root != nil {
		root.SetLevel(lvl)
	}
	for _, l := range components {
		l.SetLevel(lvl)
	}
	return nil
}

// Close flushes and releases the log file, if any. Loggers handed out
// earlier become inert.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	var err error
	if out != nil {
		err = out.Close()
	}
	root = nil
	out = nil
	components = nil
	return err
}
