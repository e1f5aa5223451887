// Package daemon runs the background side of the cache: periodic scan
// passes over the configured roots, generation builds published through
// the store, and the PID and status files other processes consult.
package daemon

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/tally/pkg/tally/config"
	"github.com/jamesainslie/tally/pkg/tally/logging"
	"github.com/jamesainslie/tally/pkg/tally/scan"
	"github.com/jamesainslie/tally/pkg/tally/tuner"
)

// Options configures a Daemon.
type Options struct {
	// Roots are the directories to scan each pass.
	Roots []string

	// DBPath is the canonical cache store file.
	DBPath string

	// StatusPath is the phase file read by external status queries.
	StatusPath string

	// Config supplies interval, threshold, worker, and exclusion
	// settings. Later changes arrive through Apply.
	Config config.Config
}

// Daemon owns the scan schedule. One Run loop executes passes; Refresh
// and Apply may be called from other goroutines.
type Daemon struct {
	writer     *Writer
	statusPath string
	logger     *log.Logger
	refresh    chan struct{}

	mu        sync.Mutex
	roots     []string
	outermost map[string]bool
	interval  time.Duration
	engine    *scan.Engine
}

// New builds a daemon for the given roots. Roots that do not exist are
// dropped with a warning; no usable root left is a startup error, since
// the daemon would have nothing to do.
func New(opts Options) (*Daemon, error) {
	logger := logging.Get("daemon")

	roots, outermost := normalizeRoots(opts.Roots)
	if len(roots) == 0 {
		return nil, errors.New("daemon: no usable scan roots")
	}
	if dropped := len(opts.Roots) - len(roots); dropped > 0 {
		logger.Warn("ignoring unusable scan roots", "dropped", dropped)
	}

	cfg := opts.Config
	interval := cfg.ScanInterval
	if interval <= 0 {
		interval = config.DefaultScanInterval
	}

	return &Daemon{
		writer:     NewWriter(opts.DBPath, cfg.FileThreshold, logging.Get("writer")),
		statusPath: opts.StatusPath,
		logger:     logger,
		refresh:    make(chan struct{}, 1),
		roots:      roots,
		outermost:  outermost,
		interval:   interval,
		engine:     buildEngine(cfg.Workers, cfg.Exclude, logger),
	}, nil
}

// buildEngine sizes the scan worker pool from detected resources unless
// the configuration pins a count.
func buildEngine(workers int, exclude []string, logger *log.Logger) *scan.Engine {
	opts := scan.Options{Workers: workers, Exclude: exclude}
	if resources, err := tuner.Detect(); err == nil {
		opts.Workers = tuner.WorkersWithOverride(resources, workers)
		logger.Debug("sized worker pool",
			"workers", opts.Workers,
			"cores", resources.CPUCores,
			"available_ram", humanize.IBytes(uint64(resources.AvailableRAM)))
	} else {
		logger.Warn("resource detection failed, using defaults", "error", err)
	}
	return scan.New(opts)
}

// Run executes scan passes until ctx is canceled: one immediately, then
// one per interval, plus any a refresh requests. The status file tracks
// the phase while running and is removed on the way out.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	roots, interval := d.roots, d.interval
	d.mu.Unlock()
	d.logger.Info("daemon started", "roots", strings.Join(roots, ","), "interval", interval)

	defer func() {
		if err := RemoveStatus(d.statusPath); err != nil {
			d.logger.Warn("removing status file failed", "error", err)
		}
	}()

	d.pass(ctx)

	timer := time.NewTimer(d.currentInterval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping")
			return nil
		case <-timer.C:
			d.pass(ctx)
		case <-d.refresh:
			d.logger.Info("refresh requested, starting pass")
			d.pass(ctx)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d.currentInterval())
	}
}

// Refresh asks the daemon to start a pass now. Never blocks; a request
// already pending absorbs further ones.
func (d *Daemon) Refresh() {
	select {
	case d.refresh <- struct{}{}:
	default:
	}
}

// Apply adopts a changed configuration between passes. Interval and
// threshold take effect immediately, the worker pool and exclusion list
// are rebuilt, and the log level follows the file.
func (d *Daemon) Apply(cfg config.Config) {
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		d.logger.Warn("ignoring bad log level", "level", cfg.LogLevel, "error", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.interval = cfg.ScanInterval
	if d.interval <= 0 {
		d.interval = config.DefaultScanInterval
	}
	d.engine = buildEngine(cfg.Workers, cfg.Exclude, d.logger)
	d.writer.SetThreshold(cfg.FileThreshold)
	d.logger.Info("configuration reloaded", "interval", d.interval, "threshold", cfg.FileThreshold)
}

func (d *Daemon) currentInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// pass runs one scan-store-prune-publish cycle. Any failure along the
// way discards the scratch generation and leaves the canonical store on
// its previous one; the next cycle tries again.
func (d *Daemon) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()

	if err := WriteStatus(d.statusPath, PhaseScanning); err != nil {
		d.logger.Warn("writing status failed", "error", err)
	}
	defer func() {
		if ctx.Err() != nil {
			return
		}
		if err := WriteStatus(d.statusPath, PhaseIdle); err != nil {
			d.logger.Warn("writing status failed", "error", err)
		}
	}()

	if err := d.writer.Begin(); err != nil {
		d.logger.Error("scan pass failed to start", "error", err)
		return
	}

	d.mu.Lock()
	roots, outermost, engine := d.roots, d.outermost, d.engine
	d.mu.Unlock()

	var totalSize, totalFiles int64
	for _, root := range roots {
		if ctx.Err() != nil {
			break
		}
		res := engine.Scan(ctx, root, d.writer)
		d.logger.Debug("root scanned", "root", root, "outcome", res.Kind, "size", res.Size, "files", res.Files)
		if !outermost[root] {
			continue
		}
		if res.Sized() {
			totalSize += res.Size
		}
		if res.Counted() {
			totalFiles += res.Files
		}
	}

	if ctx.Err() != nil {
		d.writer.Discard()
		d.logger.Info("scan pass canceled, discarding")
		return
	}
	if err := d.writer.Prune(ctx); err != nil {
		d.writer.Discard()
		d.logger.Error("pruning failed, discarding pass", "error", err)
		return
	}
	generation, err := d.writer.Publish()
	if err != nil {
		d.logger.Error("publishing cache failed", "error", err)
		return
	}

	d.logger.Info("scan pass complete",
		"size", humanize.IBytes(uint64(totalSize)),
		"files", totalFiles,
		"stored", d.writer.Stored(),
		"pruned", d.writer.Pruned(),
		"generation", generation,
		"elapsed", time.Since(start).Round(time.Millisecond))
}
