package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the event bursts editors produce when saving.
const debounceDelay = 200 * time.Millisecond

// Watcher reloads the config file when it changes on disk and hands the
// fresh Config to a callback. The parent directory is watched rather
// than the file itself so rename-based saves keep working.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	onChange func(Config)
	logger   *log.Logger

	mu    sync.Mutex
	timer *time.Timer

	done chan struct{}
}

// Watch starts watching path and calls onChange with each successfully
// reloaded Config. onChange runs on a timer goroutine and must be safe
// to call concurrently with the caller's own work.
func Watch(path string, logger *log.Logger, onChange func(Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		fsw:      fsw,
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// schedule arms (or re-arms) the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer == nil {
		w.timer = time.AfterFunc(debounceDelay, w.reload)
		return
	}
	w.timer.Reset(debounceDelay)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping current settings", "error", err)
		return
	}
	w.logger.Info("configuration reloaded", "path", w.path)
	w.onChange(cfg)
}

// Close stops the watcher. Pending debounced reloads may still fire.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
