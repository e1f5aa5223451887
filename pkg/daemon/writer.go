package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/jamesainslie/tally/pkg/tally/logging"
	"github.com/jamesainslie/tally/pkg/tally/store"
)

// Writer builds one cache generation per scan pass. Begin clones the
// canonical store into a scratch file next to it, so entries from the
// previous generation carry over and stay available for modification-time
// checks during the pass. The pass records fresh totals and prunes dead
// entries in the scratch file; Publish stamps it and atomically replaces
// the canonical file. Readers of the canonical path see either the old
// generation or the new one, never a mix.
//
// Writer satisfies the scan engine's cache interface; a single mutex
// serializes calls arriving from concurrent scan workers.
type Writer struct {
	canonical string
	logger    *log.Logger

	mu        sync.Mutex
	scratch   *store.Store
	threshold int64
	stored    int64
	pruned    int64
}

// NewWriter returns a writer publishing generations to the canonical
// store path. Directories with fewer than threshold descendant files are
// not worth caching and stay unrecorded.
func NewWriter(canonical string, threshold int64, logger *log.Logger) *Writer {
	if logger == nil {
		logger = logging.Get("writer")
	}
	return &Writer{canonical: canonical, threshold: threshold, logger: logger}
}

func (w *Writer) scratchPath() string {
	return w.canonical + ".next"
}

// SetThreshold changes the minimum descendant file count for caching.
// Takes effect for directories recorded after the call.
func (w *Writer) SetThreshold(threshold int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.threshold = threshold
}

// Begin starts a pass by cloning the canonical store into the scratch
// file. A canonical store that cannot be cloned (corrupt, unreadable) is
// deleted and the pass starts from an empty scratch; the cache loses its
// contents but never its function.
func (w *Writer) Begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.scratch != nil {
		return errors.New("daemon: pass already in progress")
	}

	if err := store.Clone(w.canonical, w.scratchPath()); err != nil {
		w.logger.Warn("previous cache unusable, starting empty", "error", err)
		store.RemoveFiles(w.canonical)
		if err := store.Clone(w.canonical, w.scratchPath()); err != nil {
			return fmt.Errorf("daemon: create scratch store: %w", err)
		}
	}

	scratch, err := store.OpenReadWrite(w.scratchPath())
	if err != nil {
		store.RemoveFiles(w.scratchPath())
		return fmt.Errorf("daemon: open scratch store: %w", err)
	}

	w.scratch = scratch
	w.stored = 0
	w.pruned = 0
	return nil
}

// Lookup returns the carried-over totals for path when the cached entry
// was recorded at exactly the given directory mtime.
func (w *Writer) Lookup(path string, mtime int64) (size, files int64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.scratch == nil {
		return 0, 0, false
	}
	e, err := w.scratch.Lookup(path)
	if err != nil || e.DirMtime != mtime {
		return 0, 0, false
	}
	return e.Size, e.FileCount, true
}

// Record stores the totals for a fully scanned directory. Directories
// below the file threshold are dropped, along with any stale entry
// carried over for them from the previous generation.
func (w *Writer) Record(path string, size, files, mtime int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.scratch == nil {
		return
	}
	if files < w.threshold {
		if err := w.scratch.Delete(path); err != nil {
			w.logger.Warn("dropping stale cache entry failed", "path", path, "error", err)
		}
		return
	}
	if err := w.scratch.Upsert(store.Entry{Path: path, Size: size, FileCount: files, DirMtime: mtime}); err != nil {
		w.logger.Warn("caching directory failed", "path", path, "error", err)
		return
	}
	w.stored++
}

// Prune removes entries whose paths no longer name directories on disk.
// Entries that cannot be verified (transient stat errors) are kept.
func (w *Writer) Prune(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.scratch == nil {
		return errors.New("daemon: no pass in progress")
	}

	paths, err := w.scratch.Paths()
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			continue
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
			continue
		}
		if err := w.scratch.Delete(path); err != nil {
			w.logger.Warn("pruning cache entry failed", "path", path, "error", err)
			continue
		}
		w.pruned++
	}
	return nil
}

// Publish stamps the scratch store with a fresh generation id,
// checkpoints it into a single file, and atomically replaces the
// canonical store. Returns the generation id. On failure the scratch is
// discarded; the canonical store keeps its previous generation.
func (w *Writer) Publish() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.scratch == nil {
		return "", errors.New("daemon: no pass in progress")
	}

	id := uuid.NewString()
	if err := w.scratch.SetGeneration(id, time.Now()); err != nil {
		w.discardLocked()
		return "", err
	}
	if err := w.scratch.Checkpoint(); err != nil {
		w.discardLocked()
		return "", err
	}
	if err := w.scratch.Close(); err != nil {
		w.scratch = nil
		store.RemoveFiles(w.scratchPath())
		return "", fmt.Errorf("daemon: close scratch store: %w", err)
	}
	w.scratch = nil

	if err := store.Publish(w.scratchPath(), w.canonical); err != nil {
		store.RemoveFiles(w.scratchPath())
		return "", err
	}
	return id, nil
}

// Discard abandons the pass and removes the scratch file. The canonical
// store is untouched.
func (w *Writer) Discard() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.discardLocked()
}

func (w *Writer) discardLocked() {
	if w.scratch == nil {
		return
	}
	w.scratch.Close()
	w.scratch = nil
	store.RemoveFiles(w.scratchPath())
}

// Stored returns the number of directories recorded this pass.
func (w *Writer) Stored() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stored
}

// Pruned returns the number of dead entries removed this pass.
func (w *Writer) Pruned() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pruned
}
