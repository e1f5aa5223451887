// Package scan computes aggregate directory sizes and file counts with a
// parallel fork-join traversal. Each directory fans its subdirectories out
// across a bounded worker pool shared by the whole recursion tree, joins
// them, and combines their totals with its own regular-file totals. The
// walk stays on the scan root's device, skips known virtual and aliased
// filesystem prefixes, and optionally substitutes cached subtree totals
// instead of descending.
package scan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// gitDirName is the directory name whose file count is suppressed in
// ancestor totals. Its byte size still counts.
const gitDirName = ".git"

// maxWorkers caps the traversal pool regardless of configuration.
const maxWorkers = 64

// Cache supplies previously computed directory totals during a scan and
// receives fresh totals for completed directories. Implementations must be
// safe for concurrent use; the engine calls both methods from multiple
// worker goroutines.
type Cache interface {
	// Lookup returns the cached (size, files) for path if a trusted entry
	// exists for the directory's current mtime. A hit substitutes the
	// cached totals and the engine does not descend into path.
	Lookup(path string, mtime int64) (size, files int64, ok bool)

	// Record delivers the freshly computed totals for a fully scanned
	// directory, along with the mtime observed before descending into it.
	Record(path string, size, files, mtime int64)
}

// Options configures an Engine.
type Options struct {
	// Workers bounds the number of concurrent traversal goroutines.
	// Values below 1 select a default based on the CPU count.
	Workers int

	// Exclude lists path prefixes that are never descended into.
	// Used for virtual filesystems like /proc that lie about sizes.
	Exclude []string
}

// Validate applies defaults for unset or invalid fields.
func (o *Options) Validate() error {
	if o.Workers < 1 {
		o.Workers = runtime.NumCPU()
	}
	if o.Workers > maxWorkers {
		o.Workers = maxWorkers
	}
	return nil
}

// Stats is a snapshot of engine counters, cumulative over the engine's
// lifetime.
type Stats struct {
	DirsOpened int64
	FilesSeen  int64
	BytesSeen  int64
	CacheHits  int64
}

// Engine performs subtree scans. It is safe for concurrent use; counters
// aggregate across all scans run through the same engine.
type Engine struct {
	opts Options

	// skip holds cleaned exclusion prefixes plus platform alias prefixes.
	skip []string

	dirsOpened atomic.Int64
	filesSeen  atomic.Int64
	bytesSeen  atomic.Int64
	cacheHits  atomic.Int64
}

// New creates an Engine with the given options. Options are validated and
// defaults applied.
func New(opts Options) *Engine {
	_ = opts.Validate()

	skip := make([]string, 0, len(opts.Exclude)+len(aliasPrefixes))
	for _, p := range opts.Exclude {
		if p = filepath.Clean(p); p != "" && p != "." {
			skip = append(skip, p)
		}
	}
	skip = append(skip, aliasPrefixes...)

	return &Engine{opts: opts, skip: skip}
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	return Stats{
		DirsOpened: e.dirsOpened.Load(),
		FilesSeen:  e.filesSeen.Load(),
		BytesSeen:  e.bytesSeen.Load(),
		CacheHits:  e.cacheHits.Load(),
	}
}

// Scan computes the aggregate (size, file count) for the subtree rooted at
// root. The scan root's device becomes the home device for the walk;
// subdirectories on other devices contribute nothing. A nil cache disables
// lookup substitution and recording. Cancelling ctx unwinds the walk and
// yields a KindCanceled result.
func (e *Engine) Scan(ctx context.Context, root string, c Cache) Result {
	root = filepath.Clean(root)
	if e.skipped(root) {
		return Result{Kind: KindExcluded}
	}

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Kind: KindVanished}
		}
		return Result{Kind: KindDenied}
	}
	if !info.IsDir() {
		return Result{Kind: KindDenied}
	}

	w := &walk{
		engine: e,
		ctx:    ctx,
		cache:  c,
		dev:    deviceOf(info),
		sem:    semaphore.NewWeighted(int64(e.opts.Workers)),
	}
	return w.dir(root, info.ModTime().Unix())
}

// skipped reports whether path equals or sits under an exclusion prefix.
func (e *Engine) skipped(path string) bool {
	for _, p := range e.skip {
		if path == p || strings.HasPrefix(path, p+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

// walk carries the per-scan state shared by every recursive step: the
// cancellation context, the home device, and the semaphore bounding the
// shared worker pool.
type walk struct {
	engine *Engine
	ctx    context.Context
	cache  Cache
	dev    uint64
	sem    *semaphore.Weighted
}

// agg accumulates child contributions. Spawned children add concurrently,
// so both fields are atomic.
type agg struct {
	size  atomic.Int64
	files atomic.Int64
}

func (a *agg) add(r Result) {
	if r.Sized() {
		a.size.Add(r.Size)
	}
	if r.Counted() {
		a.files.Add(r.Files)
	}
}

// dir scans one directory. mtime is the directory's modification time as
// observed by the caller before descending; it is handed to the cache when
// recording so the entry is stamped with the pre-scan observation.
//
// Each subdirectory either resolves from cache, runs on a pool goroutine
// when one is free, or recurses inline on the current goroutine when the
// pool is saturated. Inline recursion under saturation keeps the walk
// deadlock-free: a parent waiting at the join never holds capacity its
// descendants need.
func (w *walk) dir(path string, mtime int64) Result {
	if w.ctx.Err() != nil {
		return Result{Kind: KindCanceled}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Kind: KindVanished}
		}
		return Result{Kind: KindDenied}
	}
	w.engine.dirsOpened.Add(1)

	var (
		sum      agg
		wg       sync.WaitGroup
		canceled bool
	)
	for _, ent := range entries {
		if w.ctx.Err() != nil {
			canceled = true
			break
		}

		switch {
		case ent.IsDir():
			child := filepath.Join(path, ent.Name())
			if w.engine.skipped(child) {
				continue
			}
			info, err := ent.Info()
			if err != nil {
				// Vanished between enumeration and stat. The parent
				// aggregate simply omits it.
				continue
			}
			if w.dev != 0 && deviceOf(info) != w.dev {
				continue
			}
			cmtime := info.ModTime().Unix()
			if w.cache != nil {
				if size, files, ok := w.cache.Lookup(child, cmtime); ok {
					w.engine.cacheHits.Add(1)
					sum.size.Add(size)
					sum.files.Add(files)
					continue
				}
			}
			if w.sem.TryAcquire(1) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer w.sem.Release(1)
					sum.add(w.dir(child, cmtime))
				}()
			} else {
				sum.add(w.dir(child, cmtime))
			}

		case ent.Type()&fs.ModeSymlink != 0:
			// Symlinks count as one file; their own size is noise and
			// reading it would cost a stat per link.
			sum.files.Add(1)
			w.engine.filesSeen.Add(1)

		case ent.Type().IsRegular():
			info, err := ent.Info()
			if err != nil {
				continue
			}
			sum.size.Add(info.Size())
			sum.files.Add(1)
			w.engine.filesSeen.Add(1)
			w.engine.bytesSeen.Add(info.Size())

		default:
			// Sockets, devices, and fifos contribute to neither counter.
		}
	}
	wg.Wait()

	if canceled || w.ctx.Err() != nil {
		return Result{Kind: KindCanceled}
	}

	res := Result{Size: sum.size.Load(), Files: sum.files.Load(), Kind: KindScanned}
	if filepath.Base(path) == gitDirName {
		res.Kind = KindSuppressed
		res.Files = 0
	}
	if w.cache != nil && res.Kind == KindScanned {
		w.cache.Record(path, res.Size, res.Files, mtime)
	}
	return res
}
