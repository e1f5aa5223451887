// Package client is the read side of the cache. It answers directory
// size queries from the store the daemon publishes, validates every
// cached answer against the directory's live modification time, and
// falls back to scanning when the cache has nothing trustworthy. It
// never writes the store.
package client

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jamesainslie/tally/pkg/tally/logging"
	"github.com/jamesainslie/tally/pkg/tally/scan"
	"github.com/jamesainslie/tally/pkg/tally/store"
)

// ErrNoCache is returned by store-backed queries when no usable cache
// store is open.
var ErrNoCache = errors.New("client: cache store unavailable")

// Stats is the size and file-count pair for one directory subtree.
type Stats struct {
	Size  int64
	Files int64
}

// Options configures a Client.
type Options struct {
	// DBPath is the canonical cache store file.
	DBPath string

	// Scan configures the fallback engine used when the cache cannot
	// answer.
	Scan scan.Options
}

// Client reads cached directory stats. A missing or unusable store
// degrades the client to scan-only operation rather than failing it;
// interactive callers should always get an answer.
type Client struct {
	st     *store.Store // nil when the cache is unavailable
	engine *scan.Engine
	logger *log.Logger
}

// New opens the canonical store read-only and builds the fallback
// engine. Store problems are logged, not returned.
func New(opts Options) *Client {
	logger := logging.Get("client")

	st, err := store.OpenReadOnly(opts.DBPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no cache store yet, queries will scan", "path", opts.DBPath)
		} else {
			logger.Warn("cache store unusable, queries will scan", "path", opts.DBPath, "error", err)
		}
		st = nil
	}

	return &Client{
		st:     st,
		engine: scan.New(opts.Scan),
		logger: logger,
	}
}

// Cached reports whether a cache store is open.
func (c *Client) Cached() bool {
	return c.st != nil
}

// LookupStats returns the cached stats for path, but only when the
// entry's recorded directory mtime matches the directory's current one.
// Everything else, including a busy or broken store, reads as a miss.
func (c *Client) LookupStats(path string) (Stats, bool) {
	if c.st == nil {
		return Stats{}, false
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return Stats{}, false
	}

	e, err := c.st.Lookup(path)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Debug("cache lookup failed", "path", path, "error", err)
		}
		return Stats{}, false
	}
	if e.DirMtime != info.ModTime().Unix() {
		return Stats{}, false
	}
	return Stats{Size: e.Size, Files: e.FileCount}, true
}

// ScanUncached computes stats for path by walking it, bypassing the
// cache entirely.
func (c *Client) ScanUncached(ctx context.Context, path string) (Stats, error) {
	res := c.engine.Scan(ctx, path, nil)
	size, files := res.Pair()
	if size < 0 {
		return Stats{}, fmt.Errorf("client: scan %s: %s", path, res.Kind)
	}
	if files < 0 {
		files = 0
	}
	return Stats{Size: size, Files: files}, nil
}

// Stats returns cached stats when a trusted entry exists and scans
// otherwise.
func (c *Client) Stats(ctx context.Context, path string) (Stats, error) {
	if s, ok := c.LookupStats(path); ok {
		return s, nil
	}
	return c.ScanUncached(ctx, path)
}

// Generation returns the published generation id and creation time of
// the open store.
func (c *Client) Generation() (string, time.Time, error) {
	if c.st == nil {
		return "", time.Time{}, ErrNoCache
	}
	return c.st.Generation()
}

// Count returns the number of cached entries in the open store.
func (c *Client) Count() (int64, error) {
	if c.st == nil {
		return 0, ErrNoCache
	}
	return c.st.Count()
}

// Close releases the store handle, if any.
func (c *Client) Close() error {
	if c.st == nil {
		return nil
	}
	return c.st.Close()
}
