// Package store persists directory size aggregates in a single-file
// transactional cache. The file holds one table keyed by absolute path
// plus a small meta table identifying the generation. Write-ahead mode
// keeps concurrent readers unblocked while the daemon writes; publishing
// a new generation is a checkpoint followed by an atomic rename.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Entry is one cached directory aggregate. Size and FileCount are the
// full recursive totals observed while the directory's modification time
// was DirMtime; the entry is trustworthy only while the live mtime still
// matches.
type Entry struct {
	Path      string
	Size      int64
	FileCount int64
	DirMtime  int64
}

// ErrNotFound marks a lookup for a path with no cached entry.
var ErrNotFound = errors.New("store: entry not found")

// Store is a handle to one cache file, opened either read-only (client
// side) or read-write (daemon side). Method calls are serialized over a
// single connection, so a Store is safe for concurrent use.
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// OpenReadOnly opens the canonical store for lookups. A missing file is
// reported with an error wrapping fs.ErrNotExist; callers treat that as
// "cache disabled". When a writer holds the store busy, individual
// queries wait up to a second and then fail rather than hang.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	db, err := sql.Open(driverName, "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("store: open read-only %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		`PRAGMA busy_timeout=1000`,
		`PRAGMA query_only=ON`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	return &Store{db: db, path: path, readOnly: true}, nil
}

// OpenReadWrite opens or creates a store for writing. The file's
// integrity is verified first; a store that fails the check or carries an
// unknown schema is deleted and recreated empty, so a damaged cache costs
// its contents but never the ability to cache.
func OpenReadWrite(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	db, err := openWritable(path)
	if err != nil {
		RemoveFiles(path)
		db, err = openWritable(path)
		if err != nil {
			return nil, fmt.Errorf("store: reopen after recovery: %w", err)
		}
	}

	return &Store{db: db, path: path}, nil
}

// openWritable opens path with write pragmas, verifies integrity, and
// ensures the schema exists at the expected version.
func openWritable(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA synchronous=NORMAL`,
		`PRAGMA busy_timeout=5000`,
		`PRAGMA temp_store=MEMORY`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	var verdict string
	if err := db.QueryRow(`PRAGMA integrity_check`).Scan(&verdict); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: integrity check: %w", err)
	}
	if verdict != "ok" {
		db.Close()
		return nil, fmt.Errorf("store: integrity check failed: %s", verdict)
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(createSizesTable); err != nil {
		return fmt.Errorf("store: create sizes table: %w", err)
	}
	if _, err := db.Exec(createMetaTable); err != nil {
		return fmt.Errorf("store: create meta table: %w", err)
	}
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)`,
		metaSchemaVersion, schemaVersion,
	); err != nil {
		return fmt.Errorf("store: write schema version: %w", err)
	}

	var version string
	if err := db.QueryRow(
		`SELECT value FROM meta WHERE key = ?`, metaSchemaVersion,
	).Scan(&version); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("store: schema version %s, want %s", version, schemaVersion)
	}
	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Lookup returns the cached entry for path. Returns ErrNotFound when no
// entry exists; other errors (a store held busy past the timeout, a
// missing table) are reported as-is and callers on the read side treat
// them as misses.
func (s *Store) Lookup(path string) (Entry, error) {
	e := Entry{Path: path}
	err := s.db.QueryRow(
		`SELECT size, file_count, dir_mtime FROM sizes WHERE path = ?`, path,
	).Scan(&e.Size, &e.FileCount, &e.DirMtime)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("store: lookup %s: %w", path, err)
	}
	return e, nil
}

// Upsert inserts or replaces the entry keyed by its path.
func (s *Store) Upsert(e Entry) error {
	_, err := s.db.Exec(
		`INSERT INTO sizes (path, size, file_count, dir_mtime) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		     size = excluded.size,
		     file_count = excluded.file_count,
		     dir_mtime = excluded.dir_mtime`,
		e.Path, e.Size, e.FileCount, e.DirMtime,
	)
	if err != nil {
		return fmt.Errorf("store: upsert %s: %w", e.Path, err)
	}
	return nil
}

// Delete removes the entry for path. Deleting an absent path is not an
// error.
func (s *Store) Delete(path string) error {
	if _, err := s.db.Exec(`DELETE FROM sizes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("store: delete %s: %w", path, err)
	}
	return nil
}

// Count returns the number of cached entries.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sizes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Paths returns every cached path in sorted order. The slice is built
// eagerly so callers can delete entries while iterating it.
func (s *Store) Paths() ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM sizes ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("store: paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("store: paths: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: paths: %w", err)
	}
	return paths, nil
}

// Generation returns the id and creation time stamped when this store
// was published. Returns ErrNotFound for a store never published.
func (s *Store) Generation() (string, time.Time, error) {
	var id string
	err := s.db.QueryRow(
		`SELECT value FROM meta WHERE key = ?`, metaGeneration,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, ErrNotFound
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("store: generation: %w", err)
	}

	var raw string
	if err := s.db.QueryRow(
		`SELECT value FROM meta WHERE key = ?`, metaCreatedAt,
	).Scan(&raw); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, fmt.Errorf("store: generation: %w", err)
	}
	sec, _ := strconv.ParseInt(raw, 10, 64)
	return id, time.Unix(sec, 0), nil
}

// SetGeneration stamps the store with a generation id and creation time.
func (s *Store) SetGeneration(id string, created time.Time) error {
	for key, value := range map[string]string{
		metaGeneration: id,
		metaCreatedAt:  strconv.FormatInt(created.Unix(), 10),
	} {
		if _, err := s.db.Exec(
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return fmt.Errorf("store: set generation: %w", err)
		}
	}
	return nil
}

// Checkpoint folds the write-ahead log back into the main file so the
// store is complete as a single file before publishing.
func (s *Store) Checkpoint() error {
	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("store: checkpoint: %w", err)
	}
	return nil
}

// Close releases the handle. Pending writes are durable once Close
// returns.
func (s *Store) Close() error {
	return s.db.Close()
}

// Clone copies the store at src into a fresh file at dst, replacing any
// stale file there. A missing src yields an empty store at dst, so a
// first run starts from nothing.
func Clone(src, dst string) error {
	RemoveFiles(dst)

	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		s, err := OpenReadWrite(dst)
		if err != nil {
			return err
		}
		return s.Close()
	}

	db, err := sql.Open(driverName, "file:"+src+"?mode=ro")
	if err != nil {
		return fmt.Errorf("store: clone open %s: %w", src, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		return fmt.Errorf("store: clone: %w", err)
	}
	if _, err := db.Exec(`VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("store: clone into %s: %w", dst, err)
	}
	return nil
}

// Publish atomically replaces the canonical store with the scratch file.
// The scratch store must be checkpointed and closed first. A reader
// opening the canonical path at any instant sees either the old or the
// new generation, never a mix; readers already holding the old file keep
// reading it untouched.
func Publish(scratch, canonical string) error {
	// Sidecars belong to the outgoing generation.
	os.Remove(canonical + "-wal")
	os.Remove(canonical + "-shm")

	if err := os.Rename(scratch, canonical); err != nil {
		return fmt.Errorf("store: publish: %w", err)
	}
	return nil
}

// RemoveFiles deletes the store file and its WAL sidecars, ignoring
// missing ones.
func RemoveFiles(path string) {
	os.Remove(path)
	os.Remove(path + "-wal")
	os.Remove(path + "-shm")
}
