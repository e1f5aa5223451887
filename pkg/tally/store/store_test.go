package store_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/tally/pkg/tally/store"
)

func TestStoreEmpty(t *testing.T) {
	s, err := store.OpenReadWrite(filepath.Join(t.TempDir(), "sizes.db"))
	if err != nil {
		t.Fatalf("OpenReadWrite failed: %v", err)
	}
	defer s.Close()

	if _, err := s.Lookup("/nowhere"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Lookup on empty store: got %v, want ErrNotFound", err)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Count on empty store: got %d, want 0", n)
	}
}

func TestStoreUpsertLookup(t *testing.T) {
	s, err := store.OpenReadWrite(filepath.Join(t.TempDir(), "sizes.db"))
	if err != nil {
		t.Fatalf("OpenReadWrite failed: %v", err)
	}
	defer s.Close()

	entry := store.Entry{Path: "/home/u/projects", Size: 4096, FileCount: 1500, DirMtime: 1700000000}
	if err := s.Upsert(entry); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := s.Lookup("/home/u/projects")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got != entry {
		t.Errorf("Lookup: got %+v, want %+v", got, entry)
	}

	// Same key again replaces the values.
	entry.Size = 8192
	entry.DirMtime = 1700000100
	if err := s.Upsert(entry); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	got, err = s.Lookup("/home/u/projects")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.Size != 8192 || got.DirMtime != 1700000100 {
		t.Errorf("after overwrite: got %+v", got)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count: got %d, want 1", n)
	}
}

func TestStoreDelete(t *testing.T) {
	s, err := store.OpenReadWrite(filepath.Join(t.TempDir(), "sizes.db"))
	if err != nil {
		t.Fatalf("OpenReadWrite failed: %v", err)
	}
	defer s.Close()

	if err := s.Upsert(store.Entry{Path: "/a", Size: 1, FileCount: 2, DirMtime: 3}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := s.Delete("/a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Lookup("/a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Lookup after delete: got %v, want ErrNotFound", err)
	}

	// Deleting a path with no entry is fine.
	if err := s.Delete("/never-there"); err != nil {
		t.Errorf("Delete of absent path: %v", err)
	}
}

func TestStorePaths(t *testing.T) {
	s, err := store.OpenReadWrite(filepath.Join(t.TempDir(), "sizes.db"))
	if err != nil {
		t.Fatalf("OpenReadWrite failed: %v", err)
	}
	defer s.Close()

	for _, p := range []string{"/b", "/a", "/c/d"} {
		if err := s.Upsert(store.Entry{Path: p, Size: 1, FileCount: 1, DirMtime: 1}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	paths, err := s.Paths()
	if err != nil {
		t.Fatalf("Paths failed: %v", err)
	}
	want := []string{"/a", "/b", "/c/d"}
	if len(paths) != len(want) {
		t.Fatalf("Paths: got %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("Paths[%d]: got %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestStoreOpenReadOnlyMissing(t *testing.T) {
	_, err := store.OpenReadOnly(filepath.Join(t.TempDir(), "absent.db"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("OpenReadOnly on missing file: got %v, want fs.ErrNotExist", err)
	}
}

func TestStoreReadOnlySeesWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sizes.db")

	rw, err := store.OpenReadWrite(path)
	if err != nil {
		t.Fatalf("OpenReadWrite failed: %v", err)
	}
	defer rw.Close()

	entry := store.Entry{Path: "/data", Size: 77, FileCount: 3, DirMtime: 9}
	if err := rw.Upsert(entry); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Write-ahead mode: a reader sees committed rows while the writer
	// stays open.
	ro, err := store.OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer ro.Close()

	got, err := ro.Lookup("/data")
	if err != nil {
		t.Fatalf("Lookup via read-only handle failed: %v", err)
	}
	if got != entry {
		t.Errorf("Lookup: got %+v, want %+v", got, entry)
	}
}

func TestStoreCorruptionRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sizes.db")
	if err := os.WriteFile(path, []byte("this is not a database"), 0o644); err != nil {
		t.Fatalf("writing garbage: %v", err)
	}

	s, err := store.OpenReadWrite(path)
	if err != nil {
		t.Fatalf("OpenReadWrite on corrupt file failed: %v", err)
	}
	defer s.Close()

	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("recovered store should be empty, got %d entries", n)
	}

	// The recovered store is fully usable.
	if err := s.Upsert(store.Entry{Path: "/x", Size: 1, FileCount: 1, DirMtime: 1}); err != nil {
		t.Errorf("Upsert after recovery failed: %v", err)
	}
}

func TestStoreClone(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "canonical.db")
	dst := filepath.Join(dir, "scratch.db")

	s, err := store.OpenReadWrite(src)
	if err != nil {
		t.Fatalf("OpenReadWrite failed: %v", err)
	}
	for _, p := range []string{"/a", "/b"} {
		if err := s.Upsert(store.Entry{Path: p, Size: 10, FileCount: 5, DirMtime: 100}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := store.Clone(src, dst); err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	c, err := store.OpenReadWrite(dst)
	if err != nil {
		t.Fatalf("OpenReadWrite on clone failed: %v", err)
	}
	defer c.Close()

	n, err := c.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("clone Count: got %d, want 2", n)
	}
	got, err := c.Lookup("/a")
	if err != nil {
		t.Fatalf("Lookup in clone failed: %v", err)
	}
	if got.Size != 10 || got.FileCount != 5 {
		t.Errorf("clone Lookup: got %+v", got)
	}
}

func TestStoreCloneMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "scratch.db")

	if err := store.Clone(filepath.Join(dir, "never-existed.db"), dst); err != nil {
		t.Fatalf("Clone from missing source failed: %v", err)
	}

	c, err := store.OpenReadWrite(dst)
	if err != nil {
		t.Fatalf("OpenReadWrite failed: %v", err)
	}
	defer c.Close()

	n, err := c.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}

func TestStorePublish(t *testing.T) {
	dir := t.TempDir()
	canonical := filepath.Join(dir, "sizes.db")
	scratch := canonical + ".next"

	// Old generation a reader could be holding.
	old, err := store.OpenReadWrite(canonical)
	if err != nil {
		t.Fatalf("OpenReadWrite failed: %v", err)
	}
	if err := old.Upsert(store.Entry{Path: "/old", Size: 1, FileCount: 1, DirMtime: 1}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := old.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	next, err := store.OpenReadWrite(scratch)
	if err != nil {
		t.Fatalf("OpenReadWrite scratch failed: %v", err)
	}
	if err := next.Upsert(store.Entry{Path: "/new", Size: 2, FileCount: 2, DirMtime: 2}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	created := time.Unix(1700000000, 0)
	if err := next.SetGeneration("gen-test-1", created); err != nil {
		t.Fatalf("SetGeneration failed: %v", err)
	}
	if err := next.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if err := next.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := store.Publish(scratch, canonical); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if _, err := os.Stat(scratch); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("scratch file still present after publish")
	}

	ro, err := store.OpenReadOnly(canonical)
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer ro.Close()

	if _, err := ro.Lookup("/old"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("old generation entry visible after publish")
	}
	if _, err := ro.Lookup("/new"); err != nil {
		t.Errorf("new generation entry missing after publish: %v", err)
	}

	id, when, err := ro.Generation()
	if err != nil {
		t.Fatalf("Generation failed: %v", err)
	}
	if id != "gen-test-1" {
		t.Errorf("generation id: got %q, want %q", id, "gen-test-1")
	}
	if !when.Equal(created) {
		t.Errorf("generation time: got %v, want %v", when, created)
	}
}

func TestStoreGenerationUnpublished(t *testing.T) {
	s, err := store.OpenReadWrite(filepath.Join(t.TempDir(), "sizes.db"))
	if err != nil {
		t.Fatalf("OpenReadWrite failed: %v", err)
	}
	defer s.Close()

	if _, _, err := s.Generation(); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Generation on unpublished store: got %v, want ErrNotFound", err)
	}
}

func TestStoreConcurrentLookups(t *testing.T) {
	s, err := store.OpenReadWrite(filepath.Join(t.TempDir(), "sizes.db"))
	if err != nil {
		t.Fatalf("OpenReadWrite failed: %v", err)
	}
	defer s.Close()

	if err := s.Upsert(store.Entry{Path: "/shared", Size: 10, FileCount: 2, DirMtime: 5}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Lookup("/shared")
			if err != nil {
				t.Errorf("concurrent Lookup failed: %v", err)
				return
			}
			if got.Size != 10 || got.FileCount != 2 {
				t.Errorf("concurrent Lookup: got %+v", got)
			}
		}()
	}
	wg.Wait()
}
