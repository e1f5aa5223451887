package daemon_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tally/pkg/daemon"
	"github.com/jamesainslie/tally/pkg/tally/config"
	"github.com/jamesainslie/tally/pkg/tally/store"
)

// startDaemon runs d.Run in the background; the returned stop func
// cancels it and waits for a clean exit.
func startDaemon(t *testing.T, d *daemon.Daemon) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
		}
	}
}

// waitGeneration blocks until the canonical store carries a generation
// id different from previous, and returns it.
func waitGeneration(t *testing.T, db, previous string) string {
	t.Helper()
	var id string
	require.Eventually(t, func() bool {
		st, err := store.OpenReadOnly(db)
		if err != nil {
			return false
		}
		defer st.Close()
		got, _, err := st.Generation()
		if err != nil || got == previous {
			return false
		}
		id = got
		return true
	}, 10*time.Second, 25*time.Millisecond, "no new generation published")
	return id
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ScanInterval = time.Hour
	cfg.FileThreshold = 1
	return cfg
}

func TestDaemonRunAndRefresh(t *testing.T) {
	root := t.TempDir()
	writeBytes(t, filepath.Join(root, "d", "f"), 10)
	base := t.TempDir()
	db := filepath.Join(base, "sizes.db")
	status := filepath.Join(base, "status")

	d, err := daemon.New(daemon.Options{
		Roots:      []string{root},
		DBPath:     db,
		StatusPath: status,
		Config:     testConfig(),
	})
	require.NoError(t, err)

	stop := startDaemon(t, d)

	gen1 := waitGeneration(t, db, "")
	require.Eventually(t, func() bool {
		phase, err := daemon.ReadStatus(status)
		return err == nil && phase == daemon.PhaseIdle
	}, 10*time.Second, 25*time.Millisecond, "status never settled on idle")

	d.Refresh()
	gen2 := waitGeneration(t, db, gen1)
	require.NotEqual(t, gen1, gen2)

	stop()

	_, err = daemon.ReadStatus(status)
	require.Error(t, err, "status file should be removed on shutdown")

	st, err := store.OpenReadOnly(db)
	require.NoError(t, err, "published store must survive shutdown")
	defer st.Close()
	n, err := st.Count()
	require.NoError(t, err)
	require.Positive(t, n)
}

func TestDaemonNewNoUsableRoots(t *testing.T) {
	base := t.TempDir()
	_, err := daemon.New(daemon.Options{
		Roots:      []string{filepath.Join(base, "missing")},
		DBPath:     filepath.Join(base, "sizes.db"),
		StatusPath: filepath.Join(base, "status"),
		Config:     testConfig(),
	})
	require.Error(t, err)
}

func TestDaemonApplyThreshold(t *testing.T) {
	root := t.TempDir()
	writeBytes(t, filepath.Join(root, "d", "f"), 10)
	base := t.TempDir()
	db := filepath.Join(base, "sizes.db")

	cfg := testConfig()
	cfg.FileThreshold = 100
	d, err := daemon.New(daemon.Options{
		Roots:      []string{root},
		DBPath:     db,
		StatusPath: filepath.Join(base, "status"),
		Config:     cfg,
	})
	require.NoError(t, err)

	stop := startDaemon(t, d)
	defer stop()

	gen1 := waitGeneration(t, db, "")
	st, err := store.OpenReadOnly(db)
	require.NoError(t, err)
	n, err := st.Count()
	st.Close()
	require.NoError(t, err)
	require.Zero(t, n, "nothing clears a threshold of 100")

	cfg.FileThreshold = 1
	d.Apply(cfg)
	d.Refresh()

	waitGeneration(t, db, gen1)
	st, err = store.OpenReadOnly(db)
	require.NoError(t, err)
	defer st.Close()
	n, err = st.Count()
	require.NoError(t, err)
	require.Positive(t, n, "lowered threshold should cache directories")
}

func TestDaemonNestedRootsMatchAncestorScan(t *testing.T) {
	shared := t.TempDir()
	writeBytes(t, filepath.Join(shared, "x", "f1"), 10)
	writeBytes(t, filepath.Join(shared, "x", "f2"), 20)
	writeBytes(t, filepath.Join(shared, "sub", "y", "f3"), 30)

	runOnce := func(roots []string) map[string]store.Entry {
		base := t.TempDir()
		db := filepath.Join(base, "sizes.db")
		d, err := daemon.New(daemon.Options{
			Roots:      roots,
			DBPath:     db,
			StatusPath: filepath.Join(base, "status"),
			Config:     testConfig(),
		})
		require.NoError(t, err)
		stop := startDaemon(t, d)
		waitGeneration(t, db, "")
		stop()
		return snapshot(t, db)
	}

	ancestorOnly := runOnce([]string{shared})
	nested := runOnce([]string{shared, filepath.Join(shared, "sub")})

	require.Equal(t, ancestorOnly, nested,
		"overlapping roots must produce the same cache as the ancestor alone")
}
