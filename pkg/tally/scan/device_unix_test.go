//go:build unix

package scan

import (
	"os"
	"testing"
)

// TestDeviceOf verifies device ids are available and stable on the test
// filesystem. Actual boundary behavior needs a second mounted volume, so
// only the id plumbing is checked here.
func TestDeviceOf(t *testing.T) {
	dir := t.TempDir()
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	dev := deviceOf(info)
	if dev == 0 {
		t.Fatal("deviceOf returned 0 for a real directory")
	}

	sub := dir + "/sub"
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	subInfo, err := os.Stat(sub)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if got := deviceOf(subInfo); got != dev {
		t.Errorf("same filesystem, differing device ids: %d vs %d", dev, got)
	}
}
