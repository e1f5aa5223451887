//go:build unix

package scan

import (
	"io/fs"
	"syscall"
)

// deviceOf returns the device id backing the file, used to detect mount
// boundaries during a walk. Returns 0 when the id is unavailable, which
// disables boundary detection for that comparison.
func deviceOf(info fs.FileInfo) uint64 {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(stat.Dev)
}
