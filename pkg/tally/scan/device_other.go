//go:build !unix

package scan

import "io/fs"

// deviceOf returns 0 on platforms without stat device ids, disabling
// device-boundary detection.
func deviceOf(info fs.FileInfo) uint64 {
	return 0
}
