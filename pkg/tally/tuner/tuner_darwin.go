//go:build darwin

package tuner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect detects available system resources (CPU and RAM).
// On darwin it uses runtime.NumCPU() for CPU cores and sysctl for
// memory information.
func Detect() (Resources, error) {
	resources := Resources{
		CPUCores: runtime.NumCPU(),
	}

	// hw.memsize returns the total physical memory as a 64-bit value.
	memsize, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return resources, fmt.Errorf("sysctl hw.memsize: %w", err)
	}
	resources.TotalRAM = int64(memsize)

	// Precise available memory on macOS needs host_statistics; half of
	// total is a conservative estimate that serves pool sizing fine.
	resources.AvailableRAM = resources.TotalRAM / 2

	return resources, nil
}
