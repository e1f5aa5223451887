// Package tuner detects system resources and sizes the scan worker pool
// to match them. Directory traversal is metadata-bound I/O, so the pool
// runs wider than the core count, damped on memory-starved machines.
package tuner

const (
	// minWorkers keeps some concurrency even on tiny machines.
	minWorkers = 2

	// maxWorkers caps the pool to avoid excessive context switching.
	maxWorkers = 64

	// lowRAMThreshold is the available-memory floor below which the
	// pool shrinks to the core count.
	lowRAMThreshold = 1 * 1024 * 1024 * 1024

	// tinyRAMThreshold is the available-memory floor below which the
	// pool shrinks to the minimum.
	tinyRAMThreshold = 256 * 1024 * 1024
)

// Resources contains detected system resources.
type Resources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is the available RAM in bytes. On some platforms
	// this is an estimate.
	AvailableRAM int64
}

// Workers returns the scan worker count for the detected resources.
//
// The calculation:
//   - CPUCores * 2, since directory walking spends most of its time
//     waiting on metadata I/O
//   - damped to CPUCores when available RAM is under 1GB, and to the
//     minimum under 256MB
//   - clamped to [2, 64]
func Workers(r Resources) int {
	workers := r.CPUCores * 2

	switch {
	case r.AvailableRAM > 0 && r.AvailableRAM < tinyRAMThreshold:
		workers = minWorkers
	case r.AvailableRAM > 0 && r.AvailableRAM < lowRAMThreshold:
		workers = r.CPUCores
	}

	workers = max(workers, minWorkers)
	workers = min(workers, maxWorkers)
	return workers
}

// WorkersWithOverride applies a user override to the calculated count.
// Overrides greater than zero win, still subject to the cap; zero or
// negative falls back to the calculation.
func WorkersWithOverride(r Resources, override int) int {
	if override > 0 {
		return min(override, maxWorkers)
	}
	return Workers(r)
}
