// Package config loads the daemon's key=value configuration file and
// resolves the per-user paths for the cache store, status file, pidfile,
// and logs.
package config

import "time"

// Default configuration values for tally.
const (
	// DefaultScanInterval is the pause between scan passes.
	DefaultScanInterval = 30 * time.Minute

	// DefaultFileThreshold is the minimum recursive file count for a
	// directory to earn a cache entry.
	DefaultFileThreshold int64 = 1000

	// DefaultLogLevel is used when the config file sets none.
	DefaultLogLevel = "info"
)

// DefaultExclusions lists path prefixes never descended into. These
// virtual filesystems report sizes that mean nothing on disk.
var DefaultExclusions = []string{
	"/proc",
	"/sys",
	"/dev",
}
