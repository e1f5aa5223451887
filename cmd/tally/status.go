package main

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/tally/pkg/client"
	"github.com/jamesainslie/tally/pkg/daemon"
	"github.com/jamesainslie/tally/pkg/tally/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and cache status",
	Long:  `Show whether tallyd is running, its current phase, and cache health.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	pidPath := config.PIDPath()
	statusPath := config.StatusPath()
	dbPath := config.DBPath()

	printVerbose("pid file: %s", pidPath)
	printVerbose("status file: %s", statusPath)
	printVerbose("cache store: %s", dbPath)

	pid, err := daemon.ReadPIDFile(pidPath)
	switch {
	case err == nil && daemon.IsProcessRunning(pid):
		printInfo("Daemon: running (pid %d)", pid)
		if phase, err := daemon.ReadStatus(statusPath); err == nil {
			printInfo("Phase:  %s", phase)
		}
	case err == nil:
		printInfo("Daemon: not running (stale pid file for %d)", pid)
	default:
		printInfo("Daemon: not running")
	}

	c := client.New(client.Options{DBPath: dbPath})
	defer c.Close()

	if !c.Cached() {
		printInfo("Cache:  none (start the daemon with: tally start)")
		return nil
	}

	if count, err := c.Count(); err == nil {
		printInfo("Cache:  %s directories", humanize.Comma(count))
	}
	if generation, created, err := c.Generation(); err == nil {
		printInfo("Generation: %s (published %s)", generation, humanize.Time(created))
	}
	if info, err := os.Stat(dbPath); err == nil {
		printInfo("Store size: %s", humanize.IBytes(uint64(info.Size())))
	}

	return nil
}
