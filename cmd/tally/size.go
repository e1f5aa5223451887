package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/tally/pkg/client"
	"github.com/jamesainslie/tally/pkg/tally/config"
	"github.com/jamesainslie/tally/pkg/tally/scan"
	"github.com/spf13/cobra"
)

var sizeCmd = &cobra.Command{
	Use:   "size [path]...",
	Short: "Report recursive directory sizes",
	Long: `Report the recursive size and file count of each path.

Cached answers are validated against the directory's current modification
time; stale or missing entries trigger a live scan of that path.`,
	Args: cobra.ArbitraryArgs,
	RunE: runSize,
}

func init() {
	rootCmd.AddCommand(sizeCmd)
}

func runSize(_ *cobra.Command, args []string) error {
	targets, err := resolveTargets(args)
	if err != nil {
		return err
	}

	cfg, _ := loadConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c := client.New(client.Options{
		DBPath: config.DBPath(),
		Scan: scan.Options{
			Workers: cfg.Workers,
			Exclude: cfg.Exclude,
		},
	})
	defer c.Close()

	if !c.Cached() {
		printVerbose("no cache store at %s, scanning live", config.DBPath())
	}

	var firstErr error
	for _, path := range targets {
		st, err := lookupOne(ctx, c, path)
		if err != nil {
			printError("%s: %v", path, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		printInfo("%10s  %7s files  %s", humanize.IBytes(uint64(st.Size)), humanize.Comma(st.Files), path)
	}
	return firstErr
}

// lookupOne answers from the cache when permitted and fresh, otherwise
// scans the path directly.
func lookupOne(ctx context.Context, c *client.Client, path string) (client.Stats, error) {
	if !noCache {
		if st, ok := c.LookupStats(path); ok {
			printVerbose("%s: cache hit", path)
			return st, nil
		}
		printVerbose("%s: cache miss, scanning", path)
	}
	return c.ScanUncached(ctx, path)
}

// resolveTargets turns command arguments into absolute paths, defaulting
// to the current directory when none are given.
func resolveTargets(args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}
	targets := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		targets = append(targets, abs)
	}
	return targets, nil
}
