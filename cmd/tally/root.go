package main

import (
	"fmt"
	"os"

	"github.com/jamesainslie/tally/pkg/tally/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	quiet   bool
	verbose bool
	noCache bool

	rootCmd = &cobra.Command{
		Use:   "tally [path]...",
		Short: "Fast recursive directory sizes from a daemon-maintained cache",
		Long: `Tally reports recursive directory sizes and file counts. Answers come
from a cache kept fresh by the tallyd daemon; directories the daemon has
not seen yet are scanned on the spot.

Examples:
  tally ~/src                # Size of one directory
  tally /var/log /tmp        # Several at once
  tally --no-cache ~/src     # Force a live scan
  tally start                # Launch the daemon
  tally status               # Daemon and cache health
  tally config               # Show effective configuration`,
		Args: cobra.ArbitraryArgs,
		RunE: runSize,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/tally/config)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "bypass the cache, always scan")
}

// loadConfig resolves the config file path and loads it. Load errors are
// reported but never fatal: the CLI runs on defaults when the file is bad.
func loadConfig() (config.Config, string) {
	path := cfgFile
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		printVerbose("config load failed, using defaults: %v", err)
	}
	return cfg, path
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
