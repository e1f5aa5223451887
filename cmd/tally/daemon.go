package main

import (
	"errors"

	"github.com/jamesainslie/tally/pkg/client"
	"github.com/jamesainslie/tally/pkg/daemon"
	"github.com/jamesainslie/tally/pkg/tally/config"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start [root]...",
	Short: "Start the tallyd daemon",
	Long: `Start the tallyd daemon in the background.

Roots given here are passed to the daemon as its scan roots; with none,
the daemon falls back to its built-in defaults.`,
	Args: cobra.ArbitraryArgs,
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the tallyd daemon",
	Long:  `Stop the tallyd daemon gracefully.`,
	RunE:  runStop,
}

var restartCmd = &cobra.Command{
	Use:   "restart [root]...",
	Short: "Restart the tallyd daemon",
	Long:  `Stop and start the tallyd daemon.`,
	Args:  cobra.ArbitraryArgs,
	RunE:  runRestart,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Trigger an immediate scan pass",
	Long:  `Signal the running tallyd daemon to begin a scan pass now.`,
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(refreshCmd)
}

func daemonPaths() client.DaemonPaths {
	return client.DaemonPaths{
		PID:    config.PIDPath(),
		Status: config.StatusPath(),
	}
}

func runStart(_ *cobra.Command, args []string) error {
	printVerbose("starting daemon...")
	if err := client.StartDaemon(daemonPaths(), args); err != nil {
		printVerbose("start failed: %v", err)
		return err
	}
	printInfo("Daemon started")
	return nil
}

func runStop(_ *cobra.Command, _ []string) error {
	paths := daemonPaths()
	if !daemon.IsDaemonRunning(paths.PID) {
		printVerbose("daemon not running (pid check failed)")
		return errors.New("daemon is not running")
	}
	printVerbose("sending stop signal...")
	if err := client.StopDaemon(paths); err != nil {
		return err
	}
	printInfo("Daemon stopped")
	return nil
}

func runRestart(cmd *cobra.Command, args []string) error {
	paths := daemonPaths()
	if daemon.IsDaemonRunning(paths.PID) {
		if err := runStop(cmd, nil); err != nil {
			return err
		}
	}
	return runStart(cmd, args)
}

func runRefresh(_ *cobra.Command, _ []string) error {
	paths := daemonPaths()
	if !daemon.IsDaemonRunning(paths.PID) {
		return errors.New("daemon is not running")
	}
	if err := client.RefreshDaemon(paths); err != nil {
		return err
	}
	printInfo("Refresh requested")
	return nil
}
