// Command tallyd is the background half of tally. It scans the
// configured roots on a schedule, maintains the persistent directory
// size cache, and exposes its phase through a status file. All
// interaction goes through signals and the files it writes; the
// interactive side lives in the tally command.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesainslie/tally/pkg/daemon"
	"github.com/jamesainslie/tally/pkg/tally/config"
	"github.com/jamesainslie/tally/pkg/tally/logging"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: tallyd [flags] [root ...]

Scans the given root directories on a schedule and maintains the
persistent directory size cache read by the tally command. With no
roots, scans the filesystem root and the invoking user's home
directory.

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = usage
	configPath := flag.String("config", config.ConfigPath(), "configuration file")
	logFile := flag.String("log-file", "", "log file (default under the state directory)")
	flag.Parse()

	cfg, cfgErr := config.Load(*configPath)

	for _, ensure := range []func() error{config.EnsureCacheDir, config.EnsureStateDir} {
		if err := ensure(); err != nil {
			fmt.Fprintln(os.Stderr, "tallyd:", err)
			return 1
		}
	}

	logPath := *logFile
	if logPath == "" {
		logPath = cfg.LogFile
	}
	if logPath == "" {
		logPath = config.LogPath()
	}
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Path: logPath}); err != nil {
		fmt.Fprintln(os.Stderr, "tallyd:", err)
		return 1
	}
	defer logging.Close()

	logger := logging.Get("tallyd")
	if cfgErr != nil {
		logger.Warn("configuration file unusable, using defaults", "path", *configPath, "error", cfgErr)
	}

	pidPath := config.PIDPath()
	statusPath := config.StatusPath()
	if err := daemon.RecoverStale(pidPath, statusPath); err != nil {
		fmt.Fprintln(os.Stderr, "tallyd:", err)
		return 1
	}
	if err := daemon.WritePIDFile(pidPath); err != nil {
		fmt.Fprintln(os.Stderr, "tallyd:", err)
		return 1
	}
	defer func() {
		if err := daemon.RemovePIDFile(pidPath); err != nil {
			logger.Warn("removing PID file failed", "error", err)
		}
	}()

	d, err := daemon.New(daemon.Options{
		Roots:      rootsFromArgs(flag.Args()),
		DBPath:     config.DBPath(),
		StatusPath: statusPath,
		Config:     cfg,
	})
	if err != nil {
		logger.Error("startup failed", "error", err)
		fmt.Fprintln(os.Stderr, "tallyd:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if daemon.RefreshSignal != nil {
		refresh := make(chan os.Signal, 1)
		signal.Notify(refresh, daemon.RefreshSignal)
		defer signal.Stop(refresh)
		go func() {
			for range refresh {
				d.Refresh()
			}
		}()
	}

	if watcher, err := config.Watch(*configPath, logging.Get("config"), d.Apply); err == nil {
		defer watcher.Close()
	} else {
		logger.Warn("configuration watching disabled", "error", err)
	}

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon failed", "error", err)
		return 1
	}
	return 0
}

// rootsFromArgs returns the scan roots for the positional arguments,
// falling back to the filesystem root plus the user's home directory.
func rootsFromArgs(args []string) []string {
	if len(args) > 0 {
		return args
	}
	roots := []string{string(os.PathSeparator)}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, home)
	}
	return roots
}
