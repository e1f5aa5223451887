package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jamesainslie/tally/pkg/tally/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	Long: `Show the effective configuration and where it came from.

The config file is a key=value file at ~/.config/tally/config (or
$XDG_CONFIG_HOME/tally/config). Missing keys use built-in defaults.`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	Long:  `Write a commented default configuration file if none exists.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, path := loadConfig()

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config file: %s\n\n", path)
	} else {
		fmt.Printf("Config file: %s (not present, using defaults)\n\n", path)
	}

	fmt.Println("Effective configuration:")
	fmt.Println("------------------------")
	fmt.Printf("scan_interval:   %s\n", cfg.ScanInterval)
	fmt.Printf("file_threshold:  %d\n", cfg.FileThreshold)
	fmt.Printf("log_level:       %s\n", cfg.LogLevel)
	if cfg.LogFile != "" {
		fmt.Printf("log_file:        %s\n", cfg.LogFile)
	} else {
		fmt.Printf("log_file:        (default: %s)\n", config.LogPath())
	}
	if cfg.Workers > 0 {
		fmt.Printf("workers:         %d\n", cfg.Workers)
	} else {
		fmt.Printf("workers:         auto\n")
	}
	fmt.Printf("exclude:         %s\n", strings.Join(cfg.Exclude, ","))

	fmt.Println("\nPaths:")
	fmt.Println("------")
	fmt.Printf("cache store:  %s\n", config.DBPath())
	fmt.Printf("status file:  %s\n", config.StatusPath())
	fmt.Printf("pid file:     %s\n", config.PIDPath())

	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	if err := config.WriteDefault(); err != nil {
		return err
	}
	printInfo("Config file: %s", config.ConfigPath())
	return nil
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	fmt.Println(config.ConfigPath())
	return nil
}
