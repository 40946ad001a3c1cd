package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const envPrefix = "SEMSTREAMS_FIX_"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	EnvFile         string
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func newFlagSet(cfg *CLIConfig) *pflag.FlagSet {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVarP(&cfg.ConfigPath, "config", "c", "configs/semstreams-fix.yaml",
		"Path to configuration file (env: "+envPrefix+"CONFIG)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info",
		"Log level: debug, info, warn, error (env: "+envPrefix+"LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", "json",
		"Log format: json, text (env: "+envPrefix+"LOG_FORMAT)")
	fs.BoolVar(&cfg.Debug, "debug", false,
		"Enable debug logging (env: "+envPrefix+"DEBUG)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 30*time.Second,
		"Graceful shutdown timeout (env: "+envPrefix+"SHUTDOWN_TIMEOUT)")
	fs.StringVar(&cfg.EnvFile, "env-file", ".env",
		"Optional file of environment variables loaded before the env fallbacks")
	fs.BoolVarP(&cfg.ShowVersion, "version", "v", false, "Show version information")
	fs.BoolVarP(&cfg.ShowHelp, "help", "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and dictionaries, then exit")
	return fs
}

// parseFlags parses args, loads the env file, and fills every flag that was
// not given on the command line from its environment variable.
func parseFlags(args []string, getenv func(string) string) (*CLIConfig, *pflag.FlagSet, error) {
	cfg := &CLIConfig{}
	fs := newFlagSet(cfg)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}

	if cfg.EnvFile != "" {
		err := godotenv.Load(cfg.EnvFile)
		if err != nil && (fs.Changed("env-file") || !errors.Is(err, os.ErrNotExist)) {
			return nil, fs, fmt.Errorf("load env file %s: %w", cfg.EnvFile, err)
		}
	}

	if err := applyEnv(fs, cfg, getenv); err != nil {
		return nil, fs, err
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg, fs, nil
}

func applyEnv(fs *pflag.FlagSet, cfg *CLIConfig, getenv func(string) string) error {
	lookup := func(flag, key string) (string, bool) {
		if fs.Changed(flag) {
			return "", false
		}
		v := getenv(envPrefix + key)
		return v, v != ""
	}

	if v, ok := lookup("config", "CONFIG"); ok {
		cfg.ConfigPath = v
	}
	if v, ok := lookup("log-level", "LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := lookup("log-format", "LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	if v, ok := lookup("debug", "DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDEBUG: %w", envPrefix, err)
		}
		cfg.Debug = b
	}
	if v, ok := lookup("shutdown-timeout", "SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSHUTDOWN_TIMEOUT: %w", envPrefix, err)
		}
		cfg.ShutdownTimeout = d
	}
	return nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}
	return nil
}

func printHelp(w io.Writer, fs *pflag.FlagSet) {
	_, _ = fmt.Fprintf(w, `%s - NATS to FIX bridge

Usage: %s [options]

Options:
`, appName, appName)
	_, _ = fmt.Fprint(w, fs.FlagUsages())
	_, _ = fmt.Fprintf(w, `
Examples:
  # Run with a config file
  %[1]s --config=/etc/semstreams-fix/config.yaml

  # Run with debug logging
  %[1]s --log-level=debug --log-format=text

  # Check sessions and dictionaries only
  %[1]s --validate

Version: %[2]s
Build: %[3]s
`, appName, Version, BuildTime)
}
