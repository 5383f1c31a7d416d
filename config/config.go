// Package config provides the configuration of link-archiver, read from
// environment variables and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Options holds the configuration values for the application.
type Options struct {
	// Root is the directory tree scanned for YAML files.
	Root string

	// LogPath is the archive log file.
	LogPath string

	// DatabasePath enables the sqlite submission history when non-empty.
	DatabasePath string

	// LogLevel is the zap level for diagnostics.
	LogLevel string

	// MaxAttempts bounds the attempts per archive service.
	MaxAttempts int

	// HTTPTimeout applies to every outbound request.
	HTTPTimeout time.Duration

	// LinkPause is the pause after each processed link.
	LinkPause time.Duration

	// ServeAddr is the listen address of the status API.
	ServeAddr string
}

// Default returns the options used when nothing is configured.
func Default() *Options {
	return &Options{
		Root:        ".",
		LogPath:     "logs/archive_log.json",
		LogLevel:    "info",
		MaxAttempts: 3,
		HTTPTimeout: 30 * time.Second,
		LinkPause:   time.Second,
		ServeAddr:   ":3000",
	}
}

// Load reads envFile if it exists and then applies environment overrides to
// the defaults.
func Load(envFile string) (*Options, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv applies the variables visible through getenv to the defaults.
func FromEnv(getenv func(string) string) (*Options, error) {
	options := Default()

	if root := getenv("ARCHIVE_ROOT"); root != "" {
		options.Root = root
	}
	if logPath := getenv("ARCHIVE_LOG_PATH"); logPath != "" {
		options.LogPath = logPath
	}
	options.DatabasePath = getenv("ARCHIVE_DB_PATH")
	if level := getenv("ARCHIVE_LOG_LEVEL"); level != "" {
		options.LogLevel = level
	}
	if addr := getenv("ARCHIVE_SERVE_ADDR"); addr != "" {
		options.ServeAddr = addr
	}

	if attempts := getenv("ARCHIVE_MAX_ATTEMPTS"); attempts != "" {
		n, err := strconv.Atoi(attempts)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("ARCHIVE_MAX_ATTEMPTS must be a positive integer, got %q", attempts)
		}
		options.MaxAttempts = n
	}

	var err error
	if options.HTTPTimeout, err = duration(getenv, "ARCHIVE_HTTP_TIMEOUT", options.HTTPTimeout); err != nil {
		return nil, err
	}
	if options.LinkPause, err = duration(getenv, "ARCHIVE_LINK_PAUSE", options.LinkPause); err != nil {
		return nil, err
	}

	return options, nil
}

func duration(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", key, raw)
	}
	return d, nil
}
