// Package config defines the dgmt daemon configuration, its defaults,
// JSON persistence and startup validation.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dylantcon/dgmt/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigDir  = filepath.Join(home, ".dgmt")
	DefaultConfigPath = filepath.Join(DefaultConfigDir, "config.json")
	DefaultLogFile    = filepath.Join(DefaultConfigDir, "dgmt.log")
)

const (
	DefaultSyncthingAPI = "http://localhost:8384"

	defaultStartupPullTimeout  = 120
	defaultSyncTimeout         = 600
	defaultDebounceSeconds     = 30
	defaultMaxWaitSeconds      = 300
	defaultHealthCheckInterval = 60
	defaultFailureThreshold    = 1
)

// Config holds all daemon settings. It is immutable after Load/Validate and
// shared read-only across components. All *_seconds values are whole seconds
// to keep the JSON config hand-editable.
type Config struct {
	WatchPaths   []string `json:"watch_paths" mapstructure:"watch_paths"`
	RcloneRemote string   `json:"rclone_remote" mapstructure:"rclone_remote"`
	RcloneDest   string   `json:"rclone_dest" mapstructure:"rclone_dest"`
	RcloneFlags  []string `json:"rclone_flags" mapstructure:"rclone_flags"`

	PullOnStartup      bool `json:"pull_on_startup" mapstructure:"pull_on_startup"`
	StartupPullTimeout int  `json:"startup_pull_timeout" mapstructure:"startup_pull_timeout"`
	SyncTimeout        int  `json:"sync_timeout" mapstructure:"sync_timeout"`

	DebounceSeconds int `json:"debounce_seconds" mapstructure:"debounce_seconds"`
	MaxWaitSeconds  int `json:"max_wait_seconds" mapstructure:"max_wait_seconds"`

	HealthCheckInterval       int    `json:"health_check_interval" mapstructure:"health_check_interval"`
	HealthFailureThreshold    int    `json:"health_failure_threshold" mapstructure:"health_failure_threshold"`
	RestartSyncthingOnFailure bool   `json:"restart_syncthing_on_failure" mapstructure:"restart_syncthing_on_failure"`
	SyncthingAPI              string `json:"syncthing_api" mapstructure:"syncthing_api"`
	SyncthingAPIKey           string `json:"syncthing_api_key,omitempty" mapstructure:"syncthing_api_key"`
	SyncthingExe              string `json:"syncthing_exe,omitempty" mapstructure:"syncthing_exe"`

	LogFile  string `json:"log_file" mapstructure:"log_file"`
	LogLevel string `json:"log_level" mapstructure:"log_level"`

	// Path the config was loaded from, not persisted.
	Path string `json:"-" mapstructure:"-"`
}

// Default returns a fresh config with all documented defaults applied.
func Default() *Config {
	return &Config{
		WatchPaths:                []string{filepath.Join(home, "Obsidian")},
		RcloneRemote:              "dgmt",
		RcloneDest:                "Obsidian-Backup",
		RcloneFlags:               []string{"--verbose"},
		PullOnStartup:             true,
		StartupPullTimeout:        defaultStartupPullTimeout,
		SyncTimeout:               defaultSyncTimeout,
		DebounceSeconds:           defaultDebounceSeconds,
		MaxWaitSeconds:            defaultMaxWaitSeconds,
		HealthCheckInterval:       defaultHealthCheckInterval,
		HealthFailureThreshold:    defaultFailureThreshold,
		RestartSyncthingOnFailure: true,
		SyncthingAPI:              DefaultSyncthingAPI,
		LogFile:                   DefaultLogFile,
		LogLevel:                  "INFO",
	}
}

// Load reads a JSON config file, layering it over the defaults so absent
// keys keep their documented values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config parse '%s': %w", path, err)
	}

	cfg.Path = path
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Validate resolves all paths and checks invariants. A validation error is
// fatal at startup, nothing else in the daemon treats config as suspect.
func (c *Config) Validate() error {
	if len(c.WatchPaths) == 0 {
		return fmt.Errorf("watch_paths is empty")
	}
	for i, p := range c.WatchPaths {
		resolved, err := utils.ResolvePath(p)
		if err != nil {
			return fmt.Errorf("watch path '%s': %w", p, err)
		}
		if !utils.DirExists(resolved) {
			return fmt.Errorf("watch path '%s' does not exist", resolved)
		}
		c.WatchPaths[i] = resolved
	}

	if c.RcloneRemote == "" {
		return fmt.Errorf("rclone_remote is empty")
	}
	if c.RcloneDest == "" {
		return fmt.Errorf("rclone_dest is empty")
	}

	for name, v := range map[string]int{
		"startup_pull_timeout":  c.StartupPullTimeout,
		"sync_timeout":          c.SyncTimeout,
		"debounce_seconds":      c.DebounceSeconds,
		"max_wait_seconds":      c.MaxWaitSeconds,
		"health_check_interval": c.HealthCheckInterval,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, v)
		}
	}
	if c.HealthFailureThreshold < 1 {
		return fmt.Errorf("health_failure_threshold must be >= 1, got %d", c.HealthFailureThreshold)
	}

	if c.LogFile != "" {
		resolved, err := utils.ResolvePath(c.LogFile)
		if err != nil {
			return fmt.Errorf("log_file '%s': %w", c.LogFile, err)
		}
		c.LogFile = resolved
	}
	if c.SyncthingExe != "" {
		resolved, err := utils.ResolvePath(c.SyncthingExe)
		if err != nil {
			return fmt.Errorf("syncthing_exe '%s': %w", c.SyncthingExe, err)
		}
		c.SyncthingExe = resolved
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

func (c *Config) StartupPullDuration() time.Duration {
	return time.Duration(c.StartupPullTimeout) * time.Second
}

func (c *Config) SyncTimeoutDuration() time.Duration {
	return time.Duration(c.SyncTimeout) * time.Second
}

func (c *Config) DebounceDuration() time.Duration {
	return time.Duration(c.DebounceSeconds) * time.Second
}

func (c *Config) MaxWaitDuration() time.Duration {
	return time.Duration(c.MaxWaitSeconds) * time.Second
}

func (c *Config) HealthCheckDuration() time.Duration {
	return time.Duration(c.HealthCheckInterval) * time.Second
}

// SlogLevel returns the configured log level as a slog.Level.
// Call Validate first; an unknown level falls back to INFO here.
func (c *Config) SlogLevel() slog.Level {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLogLevel maps the config enum (DEBUG/INFO/WARNING/ERROR) to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARNING", "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level '%s'", s)
	}
}
