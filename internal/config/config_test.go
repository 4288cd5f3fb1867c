package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := Default()
	cfg.WatchPaths = []string{t.TempDir()}
	cfg.LogFile = filepath.Join(t.TempDir(), "dgmt.log")
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.PullOnStartup)
	assert.True(t, cfg.RestartSyncthingOnFailure)
	assert.Equal(t, 120, cfg.StartupPullTimeout)
	assert.Equal(t, 600, cfg.SyncTimeout)
	assert.Equal(t, 30, cfg.DebounceSeconds)
	assert.Equal(t, 300, cfg.MaxWaitSeconds)
	assert.Equal(t, 60, cfg.HealthCheckInterval)
	assert.Equal(t, 1, cfg.HealthFailureThreshold)
	assert.Equal(t, DefaultSyncthingAPI, cfg.SyncthingAPI)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.NotEmpty(t, cfg.RcloneRemote)
	assert.NotEmpty(t, cfg.RcloneDest)
}

func TestLoad_LayersOverDefaults(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.json")
	data := `{"debounce_seconds": 5, "pull_on_startup": false, "rclone_remote": "gdrive"}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// overridden keys
	assert.Equal(t, 5, cfg.DebounceSeconds)
	assert.False(t, cfg.PullOnStartup)
	assert.Equal(t, "gdrive", cfg.RcloneRemote)

	// absent keys keep their defaults
	assert.Equal(t, 300, cfg.MaxWaitSeconds)
	assert.True(t, cfg.RestartSyncthingOnFailure)
	assert.Equal(t, path, cfg.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "sub", "config.json")

	cfg := Default()
	cfg.RcloneRemote = "drive"
	cfg.DebounceSeconds = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "drive", loaded.RcloneRemote)
	assert.Equal(t, 7, loaded.DebounceSeconds)
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := validConfig(t)
		require.NoError(t, cfg.Validate())
		assert.True(t, filepath.IsAbs(cfg.WatchPaths[0]))
	})

	t.Run("no watch paths", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.WatchPaths = nil
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing watch path", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.WatchPaths = []string{filepath.Join(t.TempDir(), "does-not-exist")}
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty remote", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.RcloneRemote = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative duration", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.DebounceSeconds = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero failure threshold", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.HealthFailureThreshold = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.LogLevel = "CHATTY"
		assert.Error(t, cfg.Validate())
	})
}

func TestDurations(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "30s", cfg.DebounceDuration().String())
	assert.Equal(t, "5m0s", cfg.MaxWaitDuration().String())
	assert.Equal(t, "1m0s", cfg.HealthCheckDuration().String())
	assert.Equal(t, "2m0s", cfg.StartupPullDuration().String())
	assert.Equal(t, "10m0s", cfg.SyncTimeoutDuration().String())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"WARNING", slog.LevelWarn, false},
		{"warn", slog.LevelWarn, false},
		{"ERROR", slog.LevelError, false},
		{"", slog.LevelInfo, false},
		{"CHATTY", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLogLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}
}
