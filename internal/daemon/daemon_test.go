package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dylantcon/dgmt/internal/config"
	"github.com/dylantcon/dgmt/internal/health"
	"github.com/dylantcon/dgmt/internal/sync"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.WatchPaths = []string{t.TempDir()}
	cfg.PullOnStartup = false
	// keep the test self-contained: no syncthing process management
	cfg.RestartSyncthingOnFailure = false
	cfg.SyncthingAPI = "http://127.0.0.1:1"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewWiresComponents(t *testing.T) {
	d := New(testConfig(t))

	status := d.Status()
	assert.Equal(t, health.StatusUnknown, status.Health.Status)
	assert.Nil(t, status.LastSync)
	assert.Empty(t, status.Startup)
}

func TestStartAndShutdown(t *testing.T) {
	d := New(testConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Start(ctx)
	}()

	// let the startup sequence and watcher spin up
	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
	}

	// startup pull was disabled, the sequence reports skipped
	assert.Equal(t, sync.SequenceSkipped, d.Status().Startup)
}
