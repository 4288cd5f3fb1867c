// Package health supervises the companion Syncthing process: it probes the
// REST health endpoint on a fixed interval and restarts the process when it
// stops responding.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/imroc/req/v3"
	"github.com/jonboulle/clockwork"

	"github.com/dylantcon/dgmt/internal/config"
)

const probeTimeout = 5 * time.Second

// Status is the current belief about the peer-sync service.
type Status string

const (
	StatusUnknown      Status = "unknown"
	StatusHealthy      Status = "healthy"
	StatusUnresponsive Status = "unresponsive"
)

// State is mutated only by the Monitor; other components read snapshots.
type State struct {
	Status           Status
	LastChecked      time.Time
	ConsecutiveFails int
}

// ProcessController starts and restarts the supervised peer-sync process.
type ProcessController interface {
	Start() error
	Restart() error
}

// Monitor probes the Syncthing REST API and triggers a restart once the
// consecutive failure count reaches the configured threshold. Restart actions
// are best-effort: a failed restart is logged and probing continues.
type Monitor struct {
	apiURL           string
	interval         time.Duration
	threshold        int
	restartOnFailure bool
	client           *req.Client
	proc             ProcessController
	clock            clockwork.Clock

	mu    sync.RWMutex
	state State
}

func NewMonitor(cfg *config.Config, proc ProcessController) *Monitor {
	client := req.C().SetTimeout(probeTimeout)
	if cfg.SyncthingAPIKey != "" {
		client.SetCommonHeader("X-API-Key", cfg.SyncthingAPIKey)
	}

	return &Monitor{
		apiURL:           cfg.SyncthingAPI,
		interval:         cfg.HealthCheckDuration(),
		threshold:        cfg.HealthFailureThreshold,
		restartOnFailure: cfg.RestartSyncthingOnFailure,
		client:           client,
		proc:             proc,
		clock:            clockwork.NewRealClock(),
		state:            State{Status: StatusUnknown},
	}
}

// Run probes on the configured interval until ctx is cancelled. Probing is
// independent of syncing; an in-flight multi-second sync never delays it.
func (m *Monitor) Run(ctx context.Context) {
	slog.Info("health monitor start", "api", m.apiURL, "interval", m.interval)

	// Make sure Syncthing is up before the first interval elapses.
	if m.restartOnFailure && !m.probe(ctx) {
		slog.Info("syncthing not running, starting it")
		if err := m.proc.Start(); err != nil {
			slog.Error("failed to start syncthing", "error", err)
		}
	}

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("health monitor stopped")
			return
		case <-ticker.Chan():
			m.check(ctx)
		}
	}
}

// Snapshot returns a read-only copy of the current health state.
func (m *Monitor) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Monitor) check(ctx context.Context) {
	healthy := m.probe(ctx)

	m.mu.Lock()
	m.state.LastChecked = m.clock.Now()

	if healthy {
		recovered := m.state.Status == StatusUnresponsive
		m.state.Status = StatusHealthy
		m.state.ConsecutiveFails = 0
		m.mu.Unlock()

		if recovered {
			slog.Info("syncthing recovered")
		}
		return
	}

	m.state.ConsecutiveFails++
	fails := m.state.ConsecutiveFails
	crossed := fails == m.threshold
	if fails >= m.threshold {
		m.state.Status = StatusUnresponsive
	}
	m.mu.Unlock()

	slog.Warn("syncthing not responding", "consecutive_failures", fails, "threshold", m.threshold)

	if !crossed {
		return
	}
	if !m.restartOnFailure {
		slog.Warn("syncthing unresponsive, restart disabled by config")
		return
	}

	slog.Warn("restarting syncthing")
	if err := m.proc.Restart(); err != nil {
		slog.Error("syncthing restart failed", "error", err)
		return
	}
	slog.Info("syncthing restarted")
}

func (m *Monitor) probe(ctx context.Context) bool {
	resp, err := m.client.R().
		SetContext(ctx).
		Get(m.apiURL + "/rest/system/ping")
	if err != nil {
		slog.Debug("health probe error", "error", err)
		return false
	}
	return resp.IsSuccessState()
}
