package health

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// stopSettleDelay gives the old process tree time to release ports and locks
// before a replacement is started.
const stopSettleDelay = 2 * time.Second

// SyncthingProcess stops and starts the peer-sync process. dgmt does not own
// the process's lifecycle beyond this: Syncthing is independently startable
// and usually managed by the OS, so everything here is best-effort.
type SyncthingProcess struct {
	exe    string
	settle time.Duration
	run    func(exe string, args ...string) error
}

func NewSyncthingProcess(exe string) *SyncthingProcess {
	if exe == "" {
		exe = "syncthing"
	}
	return &SyncthingProcess{
		exe:    exe,
		settle: stopSettleDelay,
		run:    spawnDetached,
	}
}

// Start launches `syncthing serve --no-browser` detached from the daemon.
func (p *SyncthingProcess) Start() error {
	slog.Info("starting syncthing", "exe", p.exe)
	if err := p.run(p.exe, "serve", "--no-browser"); err != nil {
		return fmt.Errorf("start syncthing: %w", err)
	}
	return nil
}

// Stop terminates every running syncthing process, escalating from SIGTERM
// to SIGKILL per process.
func (p *SyncthingProcess) Stop() error {
	procs, err := process.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	stopped := 0
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil {
			continue
		}
		if !isSyncthingName(name) {
			continue
		}
		slog.Info("stopping syncthing", "pid", proc.Pid)
		if err := proc.Terminate(); err != nil {
			if err := proc.Kill(); err != nil {
				slog.Warn("could not kill syncthing", "pid", proc.Pid, "error", err)
				continue
			}
		}
		stopped++
	}

	if stopped == 0 {
		slog.Debug("no running syncthing process found")
	}
	return nil
}

// Restart stops the process, waits for it to settle, then starts it again.
func (p *SyncthingProcess) Restart() error {
	if err := p.Stop(); err != nil {
		slog.Warn("syncthing stop failed, starting anyway", "error", err)
	}
	time.Sleep(p.settle)
	return p.Start()
}

func isSyncthingName(name string) bool {
	name = strings.ToLower(name)
	return name == "syncthing" || name == "syncthing.exe"
}
