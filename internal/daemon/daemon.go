// Package daemon wires the dgmt components together and owns the process
// lifecycle: startup sequencing, steady-state watching and shutdown.
package daemon

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dylantcon/dgmt/internal/config"
	"github.com/dylantcon/dgmt/internal/health"
	"github.com/dylantcon/dgmt/internal/sync"
)

// shutdownGrace bounds how long an in-flight rclone invocation may keep
// running after a termination signal before it is killed.
const shutdownGrace = 10 * time.Second

// Status is a read-only snapshot of the daemon's state for reporting.
type Status struct {
	Startup  sync.SequenceState
	Health   health.State
	LastSync *sync.Attempt
}

type Daemon struct {
	cfg       *config.Config
	executor  *sync.Executor
	watcher   *sync.Watcher
	debouncer *sync.Debouncer
	sequencer *sync.Sequencer
	monitor   *health.Monitor

	startup sync.SequenceState
}

func New(cfg *config.Config) *Daemon {
	executor := sync.NewExecutor(cfg)
	watcher := sync.NewWatcher(cfg.WatchPaths)

	syncAll := func(ctx context.Context) {
		for _, path := range cfg.WatchPaths {
			if ctx.Err() != nil {
				return
			}
			executor.RunSync(ctx, path)
		}
	}

	return &Daemon{
		cfg:       cfg,
		executor:  executor,
		watcher:   watcher,
		debouncer: sync.NewDebouncer(cfg.DebounceDuration(), cfg.MaxWaitDuration(), watcher.Signals(), syncAll),
		sequencer: sync.NewSequencer(cfg, executor),
		monitor:   health.NewMonitor(cfg, health.NewSyncthingProcess(cfg.SyncthingExe)),
	}
}

// Start runs the daemon until ctx is cancelled: startup pull-then-sync first,
// then the change watcher, debouncer and health monitor concurrently.
func (d *Daemon) Start(ctx context.Context) error {
	slog.Info("dgmt daemon start",
		"paths", d.cfg.WatchPaths,
		"remote", d.cfg.RcloneRemote+":"+d.cfg.RcloneDest,
	)

	// a termination signal during startup is a clean exit, not an error
	d.startup = d.sequencer.Run(ctx)
	if ctx.Err() != nil {
		slog.Info("dgmt daemon stopped")
		return nil
	}

	if err := d.watcher.Start(ctx); err != nil {
		return err
	}

	// syncCtx outlives ctx by the shutdown grace so an in-flight rclone run
	// can finish instead of being killed the moment the signal arrives.
	syncCtx, cancelSync := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSync()

	var eg errgroup.Group
	eg.Go(func() error {
		d.debouncer.Run(syncCtx)
		return nil
	})
	eg.Go(func() error {
		d.monitor.Run(ctx)
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		slog.Info("received termination signal, shutting down")
		// closing the signal stream lets the debouncer drain and wait for
		// any in-flight sync
		d.watcher.Stop()
		// hard deadline for whatever sync is still in flight
		time.AfterFunc(shutdownGrace, cancelSync)
		return nil
	})

	err := eg.Wait()
	slog.Info("dgmt daemon stopped")
	return err
}

// Status returns a snapshot of daemon state. Owned state stays with its
// component; this only copies.
func (d *Daemon) Status() Status {
	return Status{
		Startup:  d.startup,
		Health:   d.monitor.Snapshot(),
		LastSync: d.executor.LastAttempt(),
	}
}
