package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/dylantcon/dgmt/internal/config"
)

// SequenceState is the terminal state of the startup sequence.
type SequenceState string

const (
	// SequenceCompleted means pull and initial sync both ran.
	SequenceCompleted SequenceState = "completed"
	// SequenceSkipped means the startup pull is disabled; only the initial sync ran.
	SequenceSkipped SequenceState = "skipped"
	// SequenceDegraded means at least one pull failed or timed out; the
	// initial sync was still attempted.
	SequenceDegraded SequenceState = "degraded"
)

// settleDelay gives the filesystem a moment to quiesce between the pull and
// the initial bisync so pulled writes don't immediately re-trigger activity.
const settleDelay = 2 * time.Second

type syncRunner interface {
	RunPull(ctx context.Context, localPath string, timeout time.Duration) error
	RunSync(ctx context.Context, localPath string) *Attempt
}

// Sequencer performs the one-time pull-then-sync sequence before steady-state
// watching begins. A failed pull is non-fatal: local changes must still be
// protected by ongoing watching, so the sequence degrades instead of aborting.
type Sequencer struct {
	paths       []string
	pullEnabled bool
	pullTimeout time.Duration
	runner      syncRunner
	settle      time.Duration
}

func NewSequencer(cfg *config.Config, runner syncRunner) *Sequencer {
	return &Sequencer{
		paths:       cfg.WatchPaths,
		pullEnabled: cfg.PullOnStartup,
		pullTimeout: cfg.StartupPullDuration(),
		runner:      runner,
		settle:      settleDelay,
	}
}

func (s *Sequencer) Run(ctx context.Context) SequenceState {
	state := SequenceCompleted

	if !s.pullEnabled {
		slog.Info("startup pull disabled, skipping")
		state = SequenceSkipped
	} else {
		slog.Info("pulling latest from remote")
		for _, path := range s.paths {
			if ctx.Err() != nil {
				return state
			}
			if err := s.runner.RunPull(ctx, path, s.pullTimeout); err != nil {
				slog.Error("startup pull failed, continuing to watch", "path", path, "error", err)
				state = SequenceDegraded
			}
		}

		// let pulled writes settle before the baseline sync
		select {
		case <-ctx.Done():
			return state
		case <-time.After(s.settle):
		}
	}

	slog.Info("running initial sync")
	for _, path := range s.paths {
		if ctx.Err() != nil {
			return state
		}
		s.runner.RunSync(ctx, path)
	}

	slog.Info("startup sequence done", "state", state)
	return state
}
