package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dylantcon/dgmt/internal/config"
)

const mkdirTimeout = 30 * time.Second

// bisync refuses to run without prior listings and asks for --resync. This is
// the documented first-run consistency requirement of the external tool.
var stateMissingRe = regexp.MustCompile(`(?i)(cannot find prior .*listings|must run --resync|bisync aborted)`)

// Executor runs the external rclone tool as a supervised subprocess. The
// external tool is not re-entrant safe, so a mutex guarantees at most one
// invocation in flight against the configured paths.
type Executor struct {
	remote      string
	dest        string
	flags       []string
	syncTimeout time.Duration
	bin         string

	mu       sync.Mutex
	firstRun map[string]bool

	lastMu sync.RWMutex
	last   *Attempt
}

func NewExecutor(cfg *config.Config) *Executor {
	firstRun := make(map[string]bool, len(cfg.WatchPaths))
	for _, p := range cfg.WatchPaths {
		firstRun[p] = true
	}
	return &Executor{
		remote:      cfg.RcloneRemote,
		dest:        cfg.RcloneDest,
		flags:       cfg.RcloneFlags,
		syncTimeout: cfg.SyncTimeoutDuration(),
		bin:         "rclone",
		firstRun:    firstRun,
	}
}

// RunSync performs one bidirectional sync of localPath against the remote.
// The first invocation per path after daemon start, or a failure matching the
// bisync missing-state error class, is retried exactly once with --resync.
// A failure of the retry itself is surfaced as a plain failure.
func (e *Executor) RunSync(ctx context.Context, localPath string) *Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()

	first := e.firstRun[localPath]
	e.firstRun[localPath] = false

	attempt, output := e.runBisync(ctx, localPath, false)
	if attempt.Outcome == OutcomeFailure && (first || stateMissingRe.MatchString(output)) {
		slog.Warn("sync needs baseline rebuild, retrying with resync", "path", localPath)
		e.ensureRemote(ctx, localPath)
		attempt, output = e.runBisync(ctx, localPath, true)
	}

	e.record(attempt)

	switch attempt.Outcome {
	case OutcomeSuccess:
		slog.Info("sync completed", "path", localPath, "resync", attempt.Resync, "duration", attempt.Duration())
	case OutcomeTimeout:
		slog.Error("sync timed out, subprocess killed", "path", localPath, "timeout", e.syncTimeout)
	default:
		slog.Error("sync failed", "path", localPath, "exit", attempt.ExitCode, "output", tail(output))
	}

	return attempt
}

// RunPull copies newer remote files down to localPath. Used by the startup
// sequence; it never deletes local files that are absent on the remote.
func (e *Executor) RunPull(ctx context.Context, localPath string, timeout time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pullCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	remotePath := e.remotePath(localPath)
	slog.Info("pulling from remote", "remote", remotePath, "path", localPath)

	output, code, err := runCommand(pullCtx, e.bin, "copy", remotePath, localPath, "--update", "--verbose")
	if err != nil {
		if errors.Is(pullCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("pull timed out after %s: %w", timeout, pullCtx.Err())
		}
		return fmt.Errorf("pull '%s': %w", remotePath, err)
	}
	if code != 0 {
		return fmt.Errorf("pull '%s' exited %d: %s", remotePath, code, tail(output))
	}

	slog.Info("pull completed", "remote", remotePath, "path", localPath)
	return nil
}

// LastAttempt returns a snapshot of the most recent sync attempt for status
// reporting. Returns nil if no sync has run yet.
func (e *Executor) LastAttempt() *Attempt {
	e.lastMu.RLock()
	defer e.lastMu.RUnlock()
	if e.last == nil {
		return nil
	}
	snapshot := *e.last
	return &snapshot
}

func (e *Executor) runBisync(ctx context.Context, localPath string, resync bool) (*Attempt, string) {
	args := []string{"bisync", localPath, e.remotePath(localPath)}
	args = append(args, e.flags...)
	if resync {
		args = append(args, "--resync")
	}

	syncCtx, cancel := withOptionalTimeout(ctx, e.syncTimeout)
	defer cancel()

	slog.Info("running sync", "cmd", e.bin+" "+strings.Join(args, " "))

	attempt := &Attempt{
		Path:      localPath,
		StartedAt: time.Now(),
		Resync:    resync,
	}

	output, code, err := runCommand(syncCtx, e.bin, args...)
	attempt.EndedAt = time.Now()
	attempt.ExitCode = code

	switch {
	case errors.Is(syncCtx.Err(), context.DeadlineExceeded):
		attempt.Outcome = OutcomeTimeout
	case err != nil || code != 0:
		attempt.Outcome = OutcomeFailure
		if err != nil {
			output = err.Error()
		}
	default:
		attempt.Outcome = OutcomeSuccess
	}

	return attempt, output
}

// ensureRemote creates the remote directory before a resync so bisync does
// not abort on a missing destination. Best effort.
func (e *Executor) ensureRemote(ctx context.Context, localPath string) {
	mkdirCtx, cancel := context.WithTimeout(ctx, mkdirTimeout)
	defer cancel()

	remotePath := e.remotePath(localPath)
	if _, code, err := runCommand(mkdirCtx, e.bin, "mkdir", remotePath); err != nil || code != 0 {
		slog.Warn("could not ensure remote directory", "remote", remotePath, "exit", code, "error", err)
	}
}

func (e *Executor) remotePath(localPath string) string {
	return fmt.Sprintf("%s:%s/%s", e.remote, e.dest, filepath.Base(localPath))
}

func (e *Executor) record(attempt *Attempt) {
	e.lastMu.Lock()
	defer e.lastMu.Unlock()
	e.last = attempt
}

// withOptionalTimeout bounds ctx by d; a zero or negative d leaves ctx unbounded.
func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// runCommand executes a subprocess and returns its combined output and exit
// code. A non-nil error means the process could not be run or was killed
// before producing an exit code. On cancellation the whole process group is
// killed, and WaitDelay bounds how long inherited output pipes can keep the
// call blocked after the kill.
func runCommand(ctx context.Context, name string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.Cancel = func() error { return killTree(cmd) }
	cmd.WaitDelay = 5 * time.Second
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			return string(out), exitErr.ExitCode(), nil
		}
		return string(out), -1, err
	}
	return string(out), 0, nil
}

// tail returns the last few lines of subprocess output for log context.
func tail(output string) string {
	output = strings.TrimSpace(output)
	lines := strings.Split(output, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, " | ")
}
