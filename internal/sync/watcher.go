package sync

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	stdsync "sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	eventBufferSize     = 64
	signalBufferSize    = 64
	initialWatchBackoff = time.Second
	maxWatchBackoff     = 30 * time.Second
)

// ignoredDirs are transient or tool-owned directories whose churn must never
// trigger a sync.
var ignoredDirs = map[string]struct{}{
	".git":        {},
	".obsidian":   {},
	".sync":       {},
	".stfolder":   {},
	"__pycache__": {},
}

// Watcher observes a set of directories recursively and emits an
// ActivitySignal per relevant filesystem event. It never decides whether to
// sync; that is the Debouncer's job. A failed watch registration is retried
// with capped backoff instead of terminating the daemon.
type Watcher struct {
	paths   []string
	signals chan ActivitySignal
	done    chan struct{}
	wg      stdsync.WaitGroup
}

func NewWatcher(paths []string) *Watcher {
	return &Watcher{
		paths:   paths,
		signals: make(chan ActivitySignal, signalBufferSize),
		done:    make(chan struct{}),
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("change watcher start", "paths", w.paths)

	for _, path := range w.paths {
		w.wg.Add(1)
		go w.watchPath(ctx, path)
	}
	return nil
}

func (w *Watcher) Stop() {
	slog.Info("change watcher stopping")
	close(w.done)
	w.wg.Wait()
	close(w.signals)
	slog.Info("change watcher stopped")
}

// Signals returns the stream of activity signals. Closed on Stop.
func (w *Watcher) Signals() <-chan ActivitySignal {
	return w.signals
}

// watchPath registers an OS watch for one path and forwards its events until
// shutdown. If registration fails (path temporarily unavailable, inotify
// limits) it logs and retries with exponential backoff.
func (w *Watcher) watchPath(ctx context.Context, path string) {
	defer w.wg.Done()

	backoff := initialWatchBackoff
	for {
		events := make(chan notify.EventInfo, eventBufferSize)
		if err := notify.Watch(filepath.Join(path, "..."), events, notify.All); err != nil {
			slog.Warn("watch registration failed, retrying", "path", path, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxWatchBackoff)
			continue
		}

		slog.Info("watching", "path", path)
		backoff = initialWatchBackoff
		w.forward(ctx, events)
		notify.Stop(events)
		return
	}
}

func (w *Watcher) forward(ctx context.Context, events <-chan notify.EventInfo) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if shouldIgnore(event.Path()) {
				continue
			}
			w.emit(event.Path())
		}
	}
}

func (w *Watcher) emit(path string) {
	signal := ActivitySignal{Time: time.Now(), Path: path}
	select {
	case w.signals <- signal:
		slog.Debug("change detected", "path", path)
	default:
		// Coalescing makes dropped signals harmless as long as one gets through.
		slog.Debug("activity channel full, signal dropped", "path", path)
	}
}

// shouldIgnore filters events under dot-prefixed or tool-owned directories.
func shouldIgnore(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if _, ok := ignoredDirs[part]; ok {
			return true
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
