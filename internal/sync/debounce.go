package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// TriggerFunc performs one full sync pass. It blocks until the sync finishes
// and must honor ctx cancellation.
type TriggerFunc func(ctx context.Context)

// Debouncer converts the noisy activity stream into rate-limited sync
// triggers. A quiet-period timer restarts on every signal; an independent
// max-wait deadline anchored at the first signal of a burst forces a trigger
// under continuous activity. All timer decisions happen in a single select
// loop so "timer fired" and "new signal arrived" can never race.
//
// At most one sync runs at a time. Signals arriving while one is in flight
// coalesce into exactly one follow-up sync after it completes.
type Debouncer struct {
	quiet   time.Duration
	maxWait time.Duration
	signals <-chan ActivitySignal
	trigger TriggerFunc
	clock   clockwork.Clock
}

func NewDebouncer(quiet, maxWait time.Duration, signals <-chan ActivitySignal, trigger TriggerFunc) *Debouncer {
	return &Debouncer{
		quiet:   quiet,
		maxWait: maxWait,
		signals: signals,
		trigger: trigger,
		clock:   clockwork.NewRealClock(),
	}
}

// Run consumes activity signals until ctx is cancelled or the signal channel
// closes. An in-flight sync is always waited for before returning.
func (d *Debouncer) Run(ctx context.Context) {
	var (
		quietTimer clockwork.Timer
		quietC     <-chan time.Time
		maxTimer   clockwork.Timer
		maxC       <-chan time.Time
		syncDone   chan struct{}
		pending    bool
	)

	stopTimers := func() {
		if quietTimer != nil {
			quietTimer.Stop()
			quietTimer, quietC = nil, nil
		}
		if maxTimer != nil {
			maxTimer.Stop()
			maxTimer, maxC = nil, nil
		}
	}

	startSync := func() {
		stopTimers()
		done := make(chan struct{})
		syncDone = done
		go func() {
			defer close(done)
			d.trigger(ctx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			stopTimers()
			if syncDone != nil {
				<-syncDone
			}
			return

		case signal, ok := <-d.signals:
			if !ok {
				stopTimers()
				if syncDone != nil {
					<-syncDone
				}
				return
			}
			if syncDone != nil {
				// Coalesce: one follow-up sync once the current one completes.
				pending = true
				continue
			}
			if quietTimer == nil {
				slog.Debug("burst started", "path", signal.Path)
			} else {
				quietTimer.Stop()
			}
			quietTimer = d.clock.NewTimer(d.quiet)
			quietC = quietTimer.Chan()
			if maxTimer == nil {
				maxTimer = d.clock.NewTimer(d.maxWait)
				maxC = maxTimer.Chan()
			}

		case <-quietC:
			slog.Info("quiet period reached, triggering sync")
			startSync()

		case <-maxC:
			slog.Info("max wait exceeded, forcing sync")
			startSync()

		case <-syncDone:
			syncDone = nil
			if pending {
				pending = false
				slog.Info("changes arrived during sync, running follow-up")
				startSync()
			}
		}
	}
}
