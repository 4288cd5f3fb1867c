// Package sync orchestrates when the external rclone sync tool runs: it
// watches directories for changes, debounces bursts into single triggers and
// supervises the rclone subprocess. It does not implement any transport.
package sync

import "time"

// ActivitySignal means "something changed under a watched path at time T".
// Signals within the same quiet period are idempotent and get coalesced by
// the Debouncer. Path is carried for logging only.
type ActivitySignal struct {
	Time time.Time
	Path string
}

// Outcome is the terminal result of one rclone invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
)

// Attempt records one invocation of the external sync tool.
type Attempt struct {
	Path      string
	StartedAt time.Time
	EndedAt   time.Time
	Outcome   Outcome
	Resync    bool
	ExitCode  int
}

func (a *Attempt) Duration() time.Duration {
	return a.EndedAt.Sub(a.StartedAt)
}
