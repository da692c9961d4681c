// Package health is the Health Classifier (C4, spec.md §4.4): a pure
// function mapping session liveness and heartbeat/terminal evidence onto
// one of a closed set of states. It holds no state of its own and performs
// no I/O — callers gather the Input from C1/C2/C3 and call Classify.
package health

import "time"

// Status is one of the closed set of health states spec.md §4.4 defines.
type Status string

const (
	StatusHidden    Status = "hidden"
	StatusDead      Status = "dead"
	StatusSuspended Status = "suspended"
	StatusStuck     Status = "stuck"
	StatusWarning   Status = "warning"
	StatusStale     Status = "stale"
	StatusActive    Status = "active"
)

// Thresholds are the idle-duration cutoffs classification compares
// against. Configuration, not code (spec.md §4.4).
type Thresholds struct {
	Stale       time.Duration
	Warn        time.Duration
	Stuck       time.Duration
	HiddenAfter time.Duration
}

// Input collects every piece of evidence Classify needs for one agent at
// one instant. Fields are zero-valued when the underlying source has
// nothing to report (e.g. a fresh agent with no heartbeat yet).
type Input struct {
	Now time.Time

	HasLiveSession bool

	// RuntimeState mirrors runtime.json's "state" field as written by
	// agent hooks; "suspended" triggers rule 3 regardless of timing.
	RuntimeState string

	// LastActivity is runtime.json.lastActivity, the most recent
	// hook-reported heartbeat.
	LastActivity time.Time

	// LastStateChange is state.json.updatedAt — used to decide whether a
	// session-less agent still has "recent state" (rule 1 vs 2).
	LastStateChange time.Time

	// PaneChangedAt is the timestamp the rolling pane-hash digest last
	// changed value; a zero value means the pane has never been sampled.
	PaneChangedAt time.Time
}

// Classify implements the seven ordered rules of spec.md §4.4. Inputs
// determine output; Classify performs no I/O and has no side effects.
func Classify(in Input, t Thresholds) Status {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	if !in.HasLiveSession {
		if hasRecentState(in, now, t) {
			return StatusDead
		}
		return StatusHidden
	}

	if in.RuntimeState == "suspended" {
		return StatusSuspended
	}

	paneIdle := idleSince(in.PaneChangedAt, now)
	heartbeatIdle := idleSince(in.LastActivity, now)

	if paneIdle >= t.Stuck && heartbeatIdle >= t.Stuck {
		return StatusStuck
	}
	if paneIdle >= t.Warn {
		return StatusWarning
	}
	if paneIdle >= t.Stale {
		return StatusStale
	}
	return StatusActive
}

// hasRecentState reports whether the last state.json write is within
// HiddenAfter of now. A zero LastStateChange (no state directory evidence
// at all) is never "recent".
func hasRecentState(in Input, now time.Time, t Thresholds) bool {
	if in.LastStateChange.IsZero() {
		return false
	}
	hiddenAfter := t.HiddenAfter
	if hiddenAfter <= 0 {
		hiddenAfter = 24 * time.Hour
	}
	return now.Sub(in.LastStateChange) < hiddenAfter
}

// idleSince returns how long it has been since ts, treating a zero ts
// (evidence never observed) as maximally idle so sessions lacking any
// heartbeat or pane sample degrade toward "stuck" rather than "active".
func idleSince(ts, now time.Time) time.Duration {
	if ts.IsZero() {
		return time.Duration(1<<63 - 1) // effectively infinite
	}
	return now.Sub(ts)
}
