// Package tracker defines the issue-tracker collaborator interface
// (spec.md §6: "opaque, injected" collaborators). The engine receives
// opaque issue identifiers and never embeds a concrete tracker adapter;
// this package ships only the interface and a local no-op implementation
// so the engine runs standalone.
package tracker

import (
	"context"
	"log/slog"
)

// Tracker sets upstream issue state as a best-effort side effect of
// pipeline transitions (spec.md §4.6: "update upstream issue tracker
// state ... (best-effort, collaborator-mediated)").
type Tracker interface {
	SetState(ctx context.Context, issueID, state string) error
	Close(ctx context.Context, issueID string) error
}

// Noop is the default Tracker: it logs the intended call and never fails,
// so the engine functions fully without a configured issue tracker.
type Noop struct {
	Log *slog.Logger
}

func (n Noop) logger() *slog.Logger {
	if n.Log == nil {
		return slog.Default()
	}
	return n.Log
}

func (n Noop) SetState(_ context.Context, issueID, state string) error {
	n.logger().Info("tracker set-state (noop)", "issueId", issueID, "state", state)
	return nil
}

func (n Noop) Close(_ context.Context, issueID string) error {
	n.logger().Info("tracker close (noop)", "issueId", issueID)
	return nil
}
