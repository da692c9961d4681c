// Package vcs defines the remote-branch-pusher collaborator interface
// (spec.md §6). Git/worktree creation is explicitly out of scope (§1);
// this package only pushes an already-existing local branch, and is
// invoked best-effort from the Pipeline Controller (§4.6 step 3).
package vcs

import (
	"context"
	"log/slog"
)

// Pusher pushes a workspace's feature branch to its remote.
type Pusher interface {
	Push(ctx context.Context, workspace, branch string) error
}

// Noop logs the intended push and never fails.
type Noop struct {
	Log *slog.Logger
}

func (n Noop) logger() *slog.Logger {
	if n.Log == nil {
		return slog.Default()
	}
	return n.Log
}

func (n Noop) Push(_ context.Context, workspace, branch string) error {
	n.logger().Info("vcs push (noop)", "workspace", workspace, "branch", branch)
	return nil
}
