// Package worker is the Worker Agent Supervisor (C7, spec.md §4.7):
// spawns, kills, pokes, suspends, resumes, and hands off per-issue
// worker agents, each bound to a workspace and backed by the Agent State
// Store (C2) and Session Driver (C1).
//
// Grounded on the other_examples sidecar worktree-agent.go's StartAgent
// reconnect-if-exists idempotency and the teacher's pkg/queue/worker.go
// per-session lifecycle shape.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eltmon/panopticon/pkg/events"
	"github.com/eltmon/panopticon/pkg/lock"
	"github.com/eltmon/panopticon/pkg/perr"
	"github.com/eltmon/panopticon/pkg/store"
	"github.com/eltmon/panopticon/pkg/tmux"
)

const defaultPokeMessage = "Please check your task notes and continue."

// Supervisor owns worker agent lifecycle operations.
type Supervisor struct {
	Store  *store.Store
	Tmux   *tmux.Driver
	Lock   *lock.Lock
	Log    *slog.Logger
	Events *events.Publisher // optional; nil disables dashboard event emission
}

// New constructs a Supervisor.
func New(s *store.Store, tmuxDriver *tmux.Driver, gmLock *lock.Lock, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{Store: s, Tmux: tmuxDriver, Lock: gmLock, Log: logger}
}

// WithEvents attaches a dashboard event publisher, returning s for chaining.
func (s *Supervisor) WithEvents(pub *events.Publisher) *Supervisor {
	s.Events = pub
	return s
}

// AgentID derives the canonical worker identity for an issue (spec.md §3).
func AgentID(issueID string) string { return "agent-" + strings.ToLower(issueID) }

// Spawn creates a state directory and starts a detached session running
// the agent process. If a live session already exists for this agent,
// Spawn is idempotent and returns the existing record rather than erroring
// (spec.md §4.7: "spawn for an agent whose session already exists returns
// the existing agent").
func (s *Supervisor) Spawn(ctx context.Context, issueID, workspace, runtimeKind, model, launchCommand string) (*store.AgentRecord, error) {
	agentID := AgentID(issueID)

	if s.Tmux.Exists(ctx, agentID) {
		if s.Store.Exists(agentID) {
			return s.Store.Load(agentID)
		}
		// Live session but no state directory: reconcile by adopting it
		// rather than refusing (spec.md I1 permits the inverse zombie
		// case; adopting here keeps spawn idempotent end-to-end).
		if err := s.Store.Create(store.StateRecord{
			AgentID: agentID, IssueID: issueID, Workspace: workspace,
			RuntimeKind: runtimeKind, DeclaredModel: model, StartedAt: time.Now(),
		}); err != nil {
			return nil, err
		}
		return s.Store.Load(agentID)
	}

	if err := s.Store.Create(store.StateRecord{
		AgentID: agentID, IssueID: issueID, Workspace: workspace,
		RuntimeKind: runtimeKind, DeclaredModel: model, StartedAt: time.Now(),
	}); err != nil {
		return nil, err
	}

	if err := s.Tmux.CreateDetached(ctx, agentID, workspace, launchCommand); err != nil {
		return nil, err
	}

	if err := s.Store.AppendActivity(agentID, store.ActivityEntry{Kind: "spawned", Detail: runtimeKind}, 0); err != nil {
		s.Log.Warn("append spawn activity failed", "agentId", agentID, "err", err)
	}
	if s.Events != nil {
		if err := s.Events.PublishAgentSpawned(agentID, issueID); err != nil {
			s.Log.Warn("publish agent spawned event failed", "agentId", agentID, "err", err)
		}
	}

	return s.Store.Load(agentID)
}

// Kill terminates the session and purges the state directory. Idempotent:
// killing an already-dead or already-purged agent is not an error (spec.md
// R3, P4).
func (s *Supervisor) Kill(ctx context.Context, agentID string) error {
	if err := s.Tmux.Kill(ctx, agentID); err != nil {
		return err
	}
	var issueID string
	if s.Store.Exists(agentID) {
		if rec, err := s.Store.Load(agentID); err == nil {
			issueID = rec.State.IssueID
		}
		if err := s.Store.MergeState(agentID, func(r *store.StateRecord) { r.KillCount++ }); err != nil {
			s.Log.Warn("bump kill count failed", "agentId", agentID, "err", err)
		}
	}
	if s.Events != nil {
		if err := s.Events.PublishAgentKilled(agentID, issueID); err != nil {
			s.Log.Warn("publish agent killed event failed", "agentId", agentID, "err", err)
		}
	}
	return s.Store.Purge(agentID)
}

// SendMessage sends text to agentID's session followed by Enter.
func (s *Supervisor) SendMessage(ctx context.Context, agentID, text string) error {
	if err := s.Tmux.Send(ctx, agentID, text); err != nil {
		return err
	}
	return s.Tmux.SendEnter(ctx, agentID)
}

// Poke sends a nudge, defaulting to a generic re-check-your-notes message.
func (s *Supervisor) Poke(ctx context.Context, agentID, message string) error {
	if message == "" {
		message = defaultPokeMessage
	}
	return s.SendMessage(ctx, agentID, message)
}

// Suspend saves the given session token and kills the live session.
func (s *Supervisor) Suspend(ctx context.Context, agentID, sessionToken string) error {
	if sessionToken != "" {
		if err := s.Store.SaveSessionID(agentID, sessionToken); err != nil {
			return err
		}
	}
	if err := s.Tmux.Kill(ctx, agentID); err != nil {
		return err
	}
	now := time.Now()
	return s.Store.MergeRuntime(agentID, func(r *store.RuntimeRecord) {
		r.State = "suspended"
		r.SuspendedAt = &now
	})
}

// Resume starts a new detached session resuming the saved token under the
// Global Mutation Lock, optionally following with a message.
func (s *Supervisor) Resume(ctx context.Context, agentID, message string, launch func(token string) (string, error)) error {
	release, err := s.Lock.TryAcquire(fmt.Sprintf("resume(%s)", agentID))
	if err != nil {
		return err
	}
	defer release()

	if s.Tmux.Exists(ctx, agentID) {
		return perr.NewAlreadyRunning(agentID)
	}

	token, err := s.Store.ReadSessionID(agentID)
	if err != nil {
		return err
	}
	command, err := launch(token)
	if err != nil {
		return err
	}

	rec, err := s.Store.Load(agentID)
	if err != nil {
		return err
	}
	if err := s.Tmux.CreateDetached(ctx, agentID, rec.State.Workspace, command); err != nil {
		return err
	}
	if message != "" {
		if err := s.SendMessage(ctx, agentID, message); err != nil {
			return err
		}
	}

	return s.Store.MergeRuntime(agentID, func(r *store.RuntimeRecord) {
		r.State = "active"
		r.SuspendedAt = nil
	})
}

// HandoffEvent records a model handoff for observability (spec.md §4.7:
// "records a handoff event for observability").
type HandoffEvent struct {
	ID         string    `json:"id"`
	FromAgent  string    `json:"fromAgent"`
	ToAgent    string    `json:"toAgent"`
	ToModel    string    `json:"toModel"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Handoff re-declares agentID's model as toModel under the same agent id.
// When no session is live it starts one on the same workspace, running the
// launch command built from the saved session token (if any); a session
// that is already live is left running as it is, not replaced.
func (s *Supervisor) Handoff(ctx context.Context, agentID, toModel, reason string, launch func(token string) (string, error)) (*HandoffEvent, error) {
	rec, err := s.Store.Load(agentID)
	if err != nil {
		return nil, err
	}

	token, _ := s.Store.ReadSessionID(agentID)
	command, err := launch(token)
	if err != nil {
		return nil, err
	}

	newAgentID := agentID // same issue, same identity per spec.md ("new (or same) id")
	if err := s.Store.MergeState(newAgentID, func(r *store.StateRecord) {
		r.DeclaredModel = toModel
		now := time.Now()
		r.LastHandoffAt = &now
	}); err != nil {
		return nil, err
	}

	if !s.Tmux.Exists(ctx, newAgentID) {
		if err := s.Tmux.CreateDetached(ctx, newAgentID, rec.State.Workspace, command); err != nil {
			return nil, err
		}
	}

	event := &HandoffEvent{
		ID: uuid.NewString(), FromAgent: agentID, ToAgent: newAgentID,
		ToModel: toModel, Reason: reason, OccurredAt: time.Now(),
	}
	if err := s.Store.AppendActivity(agentID, store.ActivityEntry{
		Kind: "handoff", Detail: reason,
		Fields: map[string]any{"toModel": toModel, "handoffId": event.ID},
	}, 0); err != nil {
		s.Log.Warn("append handoff activity failed", "agentId", agentID, "err", err)
	}
	if s.Events != nil {
		if err := s.Events.PublishAgentHandoff(agentID, toModel, reason); err != nil {
			s.Log.Warn("publish agent handoff event failed", "agentId", agentID, "err", err)
		}
	}

	return event, nil
}
