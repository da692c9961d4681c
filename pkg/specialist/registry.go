// Package specialist is the Specialist Registry (C5, spec.md §4.5): a
// singleton lifecycle for the closed set of named specialist agents
// (review-agent, test-agent, merge-agent), each backed by a durable
// priority queue and a resumable session token.
//
// Grounded on the teacher's pkg/queue/pool.go WorkerPool (start/stop/health
// shape, per-name session bookkeeping) and gastown's SessionRegistry
// (singleton-by-name session discovery).
package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/eltmon/panopticon/pkg/lock"
	"github.com/eltmon/panopticon/pkg/perr"
	"github.com/eltmon/panopticon/pkg/tmux"
)

// state is the durable, non-queue portion of a specialist's record.
type state struct {
	SessionToken string     `json:"sessionToken,omitempty"`
	LastWake     *time.Time `json:"lastWake,omitempty"`
	CurrentIssue string     `json:"currentIssue,omitempty"`
	RuntimeState string     `json:"runtimeState"` // "idle", "active", "suspended"
	Enabled      bool       `json:"enabled"`
	AutoWake     bool       `json:"autoWake"`
}

// Handle is one specialist's in-memory bookkeeping: its durable state plus
// its queue. Every mutation takes mu to keep state.json and the in-memory
// view consistent with each other.
type Handle struct {
	Name    string
	Command []string

	mu        sync.Mutex
	statePath string
	state     state
	queue     *Queue
}

// Registry owns every specialist's Handle plus the shared collaborators
// (tmux driver, Global Mutation Lock) wakeWithTask needs.
type Registry struct {
	Root string // {StorageRoot}/specialists
	Tmux *tmux.Driver
	Lock *lock.Lock
	Log  *slog.Logger

	mu       sync.RWMutex
	handles  map[string]*Handle
	onNotify func(name string, item *WorkItem) // test/prod hook for "wake executed"
	onQueued func(name string, item *WorkItem) // test/prod hook for "enqueued because busy"
}

// New constructs a Registry rooted at root, loading any durable state for
// the given specialist names (spec.md's closed set).
func New(root string, tmuxDriver *tmux.Driver, gmLock *lock.Lock, logger *slog.Logger, names []string) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{Root: root, Tmux: tmuxDriver, Lock: gmLock, Log: logger, handles: map[string]*Handle{}}
	for _, name := range names {
		h, err := r.loadHandle(name)
		if err != nil {
			return nil, fmt.Errorf("load specialist %s: %w", name, err)
		}
		r.handles[name] = h
	}
	return r, nil
}

func (r *Registry) dir(name string) string { return filepath.Join(r.Root, name) }

func (r *Registry) loadHandle(name string) (*Handle, error) {
	dir := r.dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	h := &Handle{Name: name, statePath: filepath.Join(dir, "state.json")}

	data, err := os.ReadFile(h.statePath)
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, &h.state); jerr != nil {
			h.state = state{RuntimeState: "idle", Enabled: true, AutoWake: true}
		}
	case os.IsNotExist(err):
		h.state = state{RuntimeState: "idle", Enabled: true, AutoWake: true}
	default:
		return nil, err
	}

	q, err := loadQueue(filepath.Join(dir, "queue.json"))
	if err != nil {
		return nil, err
	}
	h.queue = q
	return h, nil
}

// handle returns the Handle for name, or a *perr.NotFoundError if name is
// not one of the registered specialists.
func (r *Registry) handle(name string) (*Handle, error) {
	r.mu.RLock()
	h, ok := r.handles[name]
	r.mu.RUnlock()
	if !ok {
		return nil, perr.NewNotFound("specialist", name)
	}
	return h, nil
}

func (h *Handle) persistLocked() error {
	data, err := json.MarshalIndent(h.state, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(h.statePath, data, 0o644)
}

// sessionName is the tmux session identity for a specialist (spec.md §4.1,
// §4.5: "per-name tmux session").
func sessionName(name string) string { return name }

// Enqueue inserts item into name's queue (spec.md §4.5 enqueue).
func (r *Registry) Enqueue(name string, item *WorkItem) error {
	h, err := r.handle(name)
	if err != nil {
		return err
	}
	return h.queue.Enqueue(item)
}

// Dequeue removes and returns name's highest-priority item, if any.
func (r *Registry) Dequeue(name string) (*WorkItem, error) {
	h, err := r.handle(name)
	if err != nil {
		return nil, err
	}
	return h.queue.Dequeue()
}

// Peek returns name's highest-priority item without removing it.
func (r *Registry) Peek(name string) (*WorkItem, error) {
	h, err := r.handle(name)
	if err != nil {
		return nil, err
	}
	return h.queue.Peek(), nil
}

// List returns every item queued for name, in dequeue order.
func (r *Registry) List(name string) ([]*WorkItem, error) {
	h, err := r.handle(name)
	if err != nil {
		return nil, err
	}
	return h.queue.List(), nil
}

// Remove deletes the item with the given id from name's queue.
func (r *Registry) Remove(name, id string) (*WorkItem, error) {
	h, err := r.handle(name)
	if err != nil {
		return nil, err
	}
	return h.queue.Remove(id)
}

// Reorder reorders name's queue to match ids.
func (r *Registry) Reorder(name string, ids []string) error {
	h, err := r.handle(name)
	if err != nil {
		return err
	}
	return h.queue.Reorder(ids)
}

// isIdle reports whether a specialist's runtime state permits a fresh
// wakeWithTask without enqueueing instead (spec.md §4.5 wakeOrQueue).
func isIdle(runtimeState string) bool {
	return runtimeState == "" || runtimeState == "idle" || runtimeState == "suspended"
}

// WakeWithTask starts a detached session for name, session-resuming its
// stored token, and sends task as the first message. Precondition:
// name is not currently active (spec.md I2 singleton invariant);
// violating this returns *perr.AlreadyRunningError.
func (r *Registry) WakeWithTask(ctx context.Context, name string, task *WorkItem, launch func(token string) (command string, err error)) error {
	h, err := r.handle(name)
	if err != nil {
		return err
	}

	release, err := r.Lock.TryAcquire(fmt.Sprintf("wakeWithTask(%s)", name))
	if err != nil {
		return err
	}
	defer release()

	h.mu.Lock()
	defer h.mu.Unlock()

	sess := sessionName(name)
	if r.Tmux.Exists(ctx, sess) {
		return perr.NewAlreadyRunning(name)
	}
	if !isIdle(h.state.RuntimeState) {
		return perr.NewAlreadyRunning(name)
	}

	command, err := launch(h.state.SessionToken)
	if err != nil {
		return fmt.Errorf("build launch command for %s: %w", name, err)
	}

	workspace := task.Workspace
	if workspace == "" {
		workspace = r.dir(name)
	}
	if err := r.Tmux.CreateDetached(ctx, sess, workspace, command); err != nil {
		return err
	}

	now := time.Now()
	h.state.LastWake = &now
	h.state.CurrentIssue = task.IssueID
	h.state.RuntimeState = "active"
	if err := h.persistLocked(); err != nil {
		return err
	}

	r.Log.Info("specialist woke", "name", name, "issueId", task.IssueID)
	if r.onNotify != nil {
		r.onNotify(name, task)
	}
	return nil
}

// WakeOrQueue implements spec.md §4.5's wakeOrQueue: wake if idle,
// otherwise enqueue at the requested priority.
func (r *Registry) WakeOrQueue(ctx context.Context, name string, item *WorkItem, launch func(token string) (string, error)) (woke bool, err error) {
	h, err := r.handle(name)
	if err != nil {
		return false, err
	}

	h.mu.Lock()
	idle := isIdle(h.state.RuntimeState) && !r.Tmux.Exists(ctx, sessionName(name))
	h.mu.Unlock()

	if !idle {
		if err := r.Enqueue(name, item); err != nil {
			return false, err
		}
		r.notifyQueued(name, item)
		return false, nil
	}

	if err := r.WakeWithTask(ctx, name, item, launch); err != nil {
		if _, ok := err.(*perr.AlreadyRunningError); ok {
			if qErr := r.Enqueue(name, item); qErr != nil {
				return false, qErr
			}
			r.notifyQueued(name, item)
			return false, nil
		}
		if _, ok := err.(*perr.LockBusyError); ok {
			if qErr := r.Enqueue(name, item); qErr != nil {
				return false, qErr
			}
			r.notifyQueued(name, item)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Registry) notifyQueued(name string, item *WorkItem) {
	r.mu.RLock()
	fn := r.onQueued
	r.mu.RUnlock()
	if fn != nil {
		fn(name, item)
	}
}

// Suspend saves the session token, kills the session, and marks the
// specialist suspended.
func (r *Registry) Suspend(ctx context.Context, name string, token string) error {
	h, err := r.handle(name)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if token != "" {
		h.state.SessionToken = token
	}
	if err := r.Tmux.Kill(ctx, sessionName(name)); err != nil {
		return err
	}
	h.state.RuntimeState = "suspended"
	return h.persistLocked()
}

// Resume is the inverse of Suspend: it acquires the Global Mutation Lock
// and starts a new session resuming the saved token, optionally sending a
// follow-up message.
func (r *Registry) Resume(ctx context.Context, name string, message string, launch func(token string) (string, error)) error {
	h, err := r.handle(name)
	if err != nil {
		return err
	}

	release, err := r.Lock.TryAcquire(fmt.Sprintf("resume(%s)", name))
	if err != nil {
		return err
	}
	defer release()

	h.mu.Lock()
	defer h.mu.Unlock()

	sess := sessionName(name)
	if r.Tmux.Exists(ctx, sess) {
		return perr.NewAlreadyRunning(name)
	}

	command, err := launch(h.state.SessionToken)
	if err != nil {
		return err
	}
	if err := r.Tmux.CreateDetached(ctx, sess, r.dir(name), command); err != nil {
		return err
	}
	if message != "" {
		if err := r.Tmux.Send(ctx, sess, message); err != nil {
			return err
		}
		if err := r.Tmux.SendEnter(ctx, sess); err != nil {
			return err
		}
	}

	h.state.RuntimeState = "active"
	return h.persistLocked()
}

// ReportCompletion implements spec.md §4.5's reportCompletion: it marks
// name idle, clears currentIssue, and immediately wakes the next queued
// item rather than waiting for the patrol loop. It removes no queue item
// for issueID: every wake path dequeues its item before waking, so the
// completed item is no longer queued.
func (r *Registry) ReportCompletion(ctx context.Context, name, issueID string, launch func(token string) (string, error)) error {
	h, err := r.handle(name)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.state.RuntimeState = "idle"
	h.state.CurrentIssue = ""
	if perErr := h.persistLocked(); perErr != nil {
		h.mu.Unlock()
		return perErr
	}
	h.mu.Unlock()

	next, err := h.queue.Dequeue()
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	return r.WakeWithTask(ctx, name, next, launch)
}

// WakeNext dequeues name's highest-priority item and wakes it directly,
// bypassing WakeOrQueue's busy-check fallback. Used by the operator-facing
// POST /specialists/:name/wake endpoint: a human asking a specialist to
// wake means "start on whatever is queued right now", not "queue another
// item". Returns *perr.NotFoundError{Kind:"work-item"} if the queue is
// empty.
func (r *Registry) WakeNext(ctx context.Context, name string, launch func(token string) (string, error)) error {
	item, err := r.Dequeue(name)
	if err != nil {
		return err
	}
	if item == nil {
		return perr.NewNotFound("work-item", name)
	}
	return r.WakeWithTask(ctx, name, item, launch)
}

// Reset clears a specialist back to its idle baseline: the live session
// (if any) is killed, its resumable token and current issue are dropped,
// but its queue is left untouched — a reset is a session reset, not a
// queue purge.
func (r *Registry) Reset(ctx context.Context, name string) error {
	h, err := r.handle(name)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	_ = r.Tmux.Kill(ctx, sessionName(name)) // best-effort; already-dead is fine

	h.state.SessionToken = ""
	h.state.CurrentIssue = ""
	h.state.LastWake = nil
	h.state.RuntimeState = "idle"
	return h.persistLocked()
}

// Init starts a specialist's session with an empty "init" work item (no
// issue). Like any wake, this marks the specialist active with no current
// issue. Fails with *perr.AlreadyRunningError if a session is already live
// (spec.md I2).
func (r *Registry) Init(ctx context.Context, name string, launch func(token string) (string, error)) error {
	return r.WakeWithTask(ctx, name, &WorkItem{Kind: "init", Source: "operator"}, launch)
}

// RuntimeState reports name's current runtime state for health/patrol use.
func (r *Registry) RuntimeState(name string) (string, error) {
	h, err := r.handle(name)
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.RuntimeState, nil
}

// CurrentIssue reports the issue a specialist is currently working, if any.
func (r *Registry) CurrentIssue(name string) (string, error) {
	h, err := r.handle(name)
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.CurrentIssue, nil
}

// SetOnNotify installs a hook invoked every time WakeWithTask successfully
// starts a session; only tests install one.
func (r *Registry) SetOnNotify(fn func(name string, item *WorkItem)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onNotify = fn
}

// SetOnQueued installs a hook invoked every time WakeOrQueue falls back to
// enqueueing because the specialist was busy; the cmd/panopticon wiring
// uses this to publish specialist.queued dashboard events.
func (r *Registry) SetOnQueued(fn func(name string, item *WorkItem)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onQueued = fn
}
