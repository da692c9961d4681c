// Package patrol is the Patrol Loop (C9, spec.md §4.9): the engine's
// single background ticker. Every tick it reclassifies agent health,
// drains idle specialist queues, expires stale work items, and recovers
// timed-out journal operations.
//
// Grounded on cuemby-warren's pkg/reconciler/reconciler.go tick-and-sync
// shape: a ticker goroutine that calls one Tick method and logs per-step
// errors without ever killing the loop.
package patrol

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eltmon/panopticon/pkg/events"
	"github.com/eltmon/panopticon/pkg/health"
	"github.com/eltmon/panopticon/pkg/journal"
	"github.com/eltmon/panopticon/pkg/metrics"
	"github.com/eltmon/panopticon/pkg/specialist"
	"github.com/eltmon/panopticon/pkg/store"
	"github.com/eltmon/panopticon/pkg/tmux"
)

// Launcher builds the shell command used to wake a specialist for a
// dequeued WorkItem.
type Launcher func(specialistName, token string) (string, error)

// Patrol runs the periodic reconciliation tick.
type Patrol struct {
	Store       *store.Store
	Tmux        *tmux.Driver
	Specialists *specialist.Registry
	Journal     *journal.Journal
	Health      health.Thresholds
	OpTimeout   time.Duration // T_op, spec.md §4.9 step 5, default 10m
	Launch      Launcher
	Log         *slog.Logger
	Events      *events.Publisher // optional; nil disables dashboard event emission

	// SpecialistNames lists the specialists whose queues are drained each
	// tick (review-agent, test-agent, merge-agent).
	SpecialistNames []string

	// maxConcurrentClassify bounds the fan-out in step 1 (spec.md §5:
	// "health classification ... bounded concurrency").
	maxConcurrentClassify int

	statusMu sync.Mutex
	status   map[string]health.Status
}

// New constructs a Patrol with sane defaults.
func New(s *store.Store, tmuxDriver *tmux.Driver, specialists *specialist.Registry, j *journal.Journal, thresholds health.Thresholds, launch Launcher, specialistNames []string, logger *slog.Logger) *Patrol {
	if logger == nil {
		logger = slog.Default()
	}
	return &Patrol{
		Store: s, Tmux: tmuxDriver, Specialists: specialists, Journal: j,
		Health: thresholds, OpTimeout: 10 * time.Minute, Launch: launch,
		SpecialistNames: specialistNames, Log: logger,
		maxConcurrentClassify: 8,
		status:                map[string]health.Status{},
	}
}

// WithEvents attaches a dashboard event publisher, returning p for chaining.
func (p *Patrol) WithEvents(pub *events.Publisher) *Patrol {
	p.Events = pub
	return p
}

// LastStatus returns the most recently classified health Status for
// agentID, as of the last completed tick. The API handler (C14) reads
// this instead of reclassifying on every request. A zero value means the
// agent has never been classified yet (patrol hasn't ticked, or the
// agent didn't exist at the last tick).
func (p *Patrol) LastStatus(agentID string) (health.Status, bool) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	s, ok := p.status[agentID]
	return s, ok
}

// AllStatuses returns a snapshot of every agent's last-classified health
// Status, keyed by agent id. Used by the metrics collector (C13) to
// populate the panopticon_agents_total gauge without re-running
// classification.
func (p *Patrol) AllStatuses() map[string]health.Status {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	out := make(map[string]health.Status, len(p.status))
	for k, v := range p.status {
		out[k] = v
	}
	return out
}

func (p *Patrol) setStatus(agentID string, s health.Status) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status[agentID] = s
}

// Run blocks, ticking every period until ctx is cancelled. Per-tick errors
// are logged, never fatal — a single misbehaving agent or specialist must
// not stop reconciliation for everyone else.
func (p *Patrol) Run(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = 30 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one full reconciliation pass. It is exported so callers (and
// tests) can drive it synchronously without waiting on a ticker.
func (p *Patrol) Tick(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.PatrolCycleDuration.Observe(time.Since(start).Seconds()) }()

	if err := p.classifyAll(ctx); err != nil {
		p.Log.Warn("patrol: health classification failed", "err", err)
	}
	p.drainSpecialistQueues(ctx)
	if err := p.expireStaleQueueItems(); err != nil {
		p.Log.Warn("patrol: expire stale queue items failed", "err", err)
	}
	if p.Journal != nil {
		n, err := p.Journal.RecoverStale(p.opTimeout())
		if err != nil {
			p.Log.Warn("patrol: journal recovery failed", "err", err)
		} else if n > 0 {
			p.Log.Info("patrol: recovered stale operations", "count", n)
		}
	}
}

func (p *Patrol) opTimeout() time.Duration {
	if p.OpTimeout <= 0 {
		return 10 * time.Minute
	}
	return p.OpTimeout
}

// classifyAll enumerates every agent directory, reclassifies health, and
// keeps the result in the patrol's in-memory status map (LastStatus) so
// API reads see fresh status without reclassifying on every request
// (step 1). Only the pane hash and its change time are written to
// health.json; the classified status itself is not persisted.
func (p *Patrol) classifyAll(ctx context.Context) error {
	ids, err := p.Store.List()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrentClassify)

	for _, agentID := range ids {
		agentID := agentID
		g.Go(func() error {
			return p.classifyOne(gctx, agentID)
		})
	}
	return g.Wait()
}

func (p *Patrol) classifyOne(ctx context.Context, agentID string) error {
	rec, err := p.Store.Load(agentID)
	if err != nil {
		return err
	}

	live := p.Tmux.Exists(ctx, agentID)

	paneChangedAt := rec.Health.PaneHashUpdatedAt
	if live {
		if pane, err := p.Tmux.Capture(ctx, agentID, 200); err == nil {
			sum := sha256.Sum256([]byte(pane))
			hash := hex.EncodeToString(sum[:])
			if hash != rec.Health.PaneHash {
				paneChangedAt = time.Now()
				if mErr := p.Store.MergeHealth(agentID, func(h *store.HealthRecord) {
					h.PaneHash = hash
					h.PaneHashUpdatedAt = paneChangedAt
				}); mErr != nil {
					p.Log.Warn("patrol: persist pane hash failed", "agentId", agentID, "err", mErr)
				}
			}
		}
	}

	status := health.Classify(health.Input{
		Now:             time.Now(),
		HasLiveSession:  live,
		RuntimeState:    rec.Runtime.State,
		LastActivity:    rec.Runtime.LastActivity,
		LastStateChange: rec.State.UpdatedAt,
		PaneChangedAt:   paneChangedAt,
	}, p.Health)

	prev, known := p.LastStatus(agentID)
	p.setStatus(agentID, status)
	if known && prev != status {
		if err := p.Store.AppendActivity(agentID, store.ActivityEntry{
			Kind: "health-transition", Detail: string(status),
			Fields: map[string]any{"from": string(prev), "to": string(status)},
		}, 200); err != nil {
			p.Log.Warn("patrol: append health transition failed", "agentId", agentID, "err", err)
		}
		if p.Events != nil {
			if err := p.Events.PublishAgentHealthChanged(agentID, rec.State.IssueID, string(prev), string(status)); err != nil {
				p.Log.Warn("patrol: publish health transition event failed", "agentId", agentID, "err", err)
			}
		}
	}
	return nil
}

// drainSpecialistQueues implements step 2: any idle specialist with a
// non-empty queue is woken with its next item.
func (p *Patrol) drainSpecialistQueues(ctx context.Context) {
	for _, name := range p.SpecialistNames {
		state, err := p.Specialists.RuntimeState(name)
		if err != nil {
			p.Log.Warn("patrol: read specialist state failed", "specialist", name, "err", err)
			continue
		}
		if state != "" && state != "idle" && state != "suspended" {
			continue
		}
		item, err := p.Specialists.Peek(name)
		if err != nil || item == nil {
			continue
		}
		launch := func(token string) (string, error) { return p.Launch(name, token) }
		if _, err := p.Specialists.Dequeue(name); err != nil {
			p.Log.Warn("patrol: dequeue failed", "specialist", name, "err", err)
			continue
		}
		if err := p.Specialists.WakeWithTask(ctx, name, item, launch); err != nil {
			p.Log.Warn("patrol: wake from queue failed", "specialist", name, "issue", item.IssueID, "err", err)
		}
	}
}

// expireStaleQueueItems implements step 4: WorkItems past ExpiresAt are
// dropped from every specialist queue.
func (p *Patrol) expireStaleQueueItems() error {
	now := time.Now()
	for _, name := range p.SpecialistNames {
		items, err := p.Specialists.List(name)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.Expired(now) {
				if _, err := p.Specialists.Remove(name, item.ID); err != nil {
					p.Log.Warn("patrol: expire item failed", "specialist", name, "item", item.ID, "err", err)
				} else {
					p.Log.Info("patrol: expired stale queue item", "specialist", name, "item", item.ID, "issue", item.IssueID)
				}
			}
		}
	}
	return nil
}
