// Package cleanup provides the engine's data retention service: pruning
// purgeable worker agent directories and stale Operation Journal entries
// so the storage root does not grow unbounded over the life of a
// long-running engine process.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/eltmon/panopticon/pkg/journal"
	"github.com/eltmon/panopticon/pkg/store"
	"github.com/eltmon/panopticon/pkg/tmux"
)

// Config controls retention windows. Zero values disable the
// corresponding sweep.
type Config struct {
	// AgentRetention is how long a non-live agent directory (no tmux
	// session, state.json untouched since) survives before it is purged.
	AgentRetention time.Duration
	// JournalRetention is how long a terminal (non-running) journal entry
	// survives before it is dropped from pending-operations.json.
	JournalRetention time.Duration
	Interval         time.Duration
}

// Service periodically sweeps the Agent State Store (C2) and the
// Operation Journal (C10) for records past their retention window.
// Distinct from the Patrol Loop (C9): patrol reconciles live state every
// few seconds, this runs far less often and only deletes.
//
// Grounded on the teacher's pkg/cleanup/service.go ticker-driven
// Start/Stop/run shape.
type Service struct {
	cfg   Config
	store *store.Store
	tmux  *tmux.Driver
	jrnl  *journal.Journal
	log   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService constructs a retention Service.
func NewService(cfg Config, s *store.Store, tmuxDriver *tmux.Driver, j *journal.Journal, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Service{cfg: cfg, store: s, tmux: tmuxDriver, jrnl: j, log: logger}
}

// Start launches the background retention loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	s.log.Info("cleanup: retention service started",
		"agentRetention", s.cfg.AgentRetention, "journalRetention", s.cfg.JournalRetention, "interval", s.cfg.Interval)
}

// Stop signals the retention loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Info("cleanup: retention service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.purgeStaleAgents(ctx)
	s.pruneJournal()
}

// purgeStaleAgents removes state directories for agents with no live
// session whose state hasn't been touched within AgentRetention. Killing
// never happens here — only directories already abandoned by their
// session are candidates, so this can never interrupt a running agent.
func (s *Service) purgeStaleAgents(ctx context.Context) {
	if s.cfg.AgentRetention <= 0 {
		return
	}
	ids, err := s.store.List()
	if err != nil {
		s.log.Warn("cleanup: list agents failed", "err", err)
		return
	}
	cutoff := time.Now().Add(-s.cfg.AgentRetention)
	purged := 0
	for _, id := range ids {
		if s.tmux.Exists(ctx, id) {
			continue
		}
		rec, err := s.store.Load(id)
		if err != nil {
			continue
		}
		if rec.State.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.store.Purge(id); err != nil {
			s.log.Warn("cleanup: purge stale agent failed", "agentId", id, "err", err)
			continue
		}
		purged++
	}
	if purged > 0 {
		s.log.Info("cleanup: purged stale agent directories", "count", purged)
	}
}

// pruneJournal drops terminal journal entries older than
// JournalRetention. Entries still "running" are left alone — the Patrol
// Loop's RecoverStale handles those via T_op, not this sweep.
func (s *Service) pruneJournal() {
	if s.cfg.JournalRetention <= 0 || s.jrnl == nil {
		return
	}
	ops, err := s.jrnl.List()
	if err != nil {
		s.log.Warn("cleanup: list journal failed", "err", err)
		return
	}
	cutoff := time.Now().Add(-s.cfg.JournalRetention)
	pruned := 0
	for _, op := range ops {
		if op.Status == journal.StatusRunning {
			continue
		}
		if op.StartedAt.After(cutoff) {
			continue
		}
		if err := s.jrnl.Succeed(op.ID); err != nil {
			s.log.Warn("cleanup: prune journal entry failed", "id", op.ID, "err", err)
			continue
		}
		pruned++
	}
	if pruned > 0 {
		s.log.Info("cleanup: pruned stale journal entries", "count", pruned)
	}
}
