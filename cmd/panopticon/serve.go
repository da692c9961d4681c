package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eltmon/panopticon/pkg/api"
	"github.com/eltmon/panopticon/pkg/cleanup"
	"github.com/eltmon/panopticon/pkg/config"
	"github.com/eltmon/panopticon/pkg/events"
	"github.com/eltmon/panopticon/pkg/health"
	"github.com/eltmon/panopticon/pkg/journal"
	"github.com/eltmon/panopticon/pkg/lock"
	"github.com/eltmon/panopticon/pkg/metrics"
	"github.com/eltmon/panopticon/pkg/patrol"
	"github.com/eltmon/panopticon/pkg/pipeline"
	"github.com/eltmon/panopticon/pkg/question"
	"github.com/eltmon/panopticon/pkg/specialist"
	"github.com/eltmon/panopticon/pkg/store"
	"github.com/eltmon/panopticon/pkg/tmux"
	"github.com/eltmon/panopticon/pkg/tracker"
	"github.com/eltmon/panopticon/pkg/transcript"
	"github.com/eltmon/panopticon/pkg/vcs"
	"github.com/eltmon/panopticon/pkg/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the panopticon API server and its background loops",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (overrides engine.yaml http_addr)")
}

func newLogger(level string, jsonOutput bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func runServe(cmd *cobra.Command, args []string) error {
	configDir, _ := cmd.Flags().GetString("config-dir")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	addrOverride, _ := cmd.Flags().GetString("addr")

	loadDotEnv(configDir)
	logger := newLogger(logLevel, logJSON)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	specialistNames := make([]string, 0, len(cfg.Specialists))
	for name := range cfg.Specialists {
		specialistNames = append(specialistNames, name)
	}
	if len(specialistNames) == 0 {
		specialistNames = config.SpecialistNames
	}

	tmuxDriver := tmux.New(cfg.TmuxBinary)
	gmLock := lock.New()

	agentStore, err := store.New(filepath.Join(cfg.StorageRoot, "agents"))
	if err != nil {
		return fmt.Errorf("open agent store: %w", err)
	}

	specialists, err := specialist.New(filepath.Join(cfg.StorageRoot, "specialists"), tmuxDriver, gmLock, logger, specialistNames)
	if err != nil {
		return fmt.Errorf("open specialist registry: %w", err)
	}

	reviewStore, err := pipeline.NewStore(filepath.Join(cfg.StorageRoot, "review-status.json"))
	if err != nil {
		return fmt.Errorf("open review status store: %w", err)
	}

	jrnl, err := journal.New(filepath.Join(cfg.StorageRoot, "pending-operations.json"))
	if err != nil {
		return fmt.Errorf("open operation journal: %w", err)
	}

	connManager := events.NewConnectionManager(10 * time.Second)
	publisher := events.NewPublisher(connManager)

	cfgHolder := newConfigHolder(cfg)
	if err := config.Watch(ctx, configDir, cfgHolder.set); err != nil {
		logger.Warn("config hot-reload disabled", "err", err)
	}

	launch := specialistLauncher(cfgHolder)

	pipelineCtrl := pipeline.New(reviewStore, specialists, tmuxDriver, tracker.Noop{}, vcs.Noop{}, launch, logger, cfg.CircuitBreakerMax).
		WithEvents(publisher)

	thresholds := health.Thresholds{
		Stale:       cfg.HealthThresholds.Stale,
		Warn:        cfg.HealthThresholds.Warn,
		Stuck:       cfg.HealthThresholds.Stuck,
		HiddenAfter: cfg.HealthThresholds.HiddenAfter,
	}
	patrolLoop := patrol.New(agentStore, tmuxDriver, specialists, jrnl, thresholds, patrol.Launcher(launch), specialistNames, logger).
		WithEvents(publisher)

	reader := transcript.New("*.jsonl")
	broker := question.New(reader, tmuxDriver)

	collector := metrics.NewCollector(patrolLoop, specialists, gmLock, specialistNames, logger)
	collector.Start()
	defer collector.Stop()

	cleanupSvc := cleanup.NewService(cleanup.Config{
		AgentRetention:   24 * time.Hour,
		JournalRetention: 24 * time.Hour,
		Interval:         time.Hour,
	}, agentStore, tmuxDriver, jrnl, logger)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	workers := worker.New(agentStore, tmuxDriver, gmLock, logger).WithEvents(publisher)

	srv := api.NewServer(cfg, agentStore, workers, specialists, pipelineCtrl, patrolLoop, broker, jrnl, gmLock, connManager, launch)

	go patrolLoop.Run(ctx, time.Duration(cfg.PatrolIntervalSec)*time.Second)

	addr := cfg.HTTPAddr
	if addrOverride != "" {
		addr = addrOverride
	}
	if addr == "" {
		addr = ":8080"
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("panopticon listening", "addr", addr)
		if err := srv.Start(addr); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// configHolder lets the long-lived launch closure see config.Watch's
// reloads without every collaborator needing to be rebuilt on change.
type configHolder struct {
	mu  sync.RWMutex
	cfg *config.Config
}

func newConfigHolder(cfg *config.Config) *configHolder {
	return &configHolder{cfg: cfg}
}

func (h *configHolder) set(cfg *config.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
}

func (h *configHolder) get() *config.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// specialistLauncher builds the launch closure the API, pipeline, and
// patrol loop all use to start or resume a specialist's interactive
// session, dispatching on the specialist's configured command and args
// (spec.md §3 SpecialistConfig).
func specialistLauncher(cfgHolder *configHolder) func(specialistName, token string) (string, error) {
	return func(specialistName, token string) (string, error) {
		cfg := cfgHolder.get()
		sc, ok := cfg.Specialists[specialistName]
		if !ok {
			return "", fmt.Errorf("no launch command configured for specialist %q", specialistName)
		}
		cmdStr := sc.Command
		for _, a := range sc.Args {
			cmdStr += " " + a
		}
		if token != "" {
			cmdStr += " --resume " + token
		}
		return cmdStr, nil
	}
}
