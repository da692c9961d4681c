// Package config loads and validates the engine's configuration: health
// thresholds, patrol cadence, storage roots, specialist launch commands,
// and the circuit-breaker bound on auto-requeue. It mirrors the layered
// Initialize(ctx, dir) shape used throughout the teacher's ambient stack.
package config

import "time"

// Config is the umbrella configuration object returned by Initialize and
// threaded through every engine component.
type Config struct {
	configDir string

	// StorageRoot is the base directory for all persisted state
	// (defaults to "~/.panopticon"). Agents, specialists, review-status.json
	// and pending-operations.json all live under it.
	StorageRoot string `yaml:"storage_root"`

	// TmuxBinary is the path (or bare name, resolved via $PATH) of the
	// terminal-multiplexer executable the Session Driver shells out to.
	TmuxBinary string `yaml:"tmux_binary"`

	HealthThresholds HealthThresholds `yaml:"health_thresholds"`

	PatrolIntervalSec   int `yaml:"patrol_interval_sec" validate:"min=1"`
	ActivityRetention   int `yaml:"activity_retention" validate:"min=1"`
	CircuitBreakerMax   int `yaml:"circuit_breaker_max" validate:"min=1"`
	OperationTimeoutSec int `yaml:"operation_timeout_sec" validate:"min=1"`

	LockScope string `yaml:"lock_scope"`

	// QuestionKeystrokeDelayMS paces keystrokes sent by the Pending-Question
	// Broker (C11) to survive terminal echo quirks. Tunable per spec.md §9.
	QuestionKeystrokeDelayMS int `yaml:"question_keystroke_delay_ms" validate:"min=0"`

	Specialists map[string]SpecialistConfig `yaml:"specialists" validate:"required,dive"`

	HTTPAddr string `yaml:"http_addr"`
}

// HealthThresholds are the idle-duration cutoffs the Health Classifier (C4)
// compares pane-staleness and heartbeat age against (spec.md §4.4).
type HealthThresholds struct {
	Stale time.Duration `yaml:"stale"`
	Warn  time.Duration `yaml:"warn"`
	Stuck time.Duration `yaml:"stuck"`

	// HiddenAfter bounds how long a directory with no live session is
	// still considered "recent state" and reported as dead rather than
	// silently hidden (spec.md §4.4 rule 1 vs 2).
	HiddenAfter time.Duration `yaml:"hidden_after"`
}

// SpecialistConfig describes how to launch one of the three singleton
// specialists (review-agent, test-agent, merge-agent).
type SpecialistConfig struct {
	Command string   `yaml:"command" validate:"required"`
	Args    []string `yaml:"args"`
}

// ConfigDir returns the directory Initialize loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// SpecialistNames is the closed set of singleton specialist identities
// (spec.md §3, "Agent (specialist)").
var SpecialistNames = []string{"review-agent", "test-agent", "merge-agent"}
