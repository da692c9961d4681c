package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlFile is the on-disk shape of engine.yaml; it mirrors Config's
// persisted fields only (Config.configDir is never serialized).
type yamlFile struct {
	StorageRoot              string                      `yaml:"storage_root"`
	TmuxBinary               string                      `yaml:"tmux_binary"`
	HealthThresholds         *healthThresholdsYAML       `yaml:"health_thresholds"`
	PatrolIntervalSec        int                         `yaml:"patrol_interval_sec"`
	ActivityRetention        int                         `yaml:"activity_retention"`
	CircuitBreakerMax        int                         `yaml:"circuit_breaker_max"`
	OperationTimeoutSec      int                         `yaml:"operation_timeout_sec"`
	LockScope                string                      `yaml:"lock_scope"`
	QuestionKeystrokeDelayMS int                         `yaml:"question_keystroke_delay_ms"`
	Specialists              map[string]SpecialistConfig `yaml:"specialists"`
	HTTPAddr                 string                      `yaml:"http_addr"`
}

type healthThresholdsYAML struct {
	StaleSec int `yaml:"stale_sec"`
	WarnSec  int `yaml:"warn_sec"`
	StuckSec int `yaml:"stuck_sec"`
}

// Initialize loads engine.yaml from configDir (if present), expands
// environment variables, merges it over Defaults(), validates the result,
// and returns a ready-to-use Config. Without engine.yaml, Defaults() alone
// is validated; the defaults name no specialists, so that validation fails
// with ErrValidationFailed. Environment expansion applies only to the
// content of engine.yaml.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	cfg := Defaults()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "engine.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("No engine.yaml found, using defaults", "path", path)
			if err := validate(cfg); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
			}
			return cfg, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var yf yamlFile
	if err := yaml.Unmarshal(data, &yf); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	applyYAML(cfg, &yf)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized", "specialists", len(cfg.Specialists))
	return cfg, nil
}

func applyYAML(cfg *Config, yf *yamlFile) {
	if yf.StorageRoot != "" {
		cfg.StorageRoot = yf.StorageRoot
	}
	if yf.TmuxBinary != "" {
		cfg.TmuxBinary = yf.TmuxBinary
	}
	if yf.HealthThresholds != nil {
		if yf.HealthThresholds.StaleSec > 0 {
			cfg.HealthThresholds.Stale = time.Duration(yf.HealthThresholds.StaleSec) * time.Second
		}
		if yf.HealthThresholds.WarnSec > 0 {
			cfg.HealthThresholds.Warn = time.Duration(yf.HealthThresholds.WarnSec) * time.Second
		}
		if yf.HealthThresholds.StuckSec > 0 {
			cfg.HealthThresholds.Stuck = time.Duration(yf.HealthThresholds.StuckSec) * time.Second
		}
	}
	if yf.PatrolIntervalSec > 0 {
		cfg.PatrolIntervalSec = yf.PatrolIntervalSec
	}
	if yf.ActivityRetention > 0 {
		cfg.ActivityRetention = yf.ActivityRetention
	}
	if yf.CircuitBreakerMax > 0 {
		cfg.CircuitBreakerMax = yf.CircuitBreakerMax
	}
	if yf.OperationTimeoutSec > 0 {
		cfg.OperationTimeoutSec = yf.OperationTimeoutSec
	}
	if yf.LockScope != "" {
		cfg.LockScope = yf.LockScope
	}
	if yf.QuestionKeystrokeDelayMS > 0 {
		cfg.QuestionKeystrokeDelayMS = yf.QuestionKeystrokeDelayMS
	}
	if len(yf.Specialists) > 0 {
		cfg.Specialists = yf.Specialists
	}
	if yf.HTTPAddr != "" {
		cfg.HTTPAddr = yf.HTTPAddr
	}
}

func defaultStorageRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".panopticon"
	}
	return filepath.Join(home, ".panopticon")
}
