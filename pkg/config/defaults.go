package config

import "time"

// Defaults returns a Config pre-populated with the engine's out-of-the-box
// values; Initialize merges a user's YAML over these.
func Defaults() *Config {
	return &Config{
		StorageRoot: defaultStorageRoot(),
		TmuxBinary:  "tmux",
		HealthThresholds: HealthThresholds{
			Stale:       2 * time.Minute,
			Warn:        8 * time.Minute,
			Stuck:       20 * time.Minute,
			HiddenAfter: 24 * time.Hour,
		},
		PatrolIntervalSec:       30,
		ActivityRetention:       100,
		CircuitBreakerMax:       3,
		OperationTimeoutSec:     600,
		LockScope:               "process",
		QuestionKeystrokeDelayMS: 100,
		Specialists:             map[string]SpecialistConfig{},
		HTTPAddr:                ":8090",
	}
}
