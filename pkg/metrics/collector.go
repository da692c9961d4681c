package metrics

import (
	"log/slog"
	"time"

	"github.com/eltmon/panopticon/pkg/health"
	"github.com/eltmon/panopticon/pkg/lock"
	"github.com/eltmon/panopticon/pkg/specialist"
)

// specialistStates is the closed set SpecialistState cycles through for
// every specialist name on each refresh, so a state transition zeroes the
// previous state's series instead of leaving it stuck at 1.
var specialistStates = []string{"idle", "active", "suspended"}

// allHealthStatuses is the closed set AgentsTotal reports over, so a
// status that drops to zero agents still shows as 0 rather than
// disappearing from the series.
var allHealthStatuses = []health.Status{
	health.StatusHidden, health.StatusDead, health.StatusSuspended,
	health.StatusStuck, health.StatusWarning, health.StatusStale, health.StatusActive,
}

// StatusSource reports the last-classified health Status of every known
// agent. Satisfied by *patrol.Patrol.
type StatusSource interface {
	AllStatuses() map[string]health.Status
}

// Collector periodically refreshes the gauges that describe live engine
// state (AgentsTotal, SpecialistQueueDepth, SpecialistState,
// GlobalLockHeld) rather than recomputing them on every Prometheus
// scrape.
//
// Grounded on cuemby-warren's pkg/metrics/collector.go: a ticker-driven
// goroutine calling one collect method that fans out per category.
type Collector struct {
	Statuses    StatusSource
	Specialists *specialist.Registry
	Lock        *lock.Lock
	Names       []string // specialist names to report queue depth/state for
	Interval    time.Duration
	Log         *slog.Logger

	stopCh chan struct{}
}

// NewCollector constructs a Collector with a 15s refresh interval.
func NewCollector(statuses StatusSource, specialists *specialist.Registry, gmLock *lock.Lock, names []string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		Statuses: statuses, Specialists: specialists, Lock: gmLock,
		Names: names, Interval: 15 * time.Second, Log: logger,
	}
}

// Start runs the refresh loop in a background goroutine until Stop is
// called.
func (c *Collector) Start() {
	c.stopCh = make(chan struct{})
	go func() {
		c.collect()
		ticker := time.NewTicker(c.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop halts the refresh loop. Safe to call once; a second call panics on
// the closed channel, matching the teacher's Collector contract.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectAgentMetrics()
	c.collectSpecialistMetrics()
	c.collectLockMetrics()
}

func (c *Collector) collectAgentMetrics() {
	counts := make(map[health.Status]int, len(allHealthStatuses))
	for _, s := range c.Statuses.AllStatuses() {
		counts[s]++
	}
	for _, s := range allHealthStatuses {
		AgentsTotal.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

func (c *Collector) collectSpecialistMetrics() {
	for _, name := range c.Names {
		items, err := c.Specialists.List(name)
		if err != nil {
			c.Log.Warn("metrics: list specialist queue failed", "name", name, "err", err)
		} else {
			SpecialistQueueDepth.WithLabelValues(name).Set(float64(len(items)))
		}

		current, err := c.Specialists.RuntimeState(name)
		if err != nil {
			c.Log.Warn("metrics: read specialist state failed", "name", name, "err", err)
			continue
		}
		for _, state := range specialistStates {
			v := 0.0
			if state == current {
				v = 1.0
			}
			SpecialistState.WithLabelValues(name, state).Set(v)
		}
	}
}

func (c *Collector) collectLockMetrics() {
	v := 0.0
	if c.Lock.Holder() != "" {
		v = 1.0
	}
	GlobalLockHeld.Set(v)
}
