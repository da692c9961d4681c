package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eltmon/panopticon/pkg/health"
	"github.com/eltmon/panopticon/pkg/lock"
	"github.com/eltmon/panopticon/pkg/specialist"
	"github.com/eltmon/panopticon/pkg/tmux"
)

type fakeStatusSource struct {
	statuses map[string]health.Status
}

func (f *fakeStatusSource) AllStatuses() map[string]health.Status { return f.statuses }

func TestCollectAgentMetricsCoversClosedSet(t *testing.T) {
	src := &fakeStatusSource{statuses: map[string]health.Status{
		"agent-pan-1": health.StatusActive,
		"agent-pan-2": health.StatusActive,
		"agent-pan-3": health.StatusStuck,
	}}
	c := &Collector{Statuses: src}
	c.collectAgentMetrics()

	assert.Equal(t, 2.0, testutil.ToFloat64(AgentsTotal.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(AgentsTotal.WithLabelValues("stuck")))
	assert.Equal(t, 0.0, testutil.ToFloat64(AgentsTotal.WithLabelValues("dead")))
}

func TestCollectSpecialistMetricsReportsDepthAndState(t *testing.T) {
	driver := tmux.New("true")
	reg, err := specialist.New(t.TempDir(), driver, lock.New(), nil, []string{"review-agent"})
	require.NoError(t, err)
	require.NoError(t, reg.Enqueue("review-agent", &specialist.WorkItem{ID: "w1", Kind: "task"}))
	require.NoError(t, reg.Enqueue("review-agent", &specialist.WorkItem{ID: "w2", Kind: "task"}))

	c := &Collector{Specialists: reg, Names: []string{"review-agent"}}
	c.collectSpecialistMetrics()

	assert.Equal(t, 2.0, testutil.ToFloat64(SpecialistQueueDepth.WithLabelValues("review-agent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SpecialistState.WithLabelValues("review-agent", "idle")))
	assert.Equal(t, 0.0, testutil.ToFloat64(SpecialistState.WithLabelValues("review-agent", "active")))
}

func TestCollectLockMetricsReflectsHolder(t *testing.T) {
	l := lock.New()
	c := &Collector{Lock: l}

	c.collectLockMetrics()
	assert.Equal(t, 0.0, testutil.ToFloat64(GlobalLockHeld))

	release, err := l.TryAcquire("test")
	require.NoError(t, err)
	defer release()

	c.collectLockMetrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(GlobalLockHeld))
}

func TestStartStopDoesNotPanic(t *testing.T) {
	src := &fakeStatusSource{statuses: map[string]health.Status{}}
	c := NewCollector(src, nil, lock.New(), nil, nil)
	c.Interval = 1
	c.Start()
	c.Stop()
}
