package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testThresholds = Thresholds{
	Stale:       2 * time.Minute,
	Warn:        8 * time.Minute,
	Stuck:       20 * time.Minute,
	HiddenAfter: 24 * time.Hour,
}

func TestClassifyNoSessionNoRecentStateIsHidden(t *testing.T) {
	now := time.Now()
	status := Classify(Input{
		Now:             now,
		HasLiveSession:  false,
		LastStateChange: now.Add(-48 * time.Hour),
	}, testThresholds)
	assert.Equal(t, StatusHidden, status)
}

func TestClassifyNoSessionRecentStateIsDead(t *testing.T) {
	now := time.Now()
	status := Classify(Input{
		Now:             now,
		HasLiveSession:  false,
		LastStateChange: now.Add(-1 * time.Hour),
	}, testThresholds)
	assert.Equal(t, StatusDead, status)
}

func TestClassifyNoSessionNeverWrittenStateIsHidden(t *testing.T) {
	now := time.Now()
	status := Classify(Input{
		Now:            now,
		HasLiveSession: false,
	}, testThresholds)
	assert.Equal(t, StatusHidden, status)
}

func TestClassifySuspendedTakesPriorityOverStaleness(t *testing.T) {
	now := time.Now()
	status := Classify(Input{
		Now:            now,
		HasLiveSession: true,
		RuntimeState:   "suspended",
		PaneChangedAt:  now.Add(-1 * time.Hour),
		LastActivity:   now.Add(-1 * time.Hour),
	}, testThresholds)
	assert.Equal(t, StatusSuspended, status)
}

func TestClassifyStuckRequiresBothPaneAndHeartbeatIdle(t *testing.T) {
	now := time.Now()
	status := Classify(Input{
		Now:            now,
		HasLiveSession: true,
		PaneChangedAt:  now.Add(-21 * time.Minute),
		LastActivity:   now.Add(-21 * time.Minute),
	}, testThresholds)
	assert.Equal(t, StatusStuck, status)
}

func TestClassifyNotStuckWhenHeartbeatRecentDespiteStalePane(t *testing.T) {
	now := time.Now()
	status := Classify(Input{
		Now:            now,
		HasLiveSession: true,
		PaneChangedAt:  now.Add(-21 * time.Minute),
		LastActivity:   now, // heartbeat fresh: not stuck, falls through to warning
	}, testThresholds)
	assert.Equal(t, StatusWarning, status)
}

func TestClassifyWarningAtEightMinutePaneIdle(t *testing.T) {
	now := time.Now()
	status := Classify(Input{
		Now:            now,
		HasLiveSession: true,
		PaneChangedAt:  now.Add(-8 * time.Minute),
		LastActivity:   now,
	}, testThresholds)
	assert.Equal(t, StatusWarning, status)
}

// B1: thresholds at T_stale-1ms vs T_stale yield active vs stale.
func TestClassifyStaleBoundary(t *testing.T) {
	now := time.Now()

	justUnder := Classify(Input{
		Now:            now,
		HasLiveSession: true,
		PaneChangedAt:  now.Add(-(2*time.Minute - time.Millisecond)),
		LastActivity:   now,
	}, testThresholds)
	assert.Equal(t, StatusActive, justUnder)

	atThreshold := Classify(Input{
		Now:            now,
		HasLiveSession: true,
		PaneChangedAt:  now.Add(-2 * time.Minute),
		LastActivity:   now,
	}, testThresholds)
	assert.Equal(t, StatusStale, atThreshold)
}

func TestClassifyActiveWhenPaneFresh(t *testing.T) {
	now := time.Now()
	status := Classify(Input{
		Now:            now,
		HasLiveSession: true,
		PaneChangedAt:  now,
		LastActivity:   now,
	}, testThresholds)
	assert.Equal(t, StatusActive, status)
}

func TestClassifyNeverSampledPaneDegradesTowardStuck(t *testing.T) {
	now := time.Now()
	status := Classify(Input{
		Now:            now,
		HasLiveSession: true,
	}, testThresholds)
	assert.Equal(t, StatusStuck, status)
}
