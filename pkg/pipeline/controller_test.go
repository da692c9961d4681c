package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eltmon/panopticon/pkg/lock"
	"github.com/eltmon/panopticon/pkg/specialist"
	"github.com/eltmon/panopticon/pkg/tmux"
	"github.com/eltmon/panopticon/pkg/tracker"
	"github.com/eltmon/panopticon/pkg/vcs"
)

func fakeTmuxDriver(t *testing.T, script string) *tmux.Driver {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tmux script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "tmux")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return tmux.New(path)
}

// idleTmuxScript reports no live sessions for has-session but succeeds for
// every other verb, so specialists always wake immediately.
const idleTmuxScript = `
case "$1" in
  has-session) exit 1 ;;
  *) exit 0 ;;
esac
`

func newTestController(t *testing.T, tmuxScript string) *Controller {
	t.Helper()
	driver := fakeTmuxDriver(t, tmuxScript)
	reg, err := specialist.New(t.TempDir(), driver, lock.New(), nil, []string{"review-agent", "test-agent", "merge-agent"})
	require.NoError(t, err)
	store, err := NewStore(filepath.Join(t.TempDir(), "review-status.json"))
	require.NoError(t, err)

	launch := func(name, token string) (string, error) { return "claude --resume " + token, nil }
	return New(store, reg, driver, tracker.Noop{}, vcs.Noop{}, launch, nil, 3)
}

// Scenario 1 (spec.md §8): happy path through review -> test -> merge.
func TestHappyPathThroughMerge(t *testing.T) {
	c := newTestController(t, idleTmuxScript)
	ctx := context.Background()

	outcome, err := c.StartReview(ctx, "PAN-100", "/tmp/ws", "feature/pan-100")
	require.NoError(t, err)
	assert.Equal(t, "woke", outcome)

	rs, err := c.Store.Get("PAN-100")
	require.NoError(t, err)
	assert.Equal(t, ReviewReviewing, rs.ReviewStatus)

	require.NoError(t, c.ReportStatus(ctx, "review", "PAN-100", "passed", ""))
	rs, err = c.Store.Get("PAN-100")
	require.NoError(t, err)
	assert.Equal(t, ReviewPassed, rs.ReviewStatus)

	require.NoError(t, c.ReportStatus(ctx, "test", "PAN-100", "passed", ""))
	rs, err = c.Store.Get("PAN-100")
	require.NoError(t, err)
	assert.Equal(t, TestPassed, rs.TestStatus)
	assert.True(t, rs.ReadyForMerge())

	require.NoError(t, c.ReportStatus(ctx, "merge", "PAN-100", "passed", ""))
	rs, err = c.Store.Get("PAN-100")
	require.NoError(t, err)
	assert.Equal(t, MergeMerged, rs.MergeStatus)
	assert.False(t, rs.ReadyForMerge())
}

// Scenario 2 (spec.md §8): review blocked with feedback delivered to the
// worker, then a second review attempt is refused.
func TestReviewBlockedDeliversFeedbackAndRefusesRestart(t *testing.T) {
	c := newTestController(t, idleTmuxScript)
	ctx := context.Background()

	_, err := c.StartReview(ctx, "PAN-100", "/tmp/ws", "feature/pan-100")
	require.NoError(t, err)

	require.NoError(t, c.ReportStatus(ctx, "review", "PAN-100", "failed", "fix X"))
	rs, err := c.Store.Get("PAN-100")
	require.NoError(t, err)
	assert.Equal(t, ReviewFailed, rs.ReviewStatus)
	assert.Equal(t, "fix X", rs.ReviewNotes)

	_, err = c.StartReview(ctx, "PAN-100", "/tmp/ws", "feature/pan-100")
	require.Error(t, err)
}

// Scenario 3-equivalent: repeated test failures trip the circuit breaker
// at autoRequeueCount==3 (I5), halting further auto-requeue.
func TestRepeatedTestFailuresHaltAtThreeRequeues(t *testing.T) {
	c := newTestController(t, idleTmuxScript)
	ctx := context.Background()

	_, err := c.StartReview(ctx, "PAN-100", "/tmp/ws", "feature/pan-100")
	require.NoError(t, err)
	require.NoError(t, c.ReportStatus(ctx, "review", "PAN-100", "passed", ""))

	for i := 0; i < 3; i++ {
		require.NoError(t, c.ReportStatus(ctx, "test", "PAN-100", "failed", "flaky"))
	}
	rs, err := c.Store.Get("PAN-100")
	require.NoError(t, err)
	assert.Equal(t, 3, rs.AutoRequeueCount)

	// a fourth failure must not panic or exceed the bound
	require.NoError(t, c.ReportStatus(ctx, "test", "PAN-100", "failed", "flaky"))
	rs, err = c.Store.Get("PAN-100")
	require.NoError(t, err)
	assert.Equal(t, 3, rs.AutoRequeueCount)
}

// I4: human-initiated review resets autoRequeueCount to 0.
func TestHumanInitiatedReviewResetsAutoRequeueCount(t *testing.T) {
	c := newTestController(t, idleTmuxScript)
	ctx := context.Background()

	_, err := c.StartReview(ctx, "PAN-100", "/tmp/ws", "feature/pan-100")
	require.NoError(t, err)
	require.NoError(t, c.ReportStatus(ctx, "review", "PAN-100", "passed", ""))
	require.NoError(t, c.ReportStatus(ctx, "test", "PAN-100", "failed", "flaky"))

	rs, err := c.Store.Get("PAN-100")
	require.NoError(t, err)
	require.Equal(t, 1, rs.AutoRequeueCount)

	// address the feedback and clear notes so StartReview doesn't refuse
	_, err = c.Store.Mutate("PAN-100", func(rs *ReviewStatus) { rs.ReviewNotes = "" })
	require.NoError(t, err)

	_, err = c.StartReview(ctx, "PAN-100", "/tmp/ws", "feature/pan-100")
	require.NoError(t, err)

	rs, err = c.Store.Get("PAN-100")
	require.NoError(t, err)
	assert.Equal(t, 0, rs.AutoRequeueCount)
}

func TestReportStatusUnknownSpecialistErrors(t *testing.T) {
	c := newTestController(t, idleTmuxScript)
	err := c.ReportStatus(context.Background(), "bogus", "PAN-1", "passed", "")
	assert.Error(t, err)
}

func TestApproveRefusesWhenNotReadyForMerge(t *testing.T) {
	c := newTestController(t, idleTmuxScript)
	_, err := c.Approve(context.Background(), "PAN-100", "/tmp/ws", "feature/pan-100")
	require.Error(t, err)
}

func TestApproveWakesMergeAgentWhenReady(t *testing.T) {
	c := newTestController(t, idleTmuxScript)
	ctx := context.Background()

	_, err := c.StartReview(ctx, "PAN-100", "/tmp/ws", "feature/pan-100")
	require.NoError(t, err)
	require.NoError(t, c.ReportStatus(ctx, "review", "PAN-100", "passed", ""))
	require.NoError(t, c.ReportStatus(ctx, "test", "PAN-100", "passed", ""))

	outcome, err := c.Approve(ctx, "PAN-100", "/tmp/ws", "feature/pan-100")
	require.NoError(t, err)
	assert.Equal(t, "woke", outcome)

	rs, err := c.Store.Get("PAN-100")
	require.NoError(t, err)
	assert.Equal(t, MergeMerging, rs.MergeStatus)
}
