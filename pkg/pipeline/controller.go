// Package pipeline is the Pipeline Controller (C6, spec.md §4.6): owns
// the per-issue ReviewStatus record and drives it through
// review → test → merge, with auto-requeue bounded by a circuit breaker
// and best-effort auto-feedback delivery to the worker agent.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eltmon/panopticon/pkg/events"
	"github.com/eltmon/panopticon/pkg/metrics"
	"github.com/eltmon/panopticon/pkg/perr"
	"github.com/eltmon/panopticon/pkg/specialist"
	"github.com/eltmon/panopticon/pkg/tmux"
	"github.com/eltmon/panopticon/pkg/tracker"
	"github.com/eltmon/panopticon/pkg/vcs"
)

// Launcher builds the shell command used to wake or resume a specialist
// session, given its persisted session token. Supplied by cmd/panopticon
// wiring, since the exact command depends on configured specialist binaries.
type Launcher func(specialistName, token string) (string, error)

// Controller wires the Specialist Registry, Session Driver, and the
// tracker/vcs collaborators into the review/test/merge state machine.
type Controller struct {
	Store       *Store
	Specialists *specialist.Registry
	Tmux        *tmux.Driver
	Tracker     tracker.Tracker
	VCS         vcs.Pusher
	Launch      Launcher
	Log         *slog.Logger
	Events      *events.Publisher // optional; nil disables dashboard event emission

	breakers *breakers
}

// emit publishes a pipeline.status_changed event, best-effort. A nil
// Events publisher (e.g. in tests) is a silent no-op.
func (c *Controller) emit(issueID, stage, status, notes string, readyForMerge bool) {
	if c.Events == nil {
		return
	}
	if err := c.Events.PublishPipelineStatusChanged(issueID, stage, status, notes, readyForMerge); err != nil {
		c.Log.Warn("publish pipeline status event failed", "issueId", issueID, "stage", stage, "err", err)
	}
}

// New constructs a Controller. circuitBreakerMax is the autoRequeueCount
// bound (spec.md I5, default 3).
func New(store *Store, specialists *specialist.Registry, tmuxDriver *tmux.Driver, trk tracker.Tracker, pusher vcs.Pusher, launch Launcher, logger *slog.Logger, circuitBreakerMax int) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		Store: store, Specialists: specialists, Tmux: tmuxDriver,
		Tracker: trk, VCS: pusher, Launch: launch, Log: logger,
		breakers: newBreakers(circuitBreakerMax),
	}
}

// WithEvents attaches a dashboard event publisher, returning c for chaining.
func (c *Controller) WithEvents(pub *events.Publisher) *Controller {
	c.Events = pub
	return c
}

// workerSession is the worker agent's tmux session name for issueID
// (spec.md §3: "Identity: agent-<issue-id-lower>").
func workerSession(issueID string) string {
	return "agent-" + strings.ToLower(issueID)
}

// StartReview begins a human-initiated review (spec.md §4.6). Returns
// "woke" or "queued" describing whether review-agent started immediately.
func (c *Controller) StartReview(ctx context.Context, issueID, workspace, branch string) (string, error) {
	current, err := c.Store.Get(issueID)
	if err != nil {
		return "", err
	}
	if (current.ReviewStatus == ReviewBlocked || current.ReviewStatus == ReviewFailed) && current.ReviewNotes != "" {
		return "", &perr.AlreadyReviewedNeedsActionError{IssueID: issueID, Notes: current.ReviewNotes}
	}

	// I4: a human-initiated review resets the circuit breaker.
	c.breakers.reset(issueID)

	updated, err := c.Store.Mutate(issueID, func(rs *ReviewStatus) {
		rs.ReviewStatus = ReviewReviewing
		rs.TestStatus = TestPending
		rs.AutoRequeueCount = 0
	})
	if err != nil {
		return "", err
	}
	c.emit(issueID, "review", ReviewReviewing, "", updated.ReadyForMerge())

	if err := c.VCS.Push(ctx, workspace, branch); err != nil {
		c.Log.Warn("push feature branch failed, continuing review", "issueId", issueID, "err", err)
	}

	item := &specialist.WorkItem{
		ID: "review-" + issueID, Kind: "task", Priority: specialist.PriorityNormal,
		Source: "human", IssueID: issueID, Workspace: workspace, Branch: branch,
	}
	woke, err := c.Specialists.WakeOrQueue(ctx, "review-agent", item, c.launcherFor("review-agent"))
	if err != nil {
		return "", err
	}
	if woke {
		return "woke", nil
	}
	return "queued", nil
}

// Approve begins a human-initiated merge once review and test have both
// passed (spec.md §8 scenario 1: "POST /workspaces/:issueId/approve").
// Refuses with NotReadyForMergeError if invariant I3 does not hold.
func (c *Controller) Approve(ctx context.Context, issueID, workspace, branch string) (string, error) {
	current, err := c.Store.Get(issueID)
	if err != nil {
		return "", err
	}
	if !current.ReadyForMerge() {
		return "", &perr.NotReadyForMergeError{IssueID: issueID}
	}

	updated, err := c.Store.Mutate(issueID, func(rs *ReviewStatus) {
		rs.MergeStatus = MergeMerging
	})
	if err != nil {
		return "", err
	}
	c.emit(issueID, "merge", MergeMerging, "", updated.ReadyForMerge())

	item := &specialist.WorkItem{
		ID: "merge-" + issueID, Kind: "task", Priority: specialist.PriorityHigh,
		Source: "human", IssueID: issueID, Workspace: workspace, Branch: branch,
	}
	woke, err := c.Specialists.WakeOrQueue(ctx, "merge-agent", item, c.launcherFor("merge-agent"))
	if err != nil {
		return "", err
	}
	if woke {
		return "woke", nil
	}
	return "queued", nil
}

func (c *Controller) launcherFor(name string) func(token string) (string, error) {
	return func(token string) (string, error) { return c.Launch(name, token) }
}

// ReportStatus implements "Specialist reports review result" (spec.md
// §4.6): it applies the outcome for (specialist, status), delivers
// auto-feedback to the worker, and lets the specialist immediately wake
// its next queued item.
func (c *Controller) ReportStatus(ctx context.Context, specialistName, issueID, status, notes string) error {
	switch specialistName {
	case "review":
		if err := c.reportReview(ctx, issueID, status, notes); err != nil {
			return err
		}
	case "test":
		if err := c.reportTest(ctx, issueID, status, notes); err != nil {
			return err
		}
	case "merge":
		if err := c.reportMerge(ctx, issueID, status); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown specialist: %s", specialistName)
	}

	registryName := specialistName + "-agent"
	return c.Specialists.ReportCompletion(ctx, registryName, issueID, c.launcherFor(registryName))
}

func (c *Controller) reportReview(ctx context.Context, issueID, status, notes string) error {
	switch status {
	case "passed":
		updated, err := c.Store.Mutate(issueID, func(rs *ReviewStatus) {
			rs.ReviewStatus = ReviewPassed
			rs.ReviewNotes = ""
		})
		if err != nil {
			return err
		}
		c.emit(issueID, "review", ReviewPassed, "", updated.ReadyForMerge())
		if err := c.Tracker.SetState(ctx, issueID, "In Review"); err != nil {
			c.Log.Warn("tracker set-state failed", "issueId", issueID, "err", err)
		}
		item := &specialist.WorkItem{ID: "test-" + issueID, Kind: "task", Priority: specialist.PriorityHigh, Source: "pipeline", IssueID: issueID}
		_, err = c.Specialists.WakeOrQueue(ctx, "test-agent", item, c.launcherFor("test-agent"))
		return err
	case "blocked", "failed":
		updated, err := c.Store.Mutate(issueID, func(rs *ReviewStatus) {
			if status == "blocked" {
				rs.ReviewStatus = ReviewBlocked
			} else {
				rs.ReviewStatus = ReviewFailed
			}
			rs.ReviewNotes = notes
		})
		if err != nil {
			return err
		}
		c.emit(issueID, "review", updated.ReviewStatus, notes, updated.ReadyForMerge())
		return c.deliverFeedback(ctx, issueID, "REVIEW", status, notes)
	default:
		return fmt.Errorf("unrecognized review status: %s", status)
	}
}

func (c *Controller) reportTest(ctx context.Context, issueID, status, notes string) error {
	switch status {
	case "passed":
		updated, err := c.Store.Mutate(issueID, func(rs *ReviewStatus) {
			rs.TestStatus = TestPassed
			rs.TestNotes = ""
		})
		if err != nil {
			return err
		}
		c.emit(issueID, "test", TestPassed, "", updated.ReadyForMerge())
		return nil
	case "failed":
		updated, err := c.Store.Mutate(issueID, func(rs *ReviewStatus) {
			rs.TestStatus = TestFailed
			rs.TestNotes = notes
		})
		if err != nil {
			return err
		}
		c.emit(issueID, "test", TestFailed, notes, updated.ReadyForMerge())
		if err := c.deliverFeedback(ctx, issueID, "TEST", status, notes); err != nil {
			c.Log.Warn("feedback delivery failed", "issueId", issueID, "err", err)
		}

		if !c.breakers.tryRequeue(issueID) {
			c.Log.Warn("auto-requeue circuit open, halting pipeline", "issueId", issueID)
			return nil
		}
		if _, err := c.Store.Mutate(issueID, func(rs *ReviewStatus) {
			rs.AutoRequeueCount++
		}); err != nil {
			return err
		}
		metrics.PipelineAutoRequeueTotal.WithLabelValues(issueID).Inc()
		item := &specialist.WorkItem{ID: "review-retry-" + issueID, Kind: "task", Priority: specialist.PriorityNormal, Source: "auto-requeue", IssueID: issueID}
		_, err = c.Specialists.WakeOrQueue(ctx, "review-agent", item, c.launcherFor("review-agent"))
		return err
	default:
		return fmt.Errorf("unrecognized test status: %s", status)
	}
}

func (c *Controller) reportMerge(ctx context.Context, issueID, status string) error {
	switch status {
	case "passed":
		falseVal := false
		updated, err := c.Store.Mutate(issueID, func(rs *ReviewStatus) {
			rs.MergeStatus = MergeMerged
			rs.ReadyForMergeOverride = &falseVal
		})
		if err != nil {
			return err
		}
		c.emit(issueID, "merge", MergeMerged, "", updated.ReadyForMerge())
		return c.Tracker.Close(ctx, issueID)
	case "failed":
		updated, err := c.Store.Mutate(issueID, func(rs *ReviewStatus) {
			rs.MergeStatus = MergeFailed
		})
		if err != nil {
			return err
		}
		c.emit(issueID, "merge", MergeFailed, "", updated.ReadyForMerge())
		return nil
	default:
		return fmt.Errorf("unrecognized merge status: %s", status)
	}
}

// deliverFeedback implements spec.md §4.6's auto-feedback delivery: if the
// worker agent's session is live, format and send the notes; otherwise
// the notes remain only in the persisted ReviewStatus (opportunistic, not
// guaranteed).
func (c *Controller) deliverFeedback(ctx context.Context, issueID, specialistLabel, status, notes string) error {
	session := workerSession(issueID)
	if !c.Tmux.Exists(ctx, session) {
		return nil
	}
	guidance := "Please address the feedback above and update the branch; a new review will be requested."
	text := fmt.Sprintf("%s %s for %s:\n\n%s\n\n%s", specialistLabel, strings.ToUpper(status), issueID, notes, guidance)
	if err := c.Tmux.Send(ctx, session, text); err != nil {
		return err
	}
	return c.Tmux.SendEnter(ctx, session)
}
