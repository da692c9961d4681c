package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/eltmon/panopticon/pkg/pipeline"
)

func reviewStatusToResponse(rs pipeline.ReviewStatus) ReviewStatusResponse {
	return ReviewStatusResponse{
		IssueID:          rs.IssueID,
		ReviewStatus:     rs.ReviewStatus,
		TestStatus:       rs.TestStatus,
		MergeStatus:      rs.MergeStatus,
		ReviewNotes:      rs.ReviewNotes,
		TestNotes:        rs.TestNotes,
		AutoRequeueCount: rs.AutoRequeueCount,
		ReadyForMerge:    rs.ReadyForMerge(),
		UpdatedAt:        rs.UpdatedAt,
	}
}

// getReviewStatusHandler handles GET /workspaces/:issueId/review-status.
func (s *Server) getReviewStatusHandler(c *echo.Context) error {
	issueID := c.Param("issueId")
	rs, err := s.pipeline.Store.Get(issueID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, reviewStatusToResponse(rs))
}

// postReviewStatusHandler handles POST /workspaces/:issueId/review-status,
// an operator-facing override of readyForMerge (spec.md I3: "unless
// explicitly overridden by an update carrying readyForMerge").
func (s *Server) postReviewStatusHandler(c *echo.Context) error {
	issueID := c.Param("issueId")
	var req struct {
		ReadyForMerge *bool `json:"readyForMerge"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	updated, err := s.pipeline.Store.Mutate(issueID, func(rs *pipeline.ReviewStatus) {
		rs.ReadyForMergeOverride = req.ReadyForMerge
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, reviewStatusToResponse(updated))
}

// startReviewHandler handles POST /workspaces/:issueId/review, the
// human-initiated review request that resets the auto-requeue circuit
// breaker (spec.md I4).
func (s *Server) startReviewHandler(c *echo.Context) error {
	issueID := c.Param("issueId")
	var req StartReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	outcome, err := s.pipeline.StartReview(c.Request().Context(), issueID, req.Workspace, req.Branch)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: outcome})
}

// approveHandler handles POST /workspaces/:issueId/approve, the
// human-initiated merge approval gated on invariant I3.
func (s *Server) approveHandler(c *echo.Context) error {
	issueID := c.Param("issueId")
	var req ApproveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	outcome, err := s.pipeline.Approve(c.Request().Context(), issueID, req.Workspace, req.Branch)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: outcome})
}
