package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/eltmon/panopticon/pkg/config"
	"github.com/eltmon/panopticon/pkg/specialist"
)

func workItemToResponse(w *specialist.WorkItem) WorkItemResponse {
	return WorkItemResponse{
		ID: w.ID, Kind: w.Kind, Priority: w.Priority.String(), Source: w.Source,
		IssueID: w.IssueID, Workspace: w.Workspace, Branch: w.Branch,
		CustomPrompt: w.CustomPrompt, CreatedAt: w.CreatedAt, ExpiresAt: w.ExpiresAt,
	}
}

func (s *Server) launcherFor(name string) func(token string) (string, error) {
	return func(token string) (string, error) { return s.launch(name, token) }
}

// listSpecialistsHandler handles GET /specialists.
func (s *Server) listSpecialistsHandler(c *echo.Context) error {
	out := make([]SpecialistResponse, 0, len(config.SpecialistNames))
	for _, name := range config.SpecialistNames {
		runtimeState, err := s.specialists.RuntimeState(name)
		if err != nil {
			return mapError(err)
		}
		currentIssue, err := s.specialists.CurrentIssue(name)
		if err != nil {
			return mapError(err)
		}
		items, err := s.specialists.List(name)
		if err != nil {
			return mapError(err)
		}
		out = append(out, SpecialistResponse{
			Name: name, RuntimeState: runtimeState, CurrentIssue: currentIssue, QueueDepth: len(items),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// wakeSpecialistHandler handles POST /specialists/:name/wake.
func (s *Server) wakeSpecialistHandler(c *echo.Context) error {
	name := c.Param("name")
	if err := s.specialists.WakeNext(c.Request().Context(), name, s.launcherFor(name)); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "woke"})
}

// resetSpecialistHandler handles POST /specialists/:name/reset.
func (s *Server) resetSpecialistHandler(c *echo.Context) error {
	name := c.Param("name")
	if err := s.specialists.Reset(c.Request().Context(), name); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "reset"})
}

// resetAllSpecialistsHandler handles POST /specialists/reset-all.
func (s *Server) resetAllSpecialistsHandler(c *echo.Context) error {
	for _, name := range config.SpecialistNames {
		if err := s.specialists.Reset(c.Request().Context(), name); err != nil {
			return mapError(err)
		}
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "reset"})
}

// initSpecialistHandler handles POST /specialists/:name/init.
func (s *Server) initSpecialistHandler(c *echo.Context) error {
	name := c.Param("name")
	if err := s.specialists.Init(c.Request().Context(), name, s.launcherFor(name)); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "initialized"})
}

// listQueueHandler handles GET /specialists/:name/queue.
func (s *Server) listQueueHandler(c *echo.Context) error {
	name := c.Param("name")
	items, err := s.specialists.List(name)
	if err != nil {
		return mapError(err)
	}
	out := make([]WorkItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, workItemToResponse(item))
	}
	return c.JSON(http.StatusOK, out)
}

// enqueueHandler handles POST /specialists/:name/queue.
func (s *Server) enqueueHandler(c *echo.Context) error {
	name := c.Param("name")
	var req QueueItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	kind := req.Kind
	if kind == "" {
		kind = "task"
	}
	item := &specialist.WorkItem{
		ID:           req.IssueID + "-" + kind,
		Kind:         kind,
		Priority:     specialist.ParsePriority(req.Priority),
		Source:       req.Source,
		IssueID:      req.IssueID,
		Workspace:    req.Workspace,
		Branch:       req.Branch,
		CustomPrompt: req.CustomPrompt,
	}
	if err := s.specialists.Enqueue(name, item); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, workItemToResponse(item))
}

// dequeueItemHandler handles DELETE /specialists/:name/queue/:id.
func (s *Server) dequeueItemHandler(c *echo.Context) error {
	name := c.Param("name")
	id := c.Param("id")
	item, err := s.specialists.Remove(name, id)
	if err != nil {
		return mapError(err)
	}
	if item == nil {
		return echo.NewHTTPError(http.StatusNotFound, "work item not found")
	}
	return c.JSON(http.StatusOK, workItemToResponse(item))
}

// reorderQueueHandler handles PUT /specialists/:name/queue/reorder.
func (s *Server) reorderQueueHandler(c *echo.Context) error {
	name := c.Param("name")
	var req ReorderQueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.specialists.Reorder(name, req.IDs); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "reordered"})
}

// specialistDoneHandler handles POST /specialists/done, the
// completion-report endpoint a specialist session calls on finishing
// review, test, or merge work (spec.md §4.6).
func (s *Server) specialistDoneHandler(c *echo.Context) error {
	var req SpecialistDoneRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.pipeline.ReportStatus(c.Request().Context(), req.Specialist, req.IssueID, req.Status, req.Notes); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "recorded"})
}
