package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/eltmon/panopticon/pkg/health"
	"github.com/eltmon/panopticon/pkg/store"
)

func agentToResponse(rec *store.AgentRecord, status health.Status, hasPending bool) AgentResponse {
	return AgentResponse{
		AgentID:            rec.State.AgentID,
		IssueID:            rec.State.IssueID,
		Workspace:          rec.State.Workspace,
		RuntimeKind:        rec.State.RuntimeKind,
		DeclaredModel:      rec.State.DeclaredModel,
		Health:             string(status),
		RuntimeState:       rec.Runtime.State,
		StartedAt:          rec.State.StartedAt,
		UpdatedAt:          rec.State.UpdatedAt,
		KillCount:          rec.State.KillCount,
		HasPendingQuestion: hasPending,
	}
}

// hasPendingQuestions reports whether workspace's active transcript holds
// an unanswered question, tolerating a broker that was never wired (e.g.
// in unit tests exercising only the store-backed endpoints).
func (s *Server) hasPendingQuestions(workspace string) bool {
	if s.questions == nil || workspace == "" {
		return false
	}
	pending, err := s.questions.Pending(workspace)
	return err == nil && len(pending) > 0
}

// listAgentsHandler handles GET /agents.
func (s *Server) listAgentsHandler(c *echo.Context) error {
	ids, err := s.store.List()
	if err != nil {
		return mapError(err)
	}
	out := make([]AgentResponse, 0, len(ids))
	for _, id := range ids {
		rec, err := s.store.Load(id)
		if err != nil {
			continue
		}
		var status health.Status
		if s.patrolLoop != nil {
			status, _ = s.patrolLoop.LastStatus(id)
		}
		out = append(out, agentToResponse(rec, status, s.hasPendingQuestions(rec.State.Workspace)))
	}
	return c.JSON(http.StatusOK, out)
}

// launchCommandFor builds the shell command that starts a worker agent's
// interactive CLI session, e.g. "claude --model opus". An empty
// runtimeKind defaults to "claude" (spec.md §3's reference runtime).
func launchCommandFor(runtimeKind, model string) string {
	if runtimeKind == "" {
		runtimeKind = "claude"
	}
	if model == "" {
		return runtimeKind
	}
	return runtimeKind + " --model " + model
}

// spawnAgentHandler handles POST /agents.
func (s *Server) spawnAgentHandler(c *echo.Context) error {
	var req SpawnAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec, err := s.workers.Spawn(c.Request().Context(), req.IssueID, req.Workspace, req.RuntimeKind, req.Model,
		launchCommandFor(req.RuntimeKind, req.Model))
	if err != nil {
		return mapError(err)
	}

	var status health.Status
	if s.patrolLoop != nil {
		status, _ = s.patrolLoop.LastStatus(rec.State.AgentID)
	}
	return c.JSON(http.StatusCreated, agentToResponse(rec, status, false))
}

// killAgentHandler handles DELETE /agents/:id.
func (s *Server) killAgentHandler(c *echo.Context) error {
	id := c.Param("id")
	if err := s.workers.Kill(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "killed"})
}

// messageAgentHandler handles POST /agents/:id/message.
func (s *Server) messageAgentHandler(c *echo.Context) error {
	id := c.Param("id")
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.workers.SendMessage(c.Request().Context(), id, req.Message); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "sent"})
}

// pokeAgentHandler handles POST /agents/:id/poke.
func (s *Server) pokeAgentHandler(c *echo.Context) error {
	id := c.Param("id")
	var req PokeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.workers.Poke(c.Request().Context(), id, req.Message); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "poked"})
}

// resumeAgentHandler handles POST /agents/:id/resume.
func (s *Server) resumeAgentHandler(c *echo.Context) error {
	id := c.Param("id")
	var req ResumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := s.workers.Resume(c.Request().Context(), id, req.Message, func(token string) (string, error) {
		return s.launch(id, token)
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "resumed"})
}

// suspendAgentHandler handles POST /agents/:id/suspend.
func (s *Server) suspendAgentHandler(c *echo.Context) error {
	id := c.Param("id")
	var req SuspendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.workers.Suspend(c.Request().Context(), id, req.SessionID); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "suspended"})
}

// handoffAgentHandler handles POST /agents/:id/handoff.
func (s *Server) handoffAgentHandler(c *echo.Context) error {
	id := c.Param("id")
	var req HandoffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ev, err := s.workers.Handoff(c.Request().Context(), id, req.ToModel, req.Reason, func(token string) (string, error) {
		return s.launch(id, token)
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &HandoffResponse{
		ID: ev.ID, FromAgent: ev.FromAgent, ToAgent: ev.ToAgent,
		ToModel: ev.ToModel, Reason: ev.Reason, OccurredAt: ev.OccurredAt,
	})
}

// pendingQuestionsHandler handles GET /agents/:id/pending-questions.
func (s *Server) pendingQuestionsHandler(c *echo.Context) error {
	id := c.Param("id")
	rec, err := s.store.Load(id)
	if err != nil {
		return mapError(err)
	}
	groups, err := s.questions.Pending(rec.State.Workspace)
	if err != nil {
		return mapError(err)
	}

	out := PendingQuestionsResponse{AgentID: id}
	for _, g := range groups {
		group := PendingQuestionGroup{ToolID: g.ToolID, Timestamp: g.Timestamp}
		for _, q := range g.Questions {
			item := PendingQuestionItem{Prompt: q.Prompt, MultiSelect: q.MultiSelect}
			for _, opt := range q.Options {
				item.Options = append(item.Options, QuestionOptionDTO{Label: opt.Label, Description: opt.Description})
			}
			group.Questions = append(group.Questions, item)
		}
		out.Questions = append(out.Questions, group)
	}
	return c.JSON(http.StatusOK, out)
}

// answerQuestionHandler handles POST /agents/:id/answer-question.
func (s *Server) answerQuestionHandler(c *echo.Context) error {
	id := c.Param("id")
	var req AnswerQuestionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rec, err := s.store.Load(id)
	if err != nil {
		return mapError(err)
	}
	groups, err := s.questions.Pending(rec.State.Workspace)
	if err != nil {
		return mapError(err)
	}
	if len(groups) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no pending question")
	}
	latest := groups[len(groups)-1]

	if err := s.questions.Answer(c.Request().Context(), id, latest.Questions, req.Answers); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "answered"})
}

// agentActivityHandler handles GET /agents/:id/activity?limit=N.
func (s *Server) agentActivityHandler(c *echo.Context) error {
	id := c.Param("id")
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	entries, err := s.store.ReadActivity(id, limit)
	if err != nil {
		return mapError(err)
	}
	out := ActivityResponse{AgentID: id}
	for _, e := range entries {
		out.Entries = append(out.Entries, ActivityItem{
			Timestamp: e.Timestamp, Kind: e.Kind, Detail: e.Detail, Fields: e.Fields,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// heartbeatHandler handles POST /agents/:id/heartbeat, the hook sink a
// worker agent's own tool-invocation hooks post to on every boundary
// (spec.md §6 hook contract).
func (s *Server) heartbeatHandler(c *echo.Context) error {
	id := c.Param("id")
	var req HeartbeatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	err := s.store.MergeRuntime(id, func(r *store.RuntimeRecord) {
		if req.State != "" {
			r.State = req.State
		}
		if req.Tool != "" {
			r.CurrentTool = req.Tool
		}
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &OperationResponse{Status: "ok"})
}
