// Package api provides the engine's HTTP surface (spec.md §6): agent
// lifecycle, specialist queue management, the review/test/merge pipeline,
// and the dashboard websocket event stream.
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/eltmon/panopticon/pkg/config"
	"github.com/eltmon/panopticon/pkg/events"
	"github.com/eltmon/panopticon/pkg/journal"
	"github.com/eltmon/panopticon/pkg/lock"
	"github.com/eltmon/panopticon/pkg/metrics"
	"github.com/eltmon/panopticon/pkg/patrol"
	"github.com/eltmon/panopticon/pkg/pipeline"
	"github.com/eltmon/panopticon/pkg/question"
	"github.com/eltmon/panopticon/pkg/specialist"
	"github.com/eltmon/panopticon/pkg/store"
	"github.com/eltmon/panopticon/pkg/worker"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg         *config.Config
	store       *store.Store
	workers     *worker.Supervisor
	specialists *specialist.Registry
	pipeline    *pipeline.Controller
	patrolLoop  *patrol.Patrol
	questions   *question.Broker
	journal     *journal.Journal
	lock        *lock.Lock
	connManager *events.ConnectionManager

	// launch builds the shell command used to wake or resume a specialist
	// session directly from an API call (outside the pipeline's own
	// review/test/merge transitions, which use pipeline.Controller.Launch).
	launch func(specialistName, token string) (string, error)
}

// NewServer creates a new API server with Echo v5, wiring every engine
// component that a route handler needs.
func NewServer(
	cfg *config.Config,
	s *store.Store,
	workers *worker.Supervisor,
	specialists *specialist.Registry,
	pipelineController *pipeline.Controller,
	patrolLoop *patrol.Patrol,
	questions *question.Broker,
	jrnl *journal.Journal,
	gmLock *lock.Lock,
	connManager *events.ConnectionManager,
	launch func(specialistName, token string) (string, error),
) *Server {
	e := echo.New()

	srv := &Server{
		echo:        e,
		cfg:         cfg,
		store:       s,
		workers:     workers,
		specialists: specialists,
		pipeline:    pipelineController,
		patrolLoop:  patrolLoop,
		questions:   questions,
		journal:     jrnl,
		lock:        gmLock,
		connManager: connManager,
		launch:      launch,
	}

	srv.setupRoutes()
	return srv
}

// setupRoutes registers all API routes (spec.md §6).
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/healthz", s.healthHandler)
	s.echo.GET("/version", s.versionHandler)
	s.echo.GET("/metrics", func(c *echo.Context) error {
		metrics.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})

	agents := s.echo.Group("/agents")
	agents.GET("", s.listAgentsHandler)
	agents.POST("", s.spawnAgentHandler)
	agents.DELETE("/:id", s.killAgentHandler)
	agents.POST("/:id/message", s.messageAgentHandler)
	agents.POST("/:id/poke", s.pokeAgentHandler)
	agents.POST("/:id/resume", s.resumeAgentHandler)
	agents.POST("/:id/suspend", s.suspendAgentHandler)
	agents.POST("/:id/handoff", s.handoffAgentHandler)
	agents.GET("/:id/pending-questions", s.pendingQuestionsHandler)
	agents.POST("/:id/answer-question", s.answerQuestionHandler)
	agents.GET("/:id/activity", s.agentActivityHandler)
	agents.POST("/:id/heartbeat", s.heartbeatHandler)

	specialists := s.echo.Group("/specialists")
	specialists.GET("", s.listSpecialistsHandler)
	specialists.POST("/reset-all", s.resetAllSpecialistsHandler)
	specialists.POST("/done", s.specialistDoneHandler)
	specialists.POST("/:name/wake", s.wakeSpecialistHandler)
	specialists.POST("/:name/reset", s.resetSpecialistHandler)
	specialists.POST("/:name/init", s.initSpecialistHandler)
	specialists.GET("/:name/queue", s.listQueueHandler)
	specialists.POST("/:name/queue", s.enqueueHandler)
	specialists.DELETE("/:name/queue/:id", s.dequeueItemHandler)
	specialists.PUT("/:name/queue/reorder", s.reorderQueueHandler)

	workspaces := s.echo.Group("/workspaces")
	workspaces.GET("/:issueId/review-status", s.getReviewStatusHandler)
	workspaces.POST("/:issueId/review-status", s.postReviewStatusHandler)
	workspaces.POST("/:issueId/review", s.startReviewHandler)
	workspaces.POST("/:issueId/approve", s.approveHandler)

	s.echo.GET("/ws", s.wsHandler)
}

// Start starts the HTTP server on the given address and blocks until the
// server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
