// Package server exposes the HTTP facade: project lifecycle, the planning
// endpoints, chat with SSE streaming, and subtask status management.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lexcodex/planform/agents"
	"github.com/lexcodex/planform/execution"
	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/persistence"
	"github.com/lexcodex/planform/planning"
	"github.com/lexcodex/planform/store"
	"github.com/lexcodex/planform/tracker"
	"github.com/lexcodex/planform/workspace"
)

// Server bundles every component behind the HTTP facade.
type Server struct {
	Store      *store.Store
	Pipeline   *planning.Pipeline
	Engine     *execution.Engine
	Router     *agents.Router
	Trackers   *tracker.Registry
	Messages   persistence.MessageStore
	Workspaces *workspace.Manager
	Log        *zap.Logger
}

// NewServer wires the facade. A nil logger falls back to a no-op.
func NewServer(s *store.Store, p *planning.Pipeline, e *execution.Engine, r *agents.Router,
	trackers *tracker.Registry, messages persistence.MessageStore, wm *workspace.Manager, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Store:      s,
		Pipeline:   p,
		Engine:     e,
		Router:     r,
		Trackers:   trackers,
		Messages:   messages,
		Workspaces: wm,
		Log:        log.Named("http"),
	}
}

// Routes builds the gin engine with every endpoint mounted.
func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	r.POST("/user-queries", s.createQuery)
	r.GET("/user-queries", s.listQueries)
	r.GET("/user-queries/:id", s.getQuery)
	r.DELETE("/user-queries/:id", s.deleteQuery)

	tasks := r.Group("/tasks/:id")
	{
		tasks.POST("/context-questions", s.contextQuestions)
		tasks.POST("/edit-context", s.editContext)
		tasks.GET("/formulate/:dimension", s.formulateQuestions)
		tasks.POST("/formulate/:dimension", s.submitDimension)
		tasks.GET("/draft-scope", s.draftScope)
		tasks.POST("/validate-scope", s.validateScope)
		tasks.POST("/ifr", s.generateIFR)
		tasks.POST("/requirements", s.defineRequirements)
		tasks.POST("/network-plan", s.generateNetworkPlan)
		tasks.POST("/work-packages", s.generateWorkPackages)

		tasks.POST("/chat", s.chat)
		tasks.POST("/chat/stream", s.chatStream)
		tasks.POST("/chat/reset", s.chatReset)
		tasks.GET("/trace", s.trace)

		tasks.PUT("/subtasks/:ref/status", s.putSubtaskStatus)
		tasks.GET("/subtasks/:ref/status", s.getSubtaskStatus)
		tasks.POST("/subtasks/:ref/complete", s.completeSubtask)
		tasks.POST("/subtasks/:ref/fail", s.failSubtask)
		tasks.POST("/subtasks/:ref/execute", s.executeSubtask)
	}
	return r
}

// Serve runs until the context is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.Log.Info("listening", zap.String("addr", addr))
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// writeError maps the platform's error kinds onto HTTP statuses with the
// {detail} body every endpoint shares.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch framework.KindOf(err) {
	case framework.KindNotFound:
		status = http.StatusNotFound
	case framework.KindInvalidState, framework.KindValidation, framework.KindMissingComponent:
		status = http.StatusBadRequest
	case framework.KindSandboxViolation, framework.KindDependency:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"detail": err.Error()})
}
