package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/task"
)

// loadSubtask resolves project and subtask for the status endpoints. The
// caller must hold the project lock when mutating.
func (s *Server) loadSubtask(projectID, ref string) (*task.Task, *task.Subtask, error) {
	t, err := s.Store.LoadTask(projectID)
	if err != nil {
		return nil, nil, err
	}
	if t == nil {
		return nil, nil, framework.NotFoundf("project %s has no task yet", projectID)
	}
	st, err := t.ResolveSubtask(ref)
	if err != nil {
		// Fall back to ID-only search for bare references.
		if found := t.FindSubtask(ref); found != nil {
			return t, found, nil
		}
		return nil, nil, err
	}
	return t, st, nil
}

type subtaskStatusRequest struct {
	Status       string     `json:"status" binding:"required"`
	Result       string     `json:"result"`
	ErrorMessage string     `json:"error_message"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

func (s *Server) putSubtaskStatus(c *gin.Context) {
	var req subtaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, framework.Validationf("status is required"))
		return
	}
	if !task.ValidStatus(req.Status) {
		s.writeError(c, framework.Validationf("unknown status %q", req.Status))
		return
	}
	projectID := c.Param("id")
	lock := s.Store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, st, err := s.loadSubtask(projectID, c.Param("ref"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	st.ApplyStatus(task.Status(req.Status), req.Result, req.ErrorMessage, req.StartedAt, req.CompletedAt)
	t.SyncLifecycle()
	if err := s.Store.SaveTask(projectID, t); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) getSubtaskStatus(c *gin.Context) {
	_, st, err := s.loadSubtask(c.Param("id"), c.Param("ref"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type completeSubtaskRequest struct {
	Result string `json:"result"`
}

func (s *Server) completeSubtask(c *gin.Context) {
	var req completeSubtaskRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, framework.Validationf("malformed body: %v", err))
			return
		}
	}
	projectID := c.Param("id")
	lock := s.Store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, st, err := s.loadSubtask(projectID, c.Param("ref"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	st.Complete(req.Result)
	t.SyncLifecycle()
	if err := s.Store.SaveTask(projectID, t); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type failSubtaskRequest struct {
	ErrorMessage string `json:"error_message" binding:"required"`
}

func (s *Server) failSubtask(c *gin.Context) {
	var req failSubtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, framework.Validationf("error_message is required"))
		return
	}
	projectID := c.Param("id")
	lock := s.Store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, st, err := s.loadSubtask(projectID, c.Param("ref"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	st.Fail(req.ErrorMessage)
	if err := s.Store.SaveTask(projectID, t); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) executeSubtask(c *gin.Context) {
	projectID := c.Param("id")
	session := c.Query("session_id")
	if session == "" {
		session = "default"
	}
	tr := s.Trackers.Obtain(projectID, session)
	flow, err := s.Engine.ExecuteTask(c.Request.Context(), projectID, c.Param("ref"), tr)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}
