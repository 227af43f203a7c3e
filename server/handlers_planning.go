package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/task"
)

// Project lifecycle.

type createQueryRequest struct {
	Query string `json:"query" binding:"required"`
}

func (s *Server) createQuery(c *gin.Context) {
	var req createQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, framework.Validationf("query is required"))
		return
	}
	t, err := s.Pipeline.CreateTask(req.Query)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) listQueries(c *gin.Context) {
	metas, err := s.Store.ListProjects()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, metas)
}

func (s *Server) getQuery(c *gin.Context) {
	t, err := s.Store.LoadTask(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if t == nil {
		s.writeError(c, framework.NotFoundf("project %s has no task yet", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) deleteQuery(c *gin.Context) {
	deleted, err := s.Store.DeleteProject(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !deleted {
		s.writeError(c, framework.NotFoundf("project %s not found", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Planning phases.

type contextQuestionsRequest struct {
	Answers map[string]string `json:"answers"`
	Force   bool              `json:"force"`
}

func (s *Server) contextQuestions(c *gin.Context) {
	var req contextQuestionsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, framework.Validationf("malformed body: %v", err))
			return
		}
	}
	res, err := s.Pipeline.GatherContext(c.Request.Context(), c.Param("id"), req.Answers, req.Force)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type editContextRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

func (s *Server) editContext(c *gin.Context) {
	var req editContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, framework.Validationf("feedback is required"))
		return
	}
	t, err := s.Pipeline.EditContext(c.Request.Context(), c.Param("id"), req.Feedback)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) formulateQuestions(c *gin.Context) {
	dim := c.Param("dimension")
	if !task.ValidDimension(dim) {
		s.writeError(c, framework.Validationf("unknown scope dimension %q", dim))
		return
	}
	questions, err := s.Pipeline.FormulateQuestions(c.Request.Context(), c.Param("id"), task.ScopeDimension(dim))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dimension": dim, "questions": questions})
}

type submitDimensionRequest struct {
	Answers []task.ScopeAnswer `json:"answers" binding:"required"`
}

func (s *Server) submitDimension(c *gin.Context) {
	dim := c.Param("dimension")
	if !task.ValidDimension(dim) {
		s.writeError(c, framework.Validationf("unknown scope dimension %q", dim))
		return
	}
	var req submitDimensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, framework.Validationf("answers are required"))
		return
	}
	t, err := s.Pipeline.SubmitDimension(c.Request.Context(), c.Param("id"), task.ScopeDimension(dim), req.Answers)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dimension": dim, "state": t.State})
}

func (s *Server) draftScope(c *gin.Context) {
	t, err := s.Pipeline.GenerateDraftScope(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.Scope)
}

type validateScopeRequest struct {
	IsApproved bool   `json:"isApproved"`
	Feedback   string `json:"feedback"`
}

func (s *Server) validateScope(c *gin.Context) {
	var req validateScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, framework.Validationf("malformed body: %v", err))
		return
	}
	t, changes, err := s.Pipeline.ApproveScope(c.Request.Context(), c.Param("id"), req.IsApproved, req.Feedback)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope": t.Scope, "changes": changes, "state": t.State})
}

func (s *Server) generateIFR(c *gin.Context) {
	t, err := s.Pipeline.GenerateIFR(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.IFR)
}

func (s *Server) defineRequirements(c *gin.Context) {
	t, err := s.Pipeline.DefineRequirements(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.Requirements)
}

func (s *Server) generateNetworkPlan(c *gin.Context) {
	force := c.Query("force") == "true"
	t, err := s.Pipeline.GenerateNetworkPlan(c.Request.Context(), c.Param("id"), force)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.NetworkPlan)
}

func (s *Server) generateWorkPackages(c *gin.Context) {
	t, err := s.Pipeline.GenerateWorkForAllStages(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t.NetworkPlan)
}
