package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lexcodex/planform/framework"
)

type chatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

func (req *chatRequest) session() string {
	if req.SessionID == "" {
		return "default"
	}
	return req.SessionID
}

// chat runs the router synchronously and returns the collected reply.
func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, framework.Validationf("message is required"))
		return
	}
	projectID := c.Param("id")
	if _, err := s.Store.Metadata(projectID); err != nil {
		s.writeError(c, err)
		return
	}

	history, err := s.Messages.History(c.Request.Context(), projectID, req.session())
	if err != nil {
		s.writeError(c, err)
		return
	}
	tr := s.Trackers.Obtain(projectID, req.session())

	var prose strings.Builder
	reply := s.Router.Handle(c.Request.Context(), tr, history, req.Message, func(e framework.StreamEvent) {
		if e.Type == framework.StreamProse {
			prose.WriteString(e.Text)
		}
	})
	if reply == "" {
		reply = prose.String()
	}
	s.persistExchange(c, projectID, req.session(), req.Message, reply)
	c.JSON(http.StatusOK, gin.H{"response": reply, "session_id": req.session()})
}

// chatStream is the SSE variant: every stream event goes out as one SSE data
// frame the moment it is produced.
func (s *Server) chatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, framework.Validationf("message is required"))
		return
	}
	projectID := c.Param("id")
	if _, err := s.Store.Metadata(projectID); err != nil {
		s.writeError(c, err)
		return
	}
	history, err := s.Messages.History(c.Request.Context(), projectID, req.session())
	if err != nil {
		s.writeError(c, err)
		return
	}
	tr := s.Trackers.Obtain(projectID, req.session())

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	flusher, _ := c.Writer.(http.Flusher)

	emit := func(e framework.StreamEvent) {
		// Trace lines ride inside message_chunk frames; the wire protocol
		// only distinguishes prose, completion, and error.
		if e.Type == framework.StreamTrace {
			e = framework.StreamEvent{Type: framework.StreamProse, Text: e.Text + "\n"}
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return
		}
		c.Writer.WriteString("data: " + string(payload) + "\n\n")
		if flusher != nil {
			flusher.Flush()
		}
	}
	reply := s.Router.Handle(c.Request.Context(), tr, history, req.Message, emit)
	s.persistExchange(c, projectID, req.session(), req.Message, reply)
}

func (s *Server) persistExchange(c *gin.Context, projectID, sessionID, userMsg, reply string) {
	if reply == "" {
		return
	}
	err := s.Messages.Append(c.Request.Context(), projectID, sessionID,
		framework.Message{Role: "user", Content: userMsg},
		framework.Message{Role: "assistant", Content: reply},
	)
	if err != nil {
		s.Log.Warn("failed to persist chat exchange", zap.Error(err))
		return
	}
	if ws, err := s.Workspaces.Get(projectID); err == nil {
		if err := ws.AppendSessionHistory(sessionID, userMsg, reply); err != nil {
			s.Log.Warn("failed to append session history", zap.Error(err))
		}
	}
}

type chatResetRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) chatReset(c *gin.Context) {
	var req chatResetRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, framework.Validationf("malformed body: %v", err))
			return
		}
	}
	session := req.SessionID
	if session == "" {
		session = "default"
	}
	projectID := c.Param("id")
	if err := s.Messages.Clear(c.Request.Context(), projectID, session); err != nil {
		s.writeError(c, err)
		return
	}
	s.Trackers.Remove(projectID, session)
	c.JSON(http.StatusOK, gin.H{"reset": true, "session_id": session})
}

func (s *Server) trace(c *gin.Context) {
	session := c.Query("session_id")
	if session == "" {
		session = "default"
	}
	tr, ok := s.Trackers.Lookup(c.Param("id"), session)
	if !ok {
		s.writeError(c, framework.NotFoundf("no trace for session %s", session))
		return
	}
	activities, toolCalls, transfers := tr.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"task_id":    tr.TaskID,
		"session_id": tr.SessionID,
		"start_time": tr.StartTime,
		"activities": activities,
		"tool_calls": toolCalls,
		"transfers":  transfers,
	})
}
