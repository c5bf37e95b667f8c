// Package server exposes the resolver over a small HTTP API, for driving the
// pipeline from a chat adapter running in another process.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TeamBreakerr/nonebot-plugin-resolver2/internal/message"
)

// MessageResolver is the resolver surface the server depends on.
type MessageResolver interface {
	ResolveMessage(ctx context.Context, text string) *message.Reply
}

// Server serves the resolve API and the history endpoint.
type Server struct {
	resolver MessageResolver
	history  *HistoryDB
	engine   *gin.Engine
}

// New builds the server. history may be nil to disable bookkeeping.
func New(resolver MessageResolver, history *HistoryDB) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		resolver: resolver,
		history:  history,
		engine:   gin.Default(),
	}
	api := s.engine.Group("/api")
	api.POST("/resolve", s.handleResolve)
	api.GET("/history", s.handleHistory)
	return s
}

// Run blocks serving on addr.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Handler exposes the underlying handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

type resolveRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) handleResolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	started := time.Now()
	reply := s.resolver.ResolveMessage(c.Request.Context(), req.Text)
	if reply == nil {
		// Unmatched text is a no-op, not an error.
		c.JSON(http.StatusOK, gin.H{"matched": false})
		return
	}

	s.record(req.Text, reply, time.Since(started))
	c.JSON(http.StatusOK, gin.H{"matched": true, "reply": reply})
}

func (s *Server) record(text string, reply *message.Reply, took time.Duration) {
	if s.history == nil {
		return
	}
	status := "completed"
	errMsg := ""
	if len(reply.Segments) == 1 && reply.Segments[0].Kind == message.KindText && reply.Platform == "" {
		status = "failed"
		errMsg = reply.Segments[0].Text
	}
	_ = s.history.Record(HistoryRecord{
		ID:         uuid.NewString(),
		Platform:   reply.Platform,
		Text:       text,
		Status:     status,
		Segments:   len(reply.Segments),
		DurationMS: took.Milliseconds(),
		Error:      errMsg,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, gin.H{"records": []HistoryRecord{}, "total": 0})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	records, total, err := s.history.List(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []HistoryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "total": total})
}
