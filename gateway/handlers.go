package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/01cheese/OnlineCompiler/task"
)

// executeRequest accepts either a language name or the numeric language id
// used by the web client.
type executeRequest struct {
	Language   string      `json:"language"`
	LanguageID json.Number `json:"language_id"`
	SourceCode string      `json:"source_code"`
}

func (r executeRequest) languageTag() string {
	if tag := strings.TrimSpace(r.Language); tag != "" {
		return tag
	}
	return r.LanguageID.String()
}

type errorResponse struct {
	Status string `json:"status"`
	Output string `json:"output"`
}

func newTaskID() string {
	return uuid.NewString()
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Online compiler is running"})
}

func (s *Server) handleExecute(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)

	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if req.languageTag() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language or language_id is required"})
		return
	}
	if strings.TrimSpace(req.SourceCode) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_code is required"})
		return
	}

	t := task.Task{
		ID:          s.newID(),
		Language:    req.languageTag(),
		SourceCode:  req.SourceCode,
		SubmittedAt: s.now().UTC(),
	}

	if err := s.queue.Enqueue(c.Request.Context(), t); err != nil {
		s.logger.Error("failed to enqueue task", zap.String("task_id", t.ID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to queue task"})
		return
	}

	s.logger.Info("task submitted",
		zap.String("task_id", t.ID),
		zap.String("language", t.Language),
		zap.Int("source_bytes", len(t.SourceCode)),
	)
	c.JSON(http.StatusOK, gin.H{"task_id": t.ID})
}

func (s *Server) handleResult(c *gin.Context) {
	id := c.Param("id")

	result, found, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("failed to load result", zap.String("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Status: "error", Output: err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"status": "processing"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleWebSocket pushes one result and closes the connection.
func (s *Server) handleWebSocket(c *gin.Context) {
	id := c.Param("id")
	logger := s.logger.With(zap.String("task_id", id))

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WSWaitTimeout)
	defer cancel()

	// The client never sends anything; a read error means it went away.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	result, err := s.awaitResult(ctx, id)
	if err != nil {
		logger.Warn("websocket result delivery failed", zap.Error(err))
		_ = conn.WriteJSON(errorResponse{Status: "error", Output: fmt.Sprintf("WebSocket error: %v", err)})
	} else if err := conn.WriteJSON(result); err != nil {
		logger.Warn("failed to write result to websocket", zap.Error(err))
		return
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// awaitResult subscribes first and only then checks the store, so a result
// stored and published between the two steps is still seen.
func (s *Server) awaitResult(ctx context.Context, id string) (task.Result, error) {
	sub, err := s.subscriber.Subscribe(ctx, id)
	if err != nil {
		return task.Result{}, err
	}
	defer sub.Close()

	result, found, err := s.store.Get(ctx, id)
	if err != nil {
		return task.Result{}, err
	}
	if found {
		return result, nil
	}

	return sub.Result(ctx)
}
