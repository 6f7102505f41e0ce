package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/qs3c/bug_triage_server/internal/model/dto"
	"github.com/qs3c/bug_triage_server/internal/pkg/jwt"
	"github.com/qs3c/bug_triage_server/internal/pkg/ws"
	"github.com/qs3c/bug_triage_server/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// JobLookup 校验任务属于调用方项目，*service.ResultService 满足
type JobLookup interface {
	GetJob(ctx context.Context, projectID, jobID string) (*dto.JobDetail, error)
}

type WebSocketHandler struct {
	hub       *ws.Hub
	jobs      JobLookup
	jwtSecret string
}

func NewWebSocketHandler(hub *ws.Hub, jobs JobLookup, jwtSecret string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		jobs:      jobs,
		jwtSecret: jwtSecret,
	}
}

// Progress 订阅某个任务的进度
// GET /api/v1/ws/progress/:job_id?token=xxx
func (h *WebSocketHandler) Progress(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := jwt.ParseToken(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	jobID := c.Param("job_id")
	if _, err := h.jobs.GetJob(c.Request.Context(), claims.ProjectID, jobID); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Job %s: failed to upgrade connection: %v", jobID, err)
		return
	}

	sub := h.hub.Subscribe(jobID, ws.NewConn(conn, ws.DefaultWriteWait))

	// 客户端不发送消息，读取只用于发现断开和关闭确认
	go func() {
		defer h.hub.Unsubscribe(sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
