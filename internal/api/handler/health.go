package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/bug_triage_server/internal/pkg/response"
)

// Health 存活检查
// GET /api/v1/health
func Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
