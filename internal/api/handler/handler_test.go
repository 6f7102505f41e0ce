package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/bug_triage_server/internal/api/middleware"
	"github.com/qs3c/bug_triage_server/internal/pkg/jwt"
	"github.com/qs3c/bug_triage_server/internal/pkg/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testJWTSecret = "test-secret-key-for-handlers"

// apiResponse 统一响应，data 延后解析
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, data interface{}) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if data != nil && len(resp.Data) > 0 && string(resp.Data) != "null" {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

func performRequest(router *gin.Engine, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// mockAuth 模拟认证中间件
func mockAuth(userID, projectID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.IdentityKey, jwt.Identity{UserID: userID, ProjectID: projectID, Username: "tester"})
		c.Next()
	}
}

type fakeDispatcher struct {
	mu   sync.Mutex
	msgs []*queue.JobMessage
}

func (d *fakeDispatcher) Dispatch(_ context.Context, msg *queue.JobMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
	return nil
}
