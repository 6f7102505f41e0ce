package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/bug_triage_server/internal/pkg/jwt"
	"github.com/qs3c/bug_triage_server/internal/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testJWTSecret = "test-secret-key-for-middleware"

var testIdentity = jwt.Identity{UserID: "u-123", ProjectID: "p-1", Username: "alice"}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func authRouter(t *testing.T) *gin.Engine {
	router := gin.New()
	router.Use(Auth(testJWTSecret))
	router.GET("/test", func(c *gin.Context) {
		id, ok := GetIdentity(c)
		assert.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "project_id": id.ProjectID})
	})
	return router
}

func TestAuth_Success(t *testing.T) {
	token, err := jwt.GenerateToken(testIdentity, testJWTSecret, 24)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	authRouter(t).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "u-123", got["user_id"])
	assert.Equal(t, "p-1", got["project_id"])
}

func TestAuth_Rejected(t *testing.T) {
	valid := func(id jwt.Identity, secret string, hours int) string {
		token, err := jwt.GenerateToken(id, secret, hours)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", "some-token-without-bearer"},
		{"invalid token", "Bearer invalid-token"},
		{"wrong secret", "Bearer " + valid(testIdentity, "different-secret", 24)},
		{"expired", "Bearer " + valid(testIdentity, testJWTSecret, 0)},
		{"missing project", "Bearer " + valid(jwt.Identity{UserID: "u-1"}, testJWTSecret, 24)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(Auth(testJWTSecret))
			router.GET("/test", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{})
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			resp := parseResponse(t, w)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, response.CodeAuthFailed, resp.Code)
		})
	}
}

func TestGetIdentity_NotSet(t *testing.T) {
	router := gin.New()
	router.GET("/test", func(c *gin.Context) {
		id, ok := GetIdentity(c)
		assert.False(t, ok)
		assert.Empty(t, id.UserID)
		c.JSON(http.StatusOK, gin.H{})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetIdentity_WrongType(t *testing.T) {
	router := gin.New()
	router.GET("/test", func(c *gin.Context) {
		c.Set(IdentityKey, "u-1")
		_, ok := GetIdentity(c)
		assert.False(t, ok)
		c.JSON(http.StatusOK, gin.H{})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
