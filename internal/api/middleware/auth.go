package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/bug_triage_server/internal/pkg/jwt"
	"github.com/qs3c/bug_triage_server/internal/pkg/response"
)

const (
	IdentityKey = "identity"
)

// Auth JWT 认证中间件，令牌必须带 user_id 和 project_id
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "请提供认证信息")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "认证格式错误")
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "认证失败或已过期")
			c.Abort()
			return
		}
		if claims.UserID == "" || claims.ProjectID == "" {
			response.AuthError(c, "令牌缺少用户或项目信息")
			c.Abort()
			return
		}

		c.Set(IdentityKey, claims.Identity)
		c.Next()
	}
}

// GetIdentity 从上下文获取调用方身份
func GetIdentity(c *gin.Context) (jwt.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return jwt.Identity{}, false
	}
	id, ok := v.(jwt.Identity)
	return id, ok
}
