package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"semester-planner/internal/api/handler"
	"semester-planner/pkg/jwt"
	"semester-planner/pkg/response"
)

// SessionAuth 会话令牌认证中间件
// 从 Authorization: Bearer <token> 中提取并验证会话令牌。
// EventSource 无法设置请求头，因此同时接受查询参数 ?token=。
func SessionAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(c, 10002, "认证头格式无效")
				c.Abort()
				return
			}
			token = parts[1]
		}
		if token == "" {
			response.Unauthorized(c, 10002, "缺少会话令牌")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, 10002, "会话令牌无效或已过期")
			c.Abort()
			return
		}

		c.Set(handler.SessionIDKey, claims.SessionID)
		c.Next()
	}
}
