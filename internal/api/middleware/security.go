package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// apiCSP 接口只返回 JSON、SSE 与下载文件，不加载任何脚本或样式
const apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"

// SecurityHeaders 安全响应头
// 会话接口返回个人选课数据，额外禁止任何缓存
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", apiCSP)
		c.Header("Cross-Origin-Resource-Policy", "same-site")

		if strings.HasPrefix(c.Request.URL.Path, "/api/v1/sessions") {
			c.Header("Cache-Control", "no-store")
		}

		c.Next()
	}
}
