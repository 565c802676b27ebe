package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"semester-planner/pkg/response"
)

// CodeBodyTooLarge 请求体超限的业务码
const CodeBodyTooLarge = 10005

// BodyLimit 请求体大小限制，主要约束 ICS 上传
// 声明的 Content-Length 超限时直接返回 413；分块上传在读取时由 MaxBytesReader 截断，
// handler 通过 *http.MaxBytesError 识别。maxBytes <= 0 表示不限制。
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
