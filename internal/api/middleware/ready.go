package middleware

import (
	"github.com/gin-gonic/gin"

	"semester-planner/pkg/response"
)

// CatalogReady 课程数据未就绪时直接返回 503
func CatalogReady(ready <-chan struct{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		select {
		case <-ready:
			c.Next()
		default:
			c.Header("Retry-After", "5")
			response.ServiceUnavailable(c, 20001, "课程数据尚未就绪")
			c.Abort()
		}
	}
}
