package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "semester-planner/pkg/errors"
	"semester-planner/pkg/response"
)

// SessionIDKey 会话认证中间件写入上下文的键
const SessionIDKey = "session_id"

// MustGetSessionID 从 Gin 上下文中安全提取 session_id。
// 如果会话中间件未正确注入 session_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetSessionID(c *gin.Context) (string, bool) {
	v, exists := c.Get(SessionIDKey)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// mustIntParam 读取整数路径参数，失败时写入 400
func mustIntParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n < 0 {
		response.BadRequest(c, 10001, name+" 必须是非负整数")
		return 0, false
	}
	return n, true
}

// handleCatalogStateError 处理数据集未就绪 / 加载失败，已处理时返回 true
func handleCatalogStateError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, apperrors.ErrNotReady):
		response.ServiceUnavailable(c, 20001, "课程数据尚未就绪")
	case errors.Is(err, apperrors.ErrLoadFailure):
		response.ErrorWithDetails(c, http.StatusServiceUnavailable, 20002, "课程数据加载失败", err.Error())
	default:
		return false
	}
	return true
}

// handleBodyTooLarge 请求体在读取时超出 BodyLimit，已处理时返回 true
func handleBodyTooLarge(c *gin.Context, err error) bool {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return false
	}
	response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
	return true
}
