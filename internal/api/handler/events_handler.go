package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"semester-planner/internal/service"
)

// sseHeartbeat 空闲连接保活间隔
const sseHeartbeat = 25 * time.Second

// EventsHandler 会话变更推送（Server-Sent Events）
type EventsHandler struct {
	planner  service.PlannerService
	explorer service.ExplorerService
	logger   *zap.Logger
}

// NewEventsHandler 创建 EventsHandler
func NewEventsHandler(planner service.PlannerService, explorer service.ExplorerService, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{planner: planner, explorer: explorer, logger: logger}
}

// Stream 推送会话快照（event: session）与浏览器筛选变更（event: explorer）
// GET /api/v1/sessions/me/events
func (h *EventsHandler) Stream(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	snaps, cancelSnaps, err := h.planner.Subscribe(ctx, id)
	if err != nil {
		handlePlannerError(c, err)
		return
	}
	defer cancelSnaps()

	changes, cancelChanges, err := h.explorer.Subscribe(ctx, id)
	if err != nil {
		handleExplorerError(c, err)
		return
	}
	defer cancelChanges()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	h.logger.Debug("SSE 连接建立", zap.String("session_id", id))
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, ok := <-snaps:
			if !ok {
				return false
			}
			c.SSEvent("session", snap)
		case change, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("explorer", gin.H{"version": change.Version})
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"time": time.Now().Unix()})
		}
		return true
	})
	h.logger.Debug("SSE 连接关闭", zap.String("session_id", id))
}
