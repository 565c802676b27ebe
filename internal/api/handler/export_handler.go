package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"semester-planner/internal/service"
	"semester-planner/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportRegistration 导出选课单
// GET /api/v1/sessions/me/export/registration.xlsx
func (h *ExportHandler) ExportRegistration(c *gin.Context) {
	h.download(c, contentTypeXLSX, h.exportSvc.ExportRegistration)
}

// ExportCalendar 导出本周日历
// GET /api/v1/sessions/me/export/calendar.ics
func (h *ExportHandler) ExportCalendar(c *gin.Context) {
	h.download(c, contentTypeICS, h.exportSvc.ExportCalendar)
}

func (h *ExportHandler) download(c *gin.Context, contentType string, export func(context.Context, string) (*bytes.Buffer, string, error)) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}

	buf, filename, err := export(c.Request.Context(), id)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	if handleCatalogStateError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Unauthorized(c, 22001, "选课会话不存在")
	case errors.Is(err, service.ErrExportNoSections):
		response.BadRequest(c, 23101, "尚未选择任何班级")
	case errors.Is(err, service.ErrExportEmpty):
		response.BadRequest(c, 23102, "本周没有可导出的事件")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
