package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"semester-planner/internal/dto"
	"semester-planner/internal/filter"
	"semester-planner/internal/service"
	"semester-planner/internal/sorter"
	"semester-planner/pkg/response"
)

// ExplorerHandler 班级浏览 HTTP 处理器
type ExplorerHandler struct {
	svc service.ExplorerService
}

// NewExplorerHandler 创建 ExplorerHandler
func NewExplorerHandler(svc service.ExplorerService) *ExplorerHandler {
	return &ExplorerHandler{svc: svc}
}

// ListSections 按查询参数筛选、排序、分页
// GET /api/v1/explorer/sections?subject=&course=&title=&instructor=&tags=&cr=&session=&sort=&page=&page_size=
func (h *ExplorerHandler) ListSections(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 21000, err.Error())
		return
	}
	resp, err := h.svc.List(c.Request.URL.Query(), page.GetPage(), page.GetPageSize())
	if err != nil {
		handleExplorerError(c, err)
		return
	}
	response.OK(c, resp)
}

// Filters 筛选字段与候选项
// GET /api/v1/explorer/filters
func (h *ExplorerHandler) Filters(c *gin.Context) {
	fields, err := h.svc.Filters(c.Request.URL.Query())
	if err != nil {
		handleExplorerError(c, err)
		return
	}
	response.OK(c, fields)
}

// ── 会话浏览器 ──

// State 当前筛选字段与排序状态
// GET /api/v1/sessions/me/explorer
func (h *ExplorerHandler) State(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	resp, err := h.svc.State(c.Request.Context(), id)
	if err != nil {
		handleExplorerError(c, err)
		return
	}
	response.OK(c, resp)
}

// View 按会话浏览器状态返回一页班级
// GET /api/v1/sessions/me/explorer/sections?page=&page_size=
func (h *ExplorerHandler) View(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 21000, err.Error())
		return
	}
	resp, err := h.svc.View(c.Request.Context(), id, page.GetPage(), page.GetPageSize())
	if err != nil {
		handleExplorerError(c, err)
		return
	}
	response.OK(c, resp)
}

// SetFilter 设置并启用某个字段
// PUT /api/v1/sessions/me/explorer/filters/:key
func (h *ExplorerHandler) SetFilter(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	var req dto.SetFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 21000, err.Error())
		return
	}
	resp, err := h.svc.SetFilter(c.Request.Context(), id, filter.Key(c.Param("key")), req.Value)
	if err != nil {
		handleExplorerError(c, err)
		return
	}
	response.OK(c, resp)
}

// SetFilterEnabled 启用或停用字段，保留其值
// PATCH /api/v1/sessions/me/explorer/filters/:key
func (h *ExplorerHandler) SetFilterEnabled(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	var req dto.SetFilterEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 21000, err.Error())
		return
	}
	resp, err := h.svc.SetFilterEnabled(c.Request.Context(), id, filter.Key(c.Param("key")), *req.Enabled)
	if err != nil {
		handleExplorerError(c, err)
		return
	}
	response.OK(c, resp)
}

// ClearFilter 清空字段值
// DELETE /api/v1/sessions/me/explorer/filters/:key
func (h *ExplorerHandler) ClearFilter(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	resp, err := h.svc.ClearFilter(c.Request.Context(), id, filter.Key(c.Param("key")))
	if err != nil {
		handleExplorerError(c, err)
		return
	}
	response.OK(c, resp)
}

// DisableFilters 停用全部字段
// POST /api/v1/sessions/me/explorer/filters/disable
func (h *ExplorerHandler) DisableFilters(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	resp, err := h.svc.DisableFilters(c.Request.Context(), id)
	if err != nil {
		handleExplorerError(c, err)
		return
	}
	response.OK(c, resp)
}

// ClearFilters 清空全部字段
// DELETE /api/v1/sessions/me/explorer/filters
func (h *ExplorerHandler) ClearFilters(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	resp, err := h.svc.ClearFilters(c.Request.Context(), id)
	if err != nil {
		handleExplorerError(c, err)
		return
	}
	response.OK(c, resp)
}

// Sort 点击列标题
// POST /api/v1/sessions/me/explorer/sort/:key
func (h *ExplorerHandler) Sort(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Sort(c.Request.Context(), id, sorter.Key(c.Param("key")))
	if err != nil {
		handleExplorerError(c, err)
		return
	}
	response.OK(c, resp)
}

func handleExplorerError(c *gin.Context, err error) {
	if handleCatalogStateError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Unauthorized(c, 22001, "选课会话不存在")
	case errors.Is(err, filter.ErrUnknownField):
		response.BadRequest(c, 21002, "未知的筛选字段")
	case errors.Is(err, filter.ErrInvalidValue):
		response.ErrorWithDetails(c, http.StatusBadRequest, 21001, "筛选参数无效", err.Error())
	case errors.Is(err, service.ErrInvalidSortKey):
		response.BadRequest(c, 21003, "无效的排序列")
	default:
		response.InternalError(c)
	}
}
