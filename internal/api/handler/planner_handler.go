package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"semester-planner/internal/catalog"
	"semester-planner/internal/dto"
	"semester-planner/internal/service"
	"semester-planner/internal/session"
	apperrors "semester-planner/pkg/errors"
	"semester-planner/pkg/response"
)

// PlannerHandler 选课会话 HTTP 处理器
type PlannerHandler struct {
	svc service.PlannerService
}

// NewPlannerHandler 创建 PlannerHandler
func NewPlannerHandler(svc service.PlannerService) *PlannerHandler {
	return &PlannerHandler{svc: svc}
}

// Create 新建会话并签发令牌
// POST /api/v1/sessions
func (h *PlannerHandler) Create(c *gin.Context) {
	resp, err := h.svc.Create(c.Request.Context())
	if err != nil {
		handlePlannerError(c, err)
		return
	}
	response.Created(c, resp)
}

// Get 当前会话状态
// GET /api/v1/sessions/me
func (h *PlannerHandler) Get(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handlePlannerError(c, err)
		return
	}
	response.OK(c, resp)
}

// ────────────────────── 已选班级 ──────────────────────

// sectionAction 包装以 :crn 为参数的班级操作
func (h *PlannerHandler) sectionAction(fn func(*gin.Context, string, int) (*dto.SectionActionResponse, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := MustGetSessionID(c)
		if !ok {
			return
		}
		crn, ok := mustIntParam(c, "crn")
		if !ok {
			return
		}
		resp, err := fn(c, id, crn)
		if err != nil {
			handlePlannerError(c, err)
			return
		}
		response.OK(c, resp)
	}
}

// AddSection 添加班级，已添加时移除
// POST /api/v1/sessions/me/sections/:crn
func (h *PlannerHandler) AddSection(c *gin.Context) {
	h.sectionAction(func(c *gin.Context, id string, crn int) (*dto.SectionActionResponse, error) {
		return h.svc.AddSection(c.Request.Context(), id, crn)
	})(c)
}

// SwitchSection 替换同课程的已选班级
// POST /api/v1/sessions/me/sections/:crn/switch
func (h *PlannerHandler) SwitchSection(c *gin.Context) {
	h.sectionAction(func(c *gin.Context, id string, crn int) (*dto.SectionActionResponse, error) {
		return h.svc.SwitchSection(c.Request.Context(), id, crn)
	})(c)
}

// RemoveSection 移除班级
// DELETE /api/v1/sessions/me/sections/:crn
func (h *PlannerHandler) RemoveSection(c *gin.Context) {
	h.sectionAction(func(c *gin.Context, id string, crn int) (*dto.SectionActionResponse, error) {
		return h.svc.RemoveSection(c.Request.Context(), id, crn)
	})(c)
}

// ClearSections 清空已选班级
// DELETE /api/v1/sessions/me/sections
func (h *PlannerHandler) ClearSections(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	if err := h.svc.ClearSections(c.Request.Context(), id); err != nil {
		handlePlannerError(c, err)
		return
	}
	response.OK(c, nil)
}

// RemoveCourse 移除某课程的全部已选班级
// DELETE /api/v1/sessions/me/courses/:subject/:course
func (h *PlannerHandler) RemoveCourse(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	course, ok := mustIntParam(c, "course")
	if !ok {
		return
	}
	resp, err := h.svc.RemoveCourse(c.Request.Context(), id, c.Param("subject"), course)
	if err != nil {
		handlePlannerError(c, err)
		return
	}
	response.OK(c, resp)
}

// AddTempSection 悬停预览
// POST /api/v1/sessions/me/temp-sections/:crn
func (h *PlannerHandler) AddTempSection(c *gin.Context) {
	h.sectionAction(func(c *gin.Context, id string, crn int) (*dto.SectionActionResponse, error) {
		return h.svc.AddTempSection(c.Request.Context(), id, crn)
	})(c)
}

// RemoveTempSection 取消预览
// DELETE /api/v1/sessions/me/temp-sections/:crn
func (h *PlannerHandler) RemoveTempSection(c *gin.Context) {
	h.sectionAction(func(c *gin.Context, id string, crn int) (*dto.SectionActionResponse, error) {
		return h.svc.RemoveTempSection(c.Request.Context(), id, crn)
	})(c)
}

// ────────────────────── 冲突 ──────────────────────

// SectionConflict GET /api/v1/sessions/me/conflicts/sections/:crn
func (h *PlannerHandler) SectionConflict(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	crn, ok := mustIntParam(c, "crn")
	if !ok {
		return
	}
	resp, err := h.svc.SectionConflict(c.Request.Context(), id, crn)
	if err != nil {
		handlePlannerError(c, err)
		return
	}
	response.OK(c, resp)
}

// CourseConflict GET /api/v1/sessions/me/conflicts/courses/:subject/:course
func (h *PlannerHandler) CourseConflict(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	course, ok := mustIntParam(c, "course")
	if !ok {
		return
	}
	resp, err := h.svc.CourseConflict(c.Request.Context(), id, c.Param("subject"), course)
	if err != nil {
		handlePlannerError(c, err)
		return
	}
	response.OK(c, resp)
}

// ────────────────────── 屏蔽时段 ──────────────────────

// AddBlockOut POST /api/v1/sessions/me/blockouts
func (h *PlannerHandler) AddBlockOut(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	var req dto.BlockOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 22000, err.Error())
		return
	}
	b, err := h.svc.AddBlockOut(c.Request.Context(), id, &req)
	if err != nil {
		handlePlannerError(c, err)
		return
	}
	response.Created(c, b)
}

// RemoveBlockOut DELETE /api/v1/sessions/me/blockouts/:id
func (h *PlannerHandler) RemoveBlockOut(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	removed, err := h.svc.RemoveBlockOut(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		handlePlannerError(c, err)
		return
	}
	if !removed {
		response.NotFound(c, 22104, "屏蔽时段不存在")
		return
	}
	response.OK(c, nil)
}

// ClearBlockOuts DELETE /api/v1/sessions/me/blockouts
func (h *PlannerHandler) ClearBlockOuts(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	if err := h.svc.ClearBlockOuts(c.Request.Context(), id); err != nil {
		handlePlannerError(c, err)
		return
	}
	response.OK(c, nil)
}

// ImportBlockOuts 从日历导入本周的屏蔽时段
// POST /api/v1/sessions/me/blockouts/import
//
// 支持两种方式：
//   - 文件上传: multipart/form-data, field="file"
//   - URL 导入: application/json, body={"url": "..."}，支持 webcal://
func (h *PlannerHandler) ImportBlockOuts(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err == nil {
		defer file.Close()
		resp, err := h.svc.ImportBlockOuts(c.Request.Context(), id, file)
		if err != nil {
			handlePlannerError(c, err)
			return
		}
		response.Created(c, resp)
		return
	}
	if handleBodyTooLarge(c, err) {
		return
	}

	var req dto.ImportBlockOutsURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if handleBodyTooLarge(c, err) {
			return
		}
		response.BadRequest(c, 22000, "请上传 ICS 文件或提供 ICS URL")
		return
	}
	resp, err := h.svc.ImportBlockOutsFromURL(c.Request.Context(), id, req.URL)
	if err != nil {
		handlePlannerError(c, err)
		return
	}
	response.Created(c, resp)
}

// Calendar 本周日历事件
// GET /api/v1/sessions/me/calendar
func (h *PlannerHandler) Calendar(c *gin.Context) {
	id, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	events, err := h.svc.Calendar(c.Request.Context(), id)
	if err != nil {
		handlePlannerError(c, err)
		return
	}
	if events == nil {
		events = []service.CalendarEvent{}
	}
	response.OK(c, events)
}

func handlePlannerError(c *gin.Context, err error) {
	if handleCatalogStateError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Unauthorized(c, 22001, "选课会话不存在")
	case errors.Is(err, catalog.ErrSectionNotFound):
		response.NotFound(c, 22101, "班级不存在")
	case errors.Is(err, catalog.ErrSubjectNotFound), errors.Is(err, catalog.ErrCourseNotFound):
		response.NotFound(c, 22102, "课程不存在")
	case errors.Is(err, apperrors.ErrNotFound):
		response.NotFound(c, 22100, err.Error())
	case errors.Is(err, session.ErrBlockOutInvalid):
		response.BadRequest(c, 22201, "屏蔽时段时间格式错误或结束早于开始")
	case errors.Is(err, service.ErrICSInvalid):
		response.ErrorWithDetails(c, http.StatusBadRequest, 22202, "日历文件无效", err.Error())
	default:
		response.InternalError(c)
	}
}
