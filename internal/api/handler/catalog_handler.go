package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"semester-planner/internal/catalog"
	"semester-planner/internal/filter"
	"semester-planner/internal/service"
	apperrors "semester-planner/pkg/errors"
	"semester-planner/pkg/response"
)

// CatalogHandler 课程目录 HTTP 处理器
type CatalogHandler struct {
	svc service.CatalogService
}

// NewCatalogHandler 创建 CatalogHandler
func NewCatalogHandler(svc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// Health 健康检查，数据集未就绪时返回 503
// GET /health
func (h *CatalogHandler) Health(c *gin.Context) {
	meta := h.svc.Meta()
	status := http.StatusOK
	state := "ok"
	if !meta.Ready {
		status = http.StatusServiceUnavailable
		state = "loading"
		if meta.Error != "" {
			state = "failed"
		}
	}
	c.JSON(status, gin.H{"status": state, "catalog": meta})
}

// Meta 数据集技术信息
// GET /api/v1/catalog/meta
func (h *CatalogHandler) Meta(c *gin.Context) {
	response.OK(c, h.svc.Meta())
}

// ListSubjects 学科列表
// GET /api/v1/catalog/subjects
func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	list, err := h.svc.ListSubjects()
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, list)
}

// GetSubject 学科详情
// GET /api/v1/catalog/subjects/:subject
func (h *CatalogHandler) GetSubject(c *gin.Context) {
	subject, err := h.svc.GetSubject(c.Param("subject"))
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, subject)
}

// ListCourses 学科下的课程
// GET /api/v1/catalog/subjects/:subject/courses
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	list, err := h.svc.ListCourses(c.Param("subject"))
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, list)
}

// GetCourse 课程详情
// GET /api/v1/catalog/subjects/:subject/courses/:course
func (h *CatalogHandler) GetCourse(c *gin.Context) {
	number, ok := mustIntParam(c, "course")
	if !ok {
		return
	}
	course, err := h.svc.GetCourse(c.Param("subject"), number)
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, course)
}

// ListSections 课程下的班级
// GET /api/v1/catalog/subjects/:subject/courses/:course/sections
func (h *CatalogHandler) ListSections(c *gin.Context) {
	number, ok := mustIntParam(c, "course")
	if !ok {
		return
	}
	list, err := h.svc.ListSections(c.Param("subject"), number)
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, list)
}

// GetSection 按 CRN 查询班级
// GET /api/v1/catalog/sections/:crn
func (h *CatalogHandler) GetSection(c *gin.Context) {
	crn, ok := mustIntParam(c, "crn")
	if !ok {
		return
	}
	sec, err := h.svc.GetSection(crn)
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, sec)
}

// RandomSection 随机班级，查询参数与浏览器筛选相同
// GET /api/v1/catalog/sections/random
func (h *CatalogHandler) RandomSection(c *gin.Context) {
	sec, err := h.svc.RandomSection(c.Request.URL.Query())
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, sec)
}

// GetInstructor 教师详情
// GET /api/v1/catalog/instructors/:name
func (h *CatalogHandler) GetInstructor(c *gin.Context) {
	ins, err := h.svc.GetInstructor(c.Param("name"))
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, ins)
}

// ListInstructorSections 教师所授班级
// GET /api/v1/catalog/instructors/:name/sections
func (h *CatalogHandler) ListInstructorSections(c *gin.Context) {
	list, err := h.svc.ListInstructorSections(c.Param("name"))
	if err != nil {
		handleCatalogError(c, err)
		return
	}
	response.OK(c, list)
}

func handleCatalogError(c *gin.Context, err error) {
	if handleCatalogStateError(c, err) {
		return
	}
	switch {
	case errors.Is(err, catalog.ErrSubjectNotFound):
		response.NotFound(c, 20101, "学科不存在")
	case errors.Is(err, catalog.ErrCourseNotFound):
		response.NotFound(c, 20102, "课程不存在")
	case errors.Is(err, catalog.ErrSectionNotFound):
		response.NotFound(c, 20103, "班级不存在")
	case errors.Is(err, catalog.ErrInstructorNotFound):
		response.NotFound(c, 20104, "教师不存在")
	case errors.Is(err, apperrors.ErrNotFound):
		response.NotFound(c, 20100, err.Error())
	case errors.Is(err, filter.ErrInvalidValue), errors.Is(err, filter.ErrUnknownField):
		response.ErrorWithDetails(c, http.StatusBadRequest, 21001, "筛选参数无效", err.Error())
	default:
		response.InternalError(c)
	}
}
