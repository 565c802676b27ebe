package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"semester-planner/config"
	"semester-planner/internal/api/handler"
	"semester-planner/internal/api/middleware"
	"semester-planner/pkg/jwt"
)

// Setup 初始化并返回 Gin 路由引擎
// ready 在课程数据加载成功后关闭，之前依赖数据集的路由一律返回 503
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, ready <-chan struct{}, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", h.Catalog.Health)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.Server.RateLimit.PerSecond, cfg.Server.RateLimit.Burst))
	{
		// 数据集信息（始终可用）
		v1.GET("/catalog/meta", h.Catalog.Meta)

		loaded := v1.Group("")
		loaded.Use(middleware.CatalogReady(ready))

		// 课程目录
		cat := loaded.Group("/catalog")
		{
			cat.GET("/subjects", h.Catalog.ListSubjects)
			cat.GET("/subjects/:subject", h.Catalog.GetSubject)
			cat.GET("/subjects/:subject/courses", h.Catalog.ListCourses)
			cat.GET("/subjects/:subject/courses/:course", h.Catalog.GetCourse)
			cat.GET("/subjects/:subject/courses/:course/sections", h.Catalog.ListSections)
			cat.GET("/sections/random", h.Catalog.RandomSection)
			cat.GET("/sections/:crn", h.Catalog.GetSection)
			cat.GET("/instructors/:name", h.Catalog.GetInstructor)
			cat.GET("/instructors/:name/sections", h.Catalog.ListInstructorSections)
		}

		// 无状态浏览
		exp := loaded.Group("/explorer")
		{
			exp.GET("/sections", h.Explorer.ListSections)
			exp.GET("/filters", h.Explorer.Filters)
		}

		// 选课会话
		loaded.POST("/sessions", h.Planner.Create)

		me := loaded.Group("/sessions/me")
		me.Use(middleware.SessionAuth(jwtMgr))
		{
			me.GET("", h.Planner.Get)
			me.GET("/events", h.Events.Stream)
			me.GET("/calendar", h.Planner.Calendar)

			me.POST("/sections/:crn", h.Planner.AddSection)
			me.POST("/sections/:crn/switch", h.Planner.SwitchSection)
			me.DELETE("/sections/:crn", h.Planner.RemoveSection)
			me.DELETE("/sections", h.Planner.ClearSections)
			me.DELETE("/courses/:subject/:course", h.Planner.RemoveCourse)
			me.POST("/temp-sections/:crn", h.Planner.AddTempSection)
			me.DELETE("/temp-sections/:crn", h.Planner.RemoveTempSection)

			me.GET("/conflicts/sections/:crn", h.Planner.SectionConflict)
			me.GET("/conflicts/courses/:subject/:course", h.Planner.CourseConflict)

			me.POST("/blockouts", h.Planner.AddBlockOut)
			me.POST("/blockouts/import", h.Planner.ImportBlockOuts)
			me.DELETE("/blockouts/:id", h.Planner.RemoveBlockOut)
			me.DELETE("/blockouts", h.Planner.ClearBlockOuts)

			me.GET("/export/registration.xlsx", h.Export.ExportRegistration)
			me.GET("/export/calendar.ics", h.Export.ExportCalendar)

			// 会话浏览器
			me.GET("/explorer", h.Explorer.State)
			me.GET("/explorer/sections", h.Explorer.View)
			me.POST("/explorer/sort/:key", h.Explorer.Sort)
			me.POST("/explorer/filters/disable", h.Explorer.DisableFilters)
			me.DELETE("/explorer/filters", h.Explorer.ClearFilters)
			me.PUT("/explorer/filters/:key", h.Explorer.SetFilter)
			me.PATCH("/explorer/filters/:key", h.Explorer.SetFilterEnabled)
			me.DELETE("/explorer/filters/:key", h.Explorer.ClearFilter)
		}
	}

	return r
}
