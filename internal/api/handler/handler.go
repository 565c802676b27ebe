package handler

import (
	"go.uber.org/zap"

	"semester-planner/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Catalog  *CatalogHandler
	Explorer *ExplorerHandler
	Planner  *PlannerHandler
	Export   *ExportHandler
	Events   *EventsHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Catalog:  NewCatalogHandler(svc.Catalog),
		Explorer: NewExplorerHandler(svc.Explorer),
		Planner:  NewPlannerHandler(svc.Planner),
		Export:   NewExportHandler(svc.Export),
		Events:   NewEventsHandler(svc.Planner, svc.Explorer, logger),
	}
}
