package service

import (
	"go.uber.org/zap"

	"semester-planner/config"
	"semester-planner/internal/catalog"
	"semester-planner/internal/repository"
	"semester-planner/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Catalog  CatalogService
	Explorer ExplorerService
	Planner  PlannerService
	Export   ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	provider catalog.Provider,
	jwtMgr *jwt.Manager,
	logger *zap.Logger,
) *Service {
	sessions := newSessionManager(cfg.Session, provider, repo.KV, logger)
	return &Service{
		Catalog:  NewCatalogService(provider, logger),
		Explorer: NewExplorerService(sessions, provider, logger),
		Planner:  NewPlannerService(sessions, jwtMgr, logger),
		Export:   NewExportService(sessions, provider, logger),
	}
}
