package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"semester-planner/config"
	"semester-planner/internal/api/handler"
	"semester-planner/internal/api/router"
	"semester-planner/internal/catalog"
	"semester-planner/internal/repository"
	"semester-planner/internal/service"
	"semester-planner/pkg/database"
	"semester-planner/pkg/jwt"
	applogger "semester-planner/pkg/logger"
	"semester-planner/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config/config.yaml）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("catalog", cfg.Catalog.Source),
	)

	// 3. 会话持久化存储
	repo, closeStorage := openStorage(cfg, logger)
	defer closeStorage()

	// 4. 后台加载课程数据，加载期间依赖数据集的接口返回 503
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	loader := catalog.NewLoader(cfg.Catalog.Source, cfg.Catalog.FetchTimeout, logger)
	go func() {
		if err := loader.Load(rootCtx); err != nil {
			logger.Error("课程数据加载失败，需修正数据源后重启", zap.Error(err))
		}
	}()

	// 5. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 6. 依赖注入: Repository → Service → Handler
	svc := service.NewService(cfg, repo, loader, jwtMgr, logger)
	h := handler.NewHandler(svc, logger)

	// 7. 初始化路由
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.Setup(cfg, h, jwtMgr, loader.Ready(), logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     engine,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// SSE 长连接，不设置 WriteTimeout
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 先关闭会话：结束 SSE 推送并落盘待执行的广播
	svc.Planner.Close()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	logger.Info("服务器已关闭")
}

// openStorage 按 storage.driver 创建 Repository，返回关闭函数
func openStorage(cfg *config.Config, logger *zap.Logger) (*repository.Repository, func()) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
		if err != nil {
			logger.Fatal("数据库连接失败", zap.Error(err))
		}
		logger.Info("数据库连接成功")

		sqlDB, err := db.DB()
		if err != nil {
			logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
		}
		if err := database.RunMigrations(sqlDB, logger); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
		return repository.NewRepository(db), func() { sqlDB.Close() }

	case config.StorageRedis:
		rdb, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Fatal("Redis 连接失败", zap.Error(err))
		}
		return repository.NewRedisRepository(rdb), func() { rdb.Close() }

	default:
		logger.Warn("使用进程内存储，重启后会话将丢失")
		return repository.NewMemoryRepository(), func() {}
	}
}
