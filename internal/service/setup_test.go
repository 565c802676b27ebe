package service

import (
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"semester-planner/config"
	"semester-planner/internal/catalog"
	"semester-planner/internal/catalog/catalogtest"
	"semester-planner/internal/model"
	"semester-planner/internal/repository"
	"semester-planner/internal/session"
	"semester-planner/pkg/jwt"
)

// ── 测试辅助 ──

// 2024-03-13 是周三，本周从 2024-03-10（周日）开始
var testNow = time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	sessions *sessionManager
	kv       repository.KVRepository
	provider catalog.Provider
	jwtMgr   *jwt.Manager
	planner  PlannerService
	explorer ExplorerService
	export   ExportService
	catalog  CatalogService
}

func newTestSessionManager(t *testing.T, provider catalog.Provider, kv repository.KVRepository, opts ...session.Option) *sessionManager {
	t.Helper()
	cfg := config.SessionConfig{Debounce: time.Hour, KeyPrefix: "test", Timezone: "UTC"}
	m := newSessionManager(cfg, provider, kv, zap.NewNop(), opts...)
	m.now = func() time.Time { return testNow }
	t.Cleanup(m.closeAll)
	return m
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupTestEnvWith(t, catalog.Static(catalogtest.Index()), repository.NewMemoryKVRepo())
}

func setupTestEnvWith(t *testing.T, provider catalog.Provider, kv repository.KVRepository) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	sessions := newTestSessionManager(t, provider, kv, session.WithIDGenerator(sequentialIDs()))
	jwtMgr := jwt.NewManager(&config.AuthConfig{JWTSecret: "test-secret-0123456789", SessionTokenTTL: time.Hour})
	return &testEnv{
		sessions: sessions,
		kv:       kv,
		provider: provider,
		jwtMgr:   jwtMgr,
		planner:  NewPlannerService(sessions, jwtMgr, logger),
		explorer: NewExplorerService(sessions, provider, logger),
		export:   NewExportService(sessions, provider, logger),
		catalog:  NewCatalogService(provider, logger),
	}
}

// sequentialIDs 生成 b1, b2, ... 的屏蔽时段 ID
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "b" + strconv.Itoa(n)
	}
}

func sectionCRNs(sections []model.Section) []int {
	out := make([]int, len(sections))
	for i, s := range sections {
		out[i] = s.CRN
	}
	return out
}
