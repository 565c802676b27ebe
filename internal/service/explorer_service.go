package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"go.uber.org/zap"

	"semester-planner/internal/catalog"
	"semester-planner/internal/dto"
	"semester-planner/internal/explorer"
	"semester-planner/internal/filter"
	"semester-planner/internal/sorter"
)

// ── 浏览模块业务错误 ──

var ErrInvalidSortKey = errors.New("无效的排序列")

// ExplorerService 班级浏览业务接口
//
// List / Filters 是无状态的：筛选条件来自查询参数，排序由 sort 参数给出（前缀 "-" 表示降序）。
// 其余方法操作选课会话自己的浏览器状态。
type ExplorerService interface {
	List(query url.Values, page, pageSize int) (*dto.SectionPageResponse, error)
	Filters(query url.Values) ([]dto.FilterField, error)

	State(ctx context.Context, sessionID string) (*dto.ExplorerStateResponse, error)
	View(ctx context.Context, sessionID string, page, pageSize int) (*dto.SectionPageResponse, error)
	SetFilter(ctx context.Context, sessionID string, key filter.Key, value string) (*dto.ExplorerStateResponse, error)
	ClearFilter(ctx context.Context, sessionID string, key filter.Key) (*dto.ExplorerStateResponse, error)
	SetFilterEnabled(ctx context.Context, sessionID string, key filter.Key, enabled bool) (*dto.ExplorerStateResponse, error)
	DisableFilters(ctx context.Context, sessionID string) (*dto.ExplorerStateResponse, error)
	ClearFilters(ctx context.Context, sessionID string) (*dto.ExplorerStateResponse, error)
	Sort(ctx context.Context, sessionID string, key sorter.Key) (*dto.ExplorerStateResponse, error)
	Subscribe(ctx context.Context, sessionID string) (<-chan explorer.Change, func(), error)
}

type explorerService struct {
	sessions *sessionManager
	provider catalog.Provider
	logger   *zap.Logger
}

// NewExplorerService 创建 ExplorerService 实例
func NewExplorerService(sessions *sessionManager, provider catalog.Provider, logger *zap.Logger) ExplorerService {
	return &explorerService{sessions: sessions, provider: provider, logger: logger}
}

// ────────────────────── 无状态 ──────────────────────

func (s *explorerService) List(query url.Values, page, pageSize int) (*dto.SectionPageResponse, error) {
	idx, err := s.provider.Index()
	if err != nil {
		return nil, err
	}
	st, err := ParseSortParam(query.Get("sort"))
	if err != nil {
		return nil, err
	}
	fields, err := filter.BuildFields(idx, query)
	if err != nil {
		return nil, err
	}
	return toPageResponse(explorer.List(idx, filter.BuildPredicate(fields), st, page, pageSize)), nil
}

func (s *explorerService) Filters(query url.Values) ([]dto.FilterField, error) {
	idx, err := s.provider.Index()
	if err != nil {
		return nil, err
	}
	fields, err := filter.BuildFields(idx, query)
	if err != nil {
		return nil, err
	}
	return dto.ToFilterFields(fields), nil
}

// ParseSortParam 解析 sort 参数："title" 升序，"-title" 降序，空串为默认排序
func ParseSortParam(raw string) (sorter.State, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return sorter.Default(), nil
	}
	asc := true
	if strings.HasPrefix(raw, "-") {
		asc = false
		raw = raw[1:]
	}
	key := sorter.Key(raw)
	if !slices.Contains(sorter.Keys, key) {
		return sorter.State{}, fmt.Errorf("%w: %q", ErrInvalidSortKey, raw)
	}
	return sorter.State{Key: key, Ascending: asc}, nil
}

// ────────────────────── 会话浏览器 ──────────────────────

func (s *explorerService) explorer(ctx context.Context, sessionID string) (*explorer.Explorer, error) {
	e, err := s.sessions.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.Explorer(), nil
}

func (s *explorerService) State(ctx context.Context, sessionID string) (*dto.ExplorerStateResponse, error) {
	x, err := s.explorer(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return toStateResponse(x), nil
}

func (s *explorerService) View(ctx context.Context, sessionID string, page, pageSize int) (*dto.SectionPageResponse, error) {
	x, err := s.explorer(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return toPageResponse(x.View(page, pageSize)), nil
}

func (s *explorerService) SetFilter(ctx context.Context, sessionID string, key filter.Key, value string) (*dto.ExplorerStateResponse, error) {
	return s.mutate(ctx, sessionID, func(x *explorer.Explorer) error { return x.ApplyFilter(key, value) })
}

func (s *explorerService) ClearFilter(ctx context.Context, sessionID string, key filter.Key) (*dto.ExplorerStateResponse, error) {
	return s.mutate(ctx, sessionID, func(x *explorer.Explorer) error { return x.ClearFilter(key) })
}

func (s *explorerService) SetFilterEnabled(ctx context.Context, sessionID string, key filter.Key, enabled bool) (*dto.ExplorerStateResponse, error) {
	return s.mutate(ctx, sessionID, func(x *explorer.Explorer) error { return x.SetEnabled(key, enabled) })
}

func (s *explorerService) DisableFilters(ctx context.Context, sessionID string) (*dto.ExplorerStateResponse, error) {
	return s.mutate(ctx, sessionID, func(x *explorer.Explorer) error { x.DisableAll(); return nil })
}

func (s *explorerService) ClearFilters(ctx context.Context, sessionID string) (*dto.ExplorerStateResponse, error) {
	return s.mutate(ctx, sessionID, func(x *explorer.Explorer) error { x.ClearAll(); return nil })
}

func (s *explorerService) Sort(ctx context.Context, sessionID string, key sorter.Key) (*dto.ExplorerStateResponse, error) {
	if key != "" && !slices.Contains(sorter.Keys, key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSortKey, key)
	}
	return s.mutate(ctx, sessionID, func(x *explorer.Explorer) error { x.Click(key); return nil })
}

func (s *explorerService) Subscribe(ctx context.Context, sessionID string) (<-chan explorer.Change, func(), error) {
	e, err := s.sessions.lookup(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	release := e.hold()
	ch, cancel := e.Explorer().Subscribe()
	return ch, func() { cancel(); release() }, nil
}

func (s *explorerService) mutate(ctx context.Context, sessionID string, fn func(*explorer.Explorer) error) (*dto.ExplorerStateResponse, error) {
	x, err := s.explorer(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(x); err != nil {
		return nil, err
	}
	return toStateResponse(x), nil
}

// ── 辅助函数 ──

func toStateResponse(x *explorer.Explorer) *dto.ExplorerStateResponse {
	return &dto.ExplorerStateResponse{
		Fields: dto.ToFilterFields(x.Fields()),
		Sort:   x.SortState(),
	}
}

func toPageResponse(v explorer.View) *dto.SectionPageResponse {
	return &dto.SectionPageResponse{
		Sections: v.Sections,
		Total:    v.Total,
		Page:     v.Page,
		PageSize: v.PageSize,
		Sort:     v.Sort,
	}
}
