package service

import (
	"errors"
	"net/url"
	"time"

	"go.uber.org/zap"

	"semester-planner/internal/catalog"
	"semester-planner/internal/dto"
	"semester-planner/internal/filter"
	"semester-planner/internal/model"
	apperrors "semester-planner/pkg/errors"
)

// CatalogService 课程目录只读查询
//
// 数据集未就绪时所有查询返回 apperrors.ErrNotReady（加载失败时为 ErrLoadFailure），
// Meta 除外。
type CatalogService interface {
	Meta() *dto.CatalogMetaResponse
	Ready() bool

	ListSubjects() ([]model.Subject, error)
	GetSubject(code string) (*model.Subject, error)
	ListCourses(subject string) ([]model.Course, error)
	GetCourse(subject string, course int) (*model.Course, error)
	ListSections(subject string, course int) ([]model.Section, error)
	GetSection(crn int) (*model.Section, error)
	RandomSection(query url.Values) (*model.Section, error)
	GetInstructor(name string) (*model.Instructor, error)
	ListInstructorSections(name string) ([]model.Section, error)
}

// Sourcer 可选接口：报告数据集来源
type Sourcer interface {
	Source() string
}

type catalogService struct {
	provider catalog.Provider
	logger   *zap.Logger
}

// NewCatalogService 创建 CatalogService 实例
func NewCatalogService(provider catalog.Provider, logger *zap.Logger) CatalogService {
	return &catalogService{provider: provider, logger: logger}
}

// ────────────────────── Meta ──────────────────────

func (s *catalogService) Meta() *dto.CatalogMetaResponse {
	resp := &dto.CatalogMetaResponse{}
	if src, ok := s.provider.(Sourcer); ok {
		resp.Source = src.Source()
	}

	idx, err := s.provider.Index()
	if err != nil {
		// 未就绪不算错误，只有加载失败才报告
		if !errors.Is(err, apperrors.ErrNotReady) {
			resp.Error = err.Error()
		}
		return resp
	}

	stats := idx.Stats()
	resp.Ready = true
	resp.Timestamp = idx.Timestamp().Format(time.RFC3339Nano)
	resp.Stats = &stats
	if meta, ok := idx.SemesterMeta(); ok {
		resp.Semester = meta.Semester
		resp.Year = meta.Year
	}
	return resp
}

func (s *catalogService) Ready() bool {
	select {
	case <-s.provider.Ready():
		return true
	default:
		return false
	}
}

// ────────────────────── 学科与课程 ──────────────────────

func (s *catalogService) ListSubjects() ([]model.Subject, error) {
	idx, err := s.provider.Index()
	if err != nil {
		return nil, err
	}
	return idx.GetSubjects(), nil
}

func (s *catalogService) GetSubject(code string) (*model.Subject, error) {
	idx, err := s.provider.Index()
	if err != nil {
		return nil, err
	}
	subject, err := idx.GetSubject(code)
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (s *catalogService) ListCourses(subject string) ([]model.Course, error) {
	idx, err := s.provider.Index()
	if err != nil {
		return nil, err
	}
	return idx.GetCourses(subject)
}

func (s *catalogService) GetCourse(subject string, course int) (*model.Course, error) {
	idx, err := s.provider.Index()
	if err != nil {
		return nil, err
	}
	c, err := idx.GetCourse(subject, course)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ────────────────────── 班级 ──────────────────────

func (s *catalogService) ListSections(subject string, course int) ([]model.Section, error) {
	idx, err := s.provider.Index()
	if err != nil {
		return nil, err
	}
	return idx.GetSections(subject, course)
}

func (s *catalogService) GetSection(crn int) (*model.Section, error) {
	idx, err := s.provider.Index()
	if err != nil {
		return nil, err
	}
	sec, err := idx.GetSection(crn)
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

// RandomSection 随机返回一个满足筛选参数的班级。
// 没有任何班级满足条件时返回 catalog.ErrSectionNotFound。
func (s *catalogService) RandomSection(query url.Values) (*model.Section, error) {
	idx, err := s.provider.Index()
	if err != nil {
		return nil, err
	}
	fields, err := filter.BuildFields(idx, query)
	if err != nil {
		return nil, err
	}
	pred := filter.BuildPredicate(fields)

	// 先确认存在满足条件的班级，避免拒绝采样无限循环
	all := idx.GetAllSections()
	if len(filter.Filter(all, pred)) == 0 {
		return nil, catalog.ErrSectionNotFound
	}

	sec, err := idx.GetRandomSection(pred)
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

// ────────────────────── 教师 ──────────────────────

func (s *catalogService) GetInstructor(name string) (*model.Instructor, error) {
	idx, err := s.provider.Index()
	if err != nil {
		return nil, err
	}
	ins, err := idx.GetInstructor(name)
	if err != nil {
		return nil, err
	}
	return &ins, nil
}

func (s *catalogService) ListInstructorSections(name string) ([]model.Section, error) {
	idx, err := s.provider.Index()
	if err != nil {
		return nil, err
	}
	return idx.GetInstructorSections(name)
}
