// Package explorer 班级浏览视图：筛选字段 + 排序状态 + 分页。
//
// 每个选课会话持有一个 Explorer；筛选条件变化时在事件总线上发布新的谓词，
// 列表始终按当前排序状态重新排序。
package explorer

import (
	"fmt"
	"net/url"
	"sync"

	"semester-planner/internal/catalog"
	"semester-planner/internal/filter"
	"semester-planner/internal/model"
	"semester-planner/internal/sorter"
	"semester-planner/pkg/eventbus"
)

// 分页参数
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Change 筛选条件变化通知
type Change struct {
	Version   uint64            `json:"version"`
	Fields    []filter.Field    `json:"-"`
	Predicate catalog.Predicate `json:"-"`
}

// View 一页班级
type View struct {
	Sections []model.Section `json:"sections"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Sort     sorter.State    `json:"sort"`
}

// Explorer 有状态的浏览器，可并发使用
type Explorer struct {
	idx    *catalog.Index
	sorter *sorter.Sorter
	bus    *eventbus.Bus[Change]

	mu      sync.Mutex
	fields  []filter.Field
	pred    catalog.Predicate
	version uint64
}

// New 根据目录生成字段，并用 query 预填。预填失败的字段保持停用，错误一并返回。
func New(idx *catalog.Index, query url.Values) (*Explorer, error) {
	fields, err := filter.BuildFields(idx, query)
	e := &Explorer{
		idx:    idx,
		sorter: sorter.New(),
		bus:    eventbus.New[Change](4),
		fields: fields,
		pred:   filter.BuildPredicate(fields),
	}
	return e, err
}

// Fields 当前字段副本
func (e *Explorer) Fields() []filter.Field {
	e.mu.Lock()
	defer e.mu.Unlock()
	return filter.CloneFields(e.fields)
}

// Predicate 当前谓词
func (e *Explorer) Predicate() catalog.Predicate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pred
}

// ApplyFilter 设置某一字段的值并启用
func (e *Explorer) ApplyFilter(key filter.Key, raw string) error {
	return e.update(func(fields []filter.Field) error {
		ok, err := filter.ApplyRaw(fields, key, raw)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %q", filter.ErrUnknownField, key)
		}
		return nil
	})
}

// ClearFilter 清空某一字段的值
func (e *Explorer) ClearFilter(key filter.Key) error {
	return e.update(func(fields []filter.Field) error {
		if !filter.Clear(fields, key) {
			return fmt.Errorf("%w: %q", filter.ErrUnknownField, key)
		}
		return nil
	})
}

// SetEnabled 切换某一字段的启用状态
func (e *Explorer) SetEnabled(key filter.Key, enabled bool) error {
	return e.update(func(fields []filter.Field) error {
		if !filter.SetEnabled(fields, key, enabled) {
			return fmt.Errorf("%w: %q", filter.ErrUnknownField, key)
		}
		return nil
	})
}

// DisableAll 停用全部字段，保留已选值
func (e *Explorer) DisableAll() {
	_ = e.update(func(fields []filter.Field) error {
		filter.DisableAll(fields)
		return nil
	})
}

// ClearAll 停用并清空全部字段
func (e *Explorer) ClearAll() {
	_ = e.update(func(fields []filter.Field) error {
		filter.ClearAll(fields)
		return nil
	})
}

// update 在副本上修改字段，成功后替换并发布新的谓词
func (e *Explorer) update(fn func([]filter.Field) error) error {
	e.mu.Lock()
	fields := filter.CloneFields(e.fields)
	if err := fn(fields); err != nil {
		e.mu.Unlock()
		return err
	}
	e.fields = fields
	e.pred = filter.BuildPredicate(fields)
	e.version++
	change := Change{Version: e.version, Fields: filter.CloneFields(fields), Predicate: e.pred}
	e.mu.Unlock()

	e.bus.Publish(change)
	return nil
}

// Click 点击排序列，返回新的排序状态
func (e *Explorer) Click(key sorter.Key) sorter.State {
	return e.sorter.Click(key)
}

// SortState 当前排序状态
func (e *Explorer) SortState() sorter.State { return e.sorter.State() }

// View 按当前筛选与排序返回第 page 页（从 1 开始）
func (e *Explorer) View(page, pageSize int) View {
	sections := e.idx.GetAllSections()
	if pred := e.Predicate(); pred != nil {
		sections = filter.Filter(sections, pred)
	}
	// 空 key 只按现有状态重新排序
	st := e.sorter.SortBy("", sections)
	return paginate(sections, st, page, pageSize)
}

// Subscribe 订阅筛选条件变化
func (e *Explorer) Subscribe() (<-chan Change, func()) { return e.bus.Subscribe() }

// Close 关闭事件总线
func (e *Explorer) Close() { e.bus.Close() }

// List 无状态地筛选、排序并分页
func List(idx *catalog.Index, pred catalog.Predicate, st sorter.State, page, pageSize int) View {
	sections := idx.GetAllSections()
	if pred != nil {
		sections = filter.Filter(sections, pred)
	}
	sorter.Sort(sections, st)
	return paginate(sections, st, page, pageSize)
}

func paginate(sections []model.Section, st sorter.State, page, pageSize int) View {
	page, pageSize = normalizePage(page, pageSize)
	view := View{Total: len(sections), Page: page, PageSize: pageSize, Sort: st}

	start := (page - 1) * pageSize
	if start >= len(sections) {
		view.Sections = []model.Section{}
		return view
	}
	end := min(start+pageSize, len(sections))
	view.Sections = sections[start:end]
	return view
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}
