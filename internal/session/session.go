// Package session 单个选课会话的可变状态：已选班级、临时预览班级与屏蔽时段。
//
// 每次修改都会在防抖窗口静默后广播一次最新快照，并把快照写入键值存储；
// 存储写入失败只记录日志，不回滚内存状态。
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"semester-planner/internal/conflict"
	"semester-planner/internal/model"
	"semester-planner/pkg/debounce"
	"semester-planner/pkg/eventbus"
)

// DefaultDebounce 默认广播防抖窗口
const DefaultDebounce = 100 * time.Millisecond

var ErrBlockOutInvalid = errors.New("屏蔽时段时间格式错误或结束早于开始")

// Catalog 会话依赖的目录查询，*catalog.Index 满足该接口
type Catalog interface {
	GetSection(crn int) (model.Section, error)
	GetSectionCrns(subject string, number int) ([]int, error)
}

// Store 持久化键值存储，值以 JSON 编码
type Store interface {
	Set(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string, dest any) (bool, error)
}

// Action AddSection / Switch 实际执行的动作
type Action string

const (
	ActionNone     Action = "none"
	ActionAdded    Action = "added"
	ActionRemoved  Action = "removed"
	ActionSwitched Action = "switched"
)

// Snapshot 一次广播的内容
type Snapshot struct {
	Version   uint64           `json:"version"`
	Selected  []model.Section  `json:"sections"`
	Temp      []model.Section  `json:"temp_sections"`
	BlockOuts []model.BlockOut `json:"block_outs"`
}

// Keys 持久化使用的键
type Keys struct {
	Sections  string
	BlockOuts string
	Temp      string
}

// NewKeys 生成键名；id 为空时与单用户场景的键名一致
func NewKeys(prefix, id string) Keys {
	suffix := ""
	if id != "" {
		suffix = ":" + id
	}
	return Keys{
		Sections:  prefix + ".sections" + suffix,
		BlockOuts: prefix + ".blockOuts" + suffix,
		Temp:      prefix + ".tempSections" + suffix,
	}
}

// Config 会话配置
type Config struct {
	ID          string
	KeyPrefix   string
	Debounce    time.Duration
	PersistTemp bool
}

// Session 选课会话，可并发使用
type Session struct {
	id          string
	catalog     Catalog
	store       Store
	keys        Keys
	persistTemp bool
	logger      *zap.Logger

	checker   *conflict.Checker
	debouncer *debounce.Debouncer
	bus       *eventbus.Bus[Snapshot]
	now       func() time.Time
	loc       *time.Location
	newID     func() string
	afterFunc debounce.AfterFunc

	mu        sync.Mutex
	selected  []model.Section
	temp      []model.Section
	blockOuts []model.BlockOut
	version   uint64
	closed    bool
}

// Option 会话选项
type Option func(*Session)

// WithClock 替换当前时间来源
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLocation 屏蔽时段所在时区，默认 time.Local
func WithLocation(loc *time.Location) Option {
	return func(s *Session) { s.loc = loc }
}

// WithChecker 使用外部的冲突判定器
func WithChecker(c *conflict.Checker) Option {
	return func(s *Session) { s.checker = c }
}

// WithAfterFunc 替换防抖器的调度函数
func WithAfterFunc(af debounce.AfterFunc) Option {
	return func(s *Session) { s.afterFunc = af }
}

// WithIDGenerator 替换屏蔽时段 ID 生成函数
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) { s.newID = fn }
}

// New 创建空会话。store 为 nil 时不持久化。
func New(cfg Config, cat Catalog, store Store, logger *zap.Logger, opts ...Option) *Session {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "semesterService"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		id:          cfg.ID,
		catalog:     cat,
		store:       store,
		keys:        NewKeys(cfg.KeyPrefix, cfg.ID),
		persistTemp: cfg.PersistTemp,
		logger:      logger.With(zap.String("session_id", cfg.ID)),
		bus:         eventbus.New[Snapshot](4),
		now:         time.Now,
		loc:         time.Local,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.checker == nil {
		s.checker = conflict.NewChecker()
	}
	if s.afterFunc == nil {
		s.debouncer = debounce.New(cfg.Debounce, s.broadcast)
	} else {
		s.debouncer = debounce.NewWithAfterFunc(cfg.Debounce, s.broadcast, s.afterFunc)
	}
	return s
}

// ID 会话 ID
func (s *Session) ID() string { return s.id }

// ────────────────────── 已选班级 ──────────────────────

// AddSection 添加班级；已添加时改为移除。CRN 无法解析时静默忽略并返回 ActionNone。
func (s *Session) AddSection(crn int) Action {
	s.mu.Lock()
	if indexOf(s.selected, crn) >= 0 {
		s.removeSectionLocked(crn)
		s.mu.Unlock()
		s.changed()
		return ActionRemoved
	}

	sec, err := s.catalog.GetSection(crn)
	if err != nil {
		s.mu.Unlock()
		s.logger.Debug("忽略无法解析的 CRN", zap.Int("crn", crn), zap.Error(err))
		return ActionNone
	}
	s.temp = removeCRN(s.temp, crn)
	s.selected = append(s.selected, sec)
	s.mu.Unlock()

	s.changed()
	return ActionAdded
}

// RemoveSection 移除已选班级；未添加时不做任何事
func (s *Session) RemoveSection(crn int) bool {
	s.mu.Lock()
	ok := s.removeSectionLocked(crn)
	s.mu.Unlock()
	if ok {
		s.changed()
	}
	return ok
}

func (s *Session) removeSectionLocked(crn int) bool {
	n := len(s.selected)
	s.selected = removeCRN(s.selected, crn)
	return len(s.selected) != n
}

// RemoveCourse 移除某课程下的全部已选班级
func (s *Session) RemoveCourse(subject string, number int) int {
	s.mu.Lock()
	n := len(s.selected)
	s.selected = slices.DeleteFunc(s.selected, func(sec model.Section) bool {
		return sec.Subject == subject && sec.Course == number
	})
	removed := n - len(s.selected)
	s.mu.Unlock()

	s.changed()
	return removed
}

// ClearSections 清空已选班级
func (s *Session) ClearSections() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	s.changed()
}

// Switch 选课面板的点击动作：
// 已添加则移除；同课程已有其他班级则替换；否则添加。
func (s *Session) Switch(crn int) (Action, error) {
	sec, err := s.catalog.GetSection(crn)
	if err != nil {
		return ActionNone, err
	}

	s.mu.Lock()
	switch {
	case indexOf(s.selected, crn) >= 0:
		s.removeSectionLocked(crn)
		s.mu.Unlock()
		s.changed()
		return ActionRemoved, nil
	case s.courseAddedLocked(sec.Subject, sec.Course):
		s.selected = slices.DeleteFunc(s.selected, func(x model.Section) bool {
			return x.Subject == sec.Subject && x.Course == sec.Course
		})
		s.temp = removeCRN(s.temp, crn)
		s.selected = append(s.selected, sec)
		s.mu.Unlock()
		s.changed()
		return ActionSwitched, nil
	default:
		s.temp = removeCRN(s.temp, crn)
		s.selected = append(s.selected, sec)
		s.mu.Unlock()
		s.changed()
		return ActionAdded, nil
	}
}

// IsSectionAdded CRN 是否已选
func (s *Session) IsSectionAdded(crn int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.selected, crn) >= 0
}

// IsCourseAdded 课程下是否有已选班级
func (s *Session) IsCourseAdded(subject string, number int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.courseAddedLocked(subject, number)
}

func (s *Session) courseAddedLocked(subject string, number int) bool {
	return slices.ContainsFunc(s.selected, func(x model.Section) bool {
		return x.Subject == subject && x.Course == number
	})
}

// SelectedCRNs 已选 CRN，按添加顺序
func (s *Session) SelectedCRNs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return crnsOf(s.selected)
}

// ────────────────────── 临时预览 ──────────────────────

// AddTempSection 加入临时预览；已选或已在预览中时不做任何事
func (s *Session) AddTempSection(crn int) bool {
	s.mu.Lock()
	if indexOf(s.selected, crn) >= 0 || indexOf(s.temp, crn) >= 0 {
		s.mu.Unlock()
		return false
	}
	sec, err := s.catalog.GetSection(crn)
	if err != nil {
		s.mu.Unlock()
		s.logger.Debug("忽略无法解析的临时 CRN", zap.Int("crn", crn), zap.Error(err))
		return false
	}
	s.temp = append(s.temp, sec)
	s.mu.Unlock()

	s.changed()
	return true
}

// RemoveTempSection 移出临时预览
func (s *Session) RemoveTempSection(crn int) bool {
	s.mu.Lock()
	n := len(s.temp)
	s.temp = removeCRN(s.temp, crn)
	ok := len(s.temp) != n
	s.mu.Unlock()
	if ok {
		s.changed()
	}
	return ok
}

// ────────────────────── 屏蔽时段 ──────────────────────

// AddBlockOut 添加屏蔽时段，start/end 为 2006-01-02T15:04:05 格式的本地时间
func (s *Session) AddBlockOut(text, start, end string) (model.BlockOut, error) {
	b := model.BlockOut{Text: text, Start: start, End: end}
	from, to, err := b.Bounds(s.loc)
	if err != nil {
		return model.BlockOut{}, fmt.Errorf("%w: %v", ErrBlockOutInvalid, err)
	}
	if to.Before(from) {
		return model.BlockOut{}, ErrBlockOutInvalid
	}
	b.ID = s.newID()

	s.mu.Lock()
	s.blockOuts = append(s.blockOuts, b)
	s.mu.Unlock()

	s.changed()
	return b, nil
}

// RemoveBlockOut 按 ID 删除屏蔽时段
func (s *Session) RemoveBlockOut(id string) bool {
	s.mu.Lock()
	n := len(s.blockOuts)
	s.blockOuts = slices.DeleteFunc(s.blockOuts, func(b model.BlockOut) bool { return b.ID == id })
	ok := len(s.blockOuts) != n
	s.mu.Unlock()

	s.changed()
	return ok
}

// ClearBlockOuts 清空屏蔽时段
func (s *Session) ClearBlockOuts() {
	s.mu.Lock()
	s.blockOuts = nil
	s.mu.Unlock()
	s.changed()
}

// ────────────────────── 冲突 ──────────────────────

// IsSectionConflict 候选班级是否与任一已选班级冲突
func (s *Session) IsSectionConflict(crn int) (bool, error) {
	sec, err := s.catalog.GetSection(crn)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	selected := slices.Clone(s.selected)
	s.mu.Unlock()

	return s.checker.ConflictsAny(&sec, selected), nil
}

// IsCourseConflict 课程的每个班级都与已选班级冲突时返回 true。
// 课程没有任何班级时同样返回 true。
func (s *Session) IsCourseConflict(subject string, number int) (bool, error) {
	crns, err := s.catalog.GetSectionCrns(subject, number)
	if err != nil {
		return false, err
	}
	for _, crn := range crns {
		ok, err := s.IsSectionConflict(crn)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ────────────────────── 广播 ──────────────────────

// Subscribe 订阅广播
func (s *Session) Subscribe() (<-chan Snapshot, func()) { return s.bus.Subscribe() }

// Broadcast 调度一次广播；sendNow 为 true 时跳过防抖窗口
func (s *Session) Broadcast(sendNow bool) {
	if sendNow {
		s.debouncer.TriggerNow()
		return
	}
	s.debouncer.Trigger()
}

func (s *Session) changed() { s.debouncer.Trigger() }

// Flush 若有待执行的广播则立即在当前 goroutine 执行
func (s *Session) Flush() bool { return s.debouncer.Flush() }

// Snapshot 当前状态副本
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Version:   s.version,
		Selected:  cloneSections(s.selected),
		Temp:      cloneSections(s.temp),
		BlockOuts: append([]model.BlockOut{}, s.blockOuts...),
	}
}

func (s *Session) broadcast() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(snap)
	s.persist(snap)
}

func (s *Session) persist(snap Snapshot) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.Set(ctx, s.keys.Sections, crnsOf(snap.Selected)); err != nil {
		s.logger.Warn("保存已选班级失败", zap.Error(err))
	}
	if err := s.store.Set(ctx, s.keys.BlockOuts, snap.BlockOuts); err != nil {
		s.logger.Warn("保存屏蔽时段失败", zap.Error(err))
	}
	if s.persistTemp {
		if err := s.store.Set(ctx, s.keys.Temp, crnsOf(snap.Temp)); err != nil {
			s.logger.Warn("保存临时班级失败", zap.Error(err))
		}
	}
}

// ────────────────────── 恢复 ──────────────────────

// Restore 从存储恢复会话：丢弃无法解析的 CRN，把屏蔽时段移到本周同一天同一时间，然后立即广播一次
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	var crns, tempCRNs []int
	var blockOuts []model.BlockOut
	if _, err := s.store.Get(ctx, s.keys.Sections, &crns); err != nil {
		return fmt.Errorf("读取已选班级失败: %w", err)
	}
	if _, err := s.store.Get(ctx, s.keys.BlockOuts, &blockOuts); err != nil {
		return fmt.Errorf("读取屏蔽时段失败: %w", err)
	}
	if s.persistTemp {
		if _, err := s.store.Get(ctx, s.keys.Temp, &tempCRNs); err != nil {
			return fmt.Errorf("读取临时班级失败: %w", err)
		}
	}

	selected := s.resolve(crns, nil)
	temp := s.resolve(tempCRNs, selected)

	now := s.now().In(s.loc)
	anchored := make([]model.BlockOut, 0, len(blockOuts))
	for _, b := range blockOuts {
		moved, err := ReanchorToWeek(b, now)
		if err != nil {
			s.logger.Warn("丢弃格式错误的屏蔽时段", zap.String("id", b.ID), zap.Error(err))
			continue
		}
		anchored = append(anchored, moved)
	}

	s.mu.Lock()
	s.selected, s.temp, s.blockOuts = selected, temp, anchored
	s.mu.Unlock()

	s.logger.Info("会话已恢复",
		zap.Int("sections", len(selected)),
		zap.Int("dropped", len(crns)-len(selected)),
		zap.Int("block_outs", len(anchored)),
	)
	s.debouncer.TriggerNow()
	return nil
}

// resolve 解析 CRN，跳过无法解析或已在 exclude 中的
func (s *Session) resolve(crns []int, exclude []model.Section) []model.Section {
	out := make([]model.Section, 0, len(crns))
	for _, crn := range crns {
		if indexOf(out, crn) >= 0 || indexOf(exclude, crn) >= 0 {
			continue
		}
		sec, err := s.catalog.GetSection(crn)
		if err != nil {
			continue
		}
		out = append(out, sec)
	}
	return out
}

// Close 执行尚未发出的广播并关闭订阅通道
func (s *Session) Close() {
	s.debouncer.Flush()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.debouncer.Stop()
	s.bus.Close()
}

// ── helpers ──

func indexOf(sections []model.Section, crn int) int {
	return slices.IndexFunc(sections, func(s model.Section) bool { return s.CRN == crn })
}

func removeCRN(sections []model.Section, crn int) []model.Section {
	return slices.DeleteFunc(sections, func(s model.Section) bool { return s.CRN == crn })
}

func crnsOf(sections []model.Section) []int {
	out := make([]int, len(sections))
	for i, s := range sections {
		out[i] = s.CRN
	}
	return out
}

func cloneSections(sections []model.Section) []model.Section {
	if sections == nil {
		return []model.Section{}
	}
	out := make([]model.Section, len(sections))
	for i, s := range sections {
		out[i] = s.Clone()
	}
	return out
}
