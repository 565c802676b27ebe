// Package conflict 判断两个班级的每周上课时间是否冲突，并按 CRN 对缓存结果。
package conflict

import (
	"cmp"
	"slices"
	"sync"

	"semester-planner/internal/model"
)

// Weekdays 参与冲突检测的星期代码，U 为周日，R 为周四
const Weekdays = "UMTWRFS"

// SectionsConflict 两个班级是否在同一天存在时间重叠。
// 首尾相接（前一节结束时间等于后一节开始时间）也视为冲突。
func SectionsConflict(a, b *model.Section) bool {
	am, bm := a.Meetings(), b.Meetings()
	if len(am) == 0 || len(bm) == 0 {
		return false
	}

	var day []model.TimeRange
	for i := 0; i < len(Weekdays); i++ {
		d := Weekdays[i]
		day = day[:0]
		for _, m := range am {
			if m.Day == d {
				day = append(day, m.Time)
			}
		}
		for _, m := range bm {
			if m.Day == d {
				day = append(day, m.Time)
			}
		}
		if len(day) < 2 {
			continue
		}
		slices.SortFunc(day, func(x, y model.TimeRange) int { return cmp.Compare(x.Start, y.Start) })
		for j := 0; j+1 < len(day); j++ {
			if day[j].End >= day[j+1].Start {
				return true
			}
		}
	}
	return false
}

// PairKey 与顺序无关的缓存键，假定 CRN 不超过 5 位
func PairKey(a, b int) int64 {
	lo, hi := min(a, b), max(a, b)
	return int64(lo)*100000 + int64(hi)
}

// CompareFunc 冲突判定函数
type CompareFunc func(a, b *model.Section) bool

// Checker 带缓存的冲突判定器，缓存不淘汰
type Checker struct {
	compare CompareFunc

	mu    sync.Mutex
	cache map[int64]bool
}

// Option Checker 选项
type Option func(*Checker)

// WithCompare 替换底层判定函数
func WithCompare(fn CompareFunc) Option {
	return func(c *Checker) { c.compare = fn }
}

// NewChecker 创建 Checker
func NewChecker(opts ...Option) *Checker {
	c := &Checker{compare: SectionsConflict, cache: make(map[int64]bool)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Conflicts 判断 a、b 是否冲突，结果按 CRN 对缓存。
// 有上课时间的班级与自身冲突，因此已选班级作为候选时总是冲突。
func (c *Checker) Conflicts(a, b *model.Section) bool {
	key := PairKey(a.CRN, b.CRN)

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cache[key]; ok {
		return v
	}
	v := c.compare(a, b)
	c.cache[key] = v
	return v
}

// ConflictsAny candidate 是否与 others 中任一班级冲突
func (c *Checker) ConflictsAny(candidate *model.Section, others []model.Section) bool {
	for i := range others {
		if c.Conflicts(candidate, &others[i]) {
			return true
		}
	}
	return false
}

// Len 已缓存的 CRN 对数量
func (c *Checker) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Reset 清空缓存
func (c *Checker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.cache)
}
