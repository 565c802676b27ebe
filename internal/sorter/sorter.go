// Package sorter 按列排序班级列表。
//
// 比较函数始终按升序比较；降序在排序完成后整体反转，
// 反转时相等元素保持原有相对顺序。
package sorter

import (
	"cmp"
	"slices"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"semester-planner/internal/model"
)

// Key 排序列
type Key string

const (
	KeyCRN        Key = "crn"
	KeyCourse     Key = "course"
	KeySubject    Key = "subject"
	KeyTitle      Key = "title"
	KeyInstructor Key = "instructor"
	KeySection    Key = "section"
	KeySession    Key = "session"
	KeyTimes      Key = "times"
	KeyCap        Key = "cap"
	KeyCredits    Key = "cr"
)

// Keys 可排序的列
var Keys = []Key{KeyCRN, KeyCourse, KeySubject, KeyTitle, KeyInstructor, KeySection, KeySession, KeyTimes, KeyCap, KeyCredits}

// State 排序状态
type State struct {
	Key       Key  `json:"key"`
	Ascending bool `json:"ascending"`
}

// Default 默认按 CRN 升序
func Default() State { return State{Key: KeyCRN, Ascending: true} }

// Click 点击某一列后的新状态：
// 点击当前列时 升序 → 降序 → 恢复默认；点击其他列时切换为该列升序；key 为空时状态不变。
func (s State) Click(key Key) State {
	switch {
	case key == "":
		return s
	case key == s.Key && s.Ascending:
		return State{Key: key, Ascending: false}
	case key == s.Key:
		return Default()
	default:
		return State{Key: key, Ascending: true}
	}
}

// Sort 按 st 原地排序：先按列升序稳定排序，降序时再整体反转
func Sort(sections []model.Section, st State) {
	slices.SortStableFunc(sections, Comparator(st.Key))
	if !st.Ascending {
		slices.Reverse(sections)
	}
}

// Comparator 返回 key 列的升序比较函数；未知列视为全部相等
func Comparator(key Key) func(a, b model.Section) int {
	switch key {
	case KeyCRN:
		return func(a, b model.Section) int { return a.CRN - b.CRN }
	case KeyCourse:
		return func(a, b model.Section) int { return a.Course - b.Course }
	case KeySubject, KeyTitle, KeyInstructor, KeySection, KeySession:
		get := stringField(key)
		c := collate.New(language.English)
		return func(a, b model.Section) int { return c.CompareString(get(&a), get(&b)) }
	case KeyTimes:
		return compareTimes
	case KeyCap:
		return compareCap
	case KeyCredits:
		return compareCredits
	default:
		return func(model.Section, model.Section) int { return 0 }
	}
}

func stringField(key Key) func(*model.Section) string {
	switch key {
	case KeySubject:
		return func(s *model.Section) string { return s.Subject }
	case KeyTitle:
		return func(s *model.Section) string { return s.Title }
	case KeyInstructor:
		return func(s *model.Section) string { return s.Instructor }
	case KeySection:
		return func(s *model.Section) string { return s.Section }
	default:
		return func(s *model.Section) string { return s.Session }
	}
}

// earliest 开始时间最早的一组上课时间，开始相同取结束更早者
func earliest(times []model.TimeRange) model.TimeRange {
	first := times[0]
	for _, t := range times[1:] {
		if t.Start < first.Start || (t.Start == first.Start && t.End < first.End) {
			first = t
		}
	}
	return first
}

// compareTimes 比较最早一次上课时间，无上课时间的班级排在最后
func compareTimes(a, b model.Section) int {
	switch {
	case len(a.Times) == 0 && len(b.Times) == 0:
		return 0
	case len(a.Times) == 0:
		return 1
	case len(b.Times) == 0:
		return -1
	}
	ea, eb := earliest(a.Times), earliest(b.Times)
	return cmp.Or(cmp.Compare(ea.Start, eb.Start), cmp.Compare(ea.End, eb.End))
}

// compareCap 有容量数据的按满员比例排序并排在前面，都没有时按已选人数
func compareCap(a, b model.Section) int {
	switch {
	case !a.Cap.HasCapacity() && !b.Cap.HasCapacity():
		return cmp.Compare(a.Cap.Enrolled, b.Cap.Enrolled)
	case !a.Cap.HasCapacity():
		return 1
	case !b.Cap.HasCapacity():
		return -1
	}
	return cmp.Compare(a.Cap.FillRatio(), b.Cap.FillRatio())
}

func compareCredits(a, b model.Section) int {
	return cmp.Or(cmp.Compare(a.Credits.Lo, b.Credits.Lo), cmp.Compare(a.Credits.Hi, b.Credits.Hi))
}

// ── 有状态的排序器 ──

// Sorter 保存当前排序状态，可并发使用
type Sorter struct {
	mu    sync.Mutex
	state State
}

// New 创建默认状态的 Sorter
func New() *Sorter { return &Sorter{state: Default()} }

// SortBy 以 key 作为一次点击更新状态后原地排序；key 为空时按现有状态重新排序
func (s *Sorter) SortBy(key Key, sections []model.Section) State {
	st := s.Click(key)
	Sort(sections, st)
	return st
}

// Click 以 key 作为一次点击原子地更新状态
func (s *Sorter) Click(key Key) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.Click(key)
	return s.state
}

// State 当前状态
func (s *Sorter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
