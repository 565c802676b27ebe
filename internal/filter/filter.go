// Package filter 由若干可独立开关的字段条件组合出班级筛选谓词。
package filter

import (
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"slices"

	"semester-planner/internal/catalog"
	"semester-planner/internal/model"
)

// MaxCredits 学分选项上限
const MaxCredits = 12

// Option 候选值
type Option struct {
	Value Value
	Label string
}

// Field 单个筛选字段。Enabled 为 false 或 Value 为 nil 时该字段不参与筛选。
type Field struct {
	Key     Key
	Label   string
	Enabled bool
	Value   Value
	Options []Option
	Input   string // 搜索框内容，仅供展示层使用
}

// Active 该字段是否参与筛选
func (f Field) Active() bool { return f.Enabled && f.Value != nil }

// BuildPredicate 将启用的字段按逻辑与组合为一个谓词。
// 返回的谓词持有字段值的快照，之后修改 fields 不影响它。
func BuildPredicate(fields []Field) catalog.Predicate {
	var active []Value
	for i := range fields {
		if fields[i].Active() {
			active = append(active, fields[i].Value)
		}
	}
	return func(s *model.Section) bool {
		for _, v := range active {
			if !v.Match(s) {
				return false
			}
		}
		return true
	}
}

// Apply 设置 Key 与 v.Key() 相同的字段值并启用它；没有该字段时返回 false
func Apply(fields []Field, v Value) bool {
	for i := range fields {
		if fields[i].Key == v.Key() {
			fields[i].Value = v
			fields[i].Enabled = true
			return true
		}
	}
	return false
}

// ApplyRaw 解析字符串值后调用 Apply
func ApplyRaw(fields []Field, key Key, raw string) (bool, error) {
	i := indexOf(fields, key)
	if i < 0 {
		return false, nil
	}
	v, err := ParseValue(key, raw)
	if err != nil {
		return false, err
	}
	if t, ok := v.(TagValue); ok && t.Long == "" {
		v = fields[i].resolveTag(t)
	}
	return Apply(fields, v), nil
}

// Clear 清空某一字段的值与搜索框，不改变启用状态
func Clear(fields []Field, key Key) bool {
	i := indexOf(fields, key)
	if i < 0 {
		return false
	}
	fields[i].Value = nil
	fields[i].Input = ""
	return true
}

// SetEnabled 切换某一字段的启用状态
func SetEnabled(fields []Field, key Key, enabled bool) bool {
	i := indexOf(fields, key)
	if i < 0 {
		return false
	}
	fields[i].Enabled = enabled
	return true
}

// DisableAll 停用全部字段，保留已选值
func DisableAll(fields []Field) {
	for i := range fields {
		fields[i].Enabled = false
	}
}

// ClearAll 停用全部字段并清空已选值
func ClearAll(fields []Field) {
	for i := range fields {
		fields[i].Enabled = false
		fields[i].Value = nil
	}
}

// Filter 返回满足 pred 的班级，保持原有顺序
func Filter(sections []model.Section, pred catalog.Predicate) []model.Section {
	out := make([]model.Section, 0, len(sections))
	for i := range sections {
		if pred(&sections[i]) {
			out = append(out, sections[i])
		}
	}
	return out
}

// CloneFields 复制字段列表，Options 共享（只读）
func CloneFields(fields []Field) []Field {
	return slices.Clone(fields)
}

func indexOf(fields []Field, key Key) int {
	return slices.IndexFunc(fields, func(f Field) bool { return f.Key == key })
}

// resolveTag 用候选项补全标签全称
func (f *Field) resolveTag(t TagValue) Value {
	for _, o := range f.Options {
		if ot, ok := o.Value.(TagValue); ok && ot.Short == t.Short {
			return ot
		}
	}
	return t
}

// ────────────────────── 字段生成 ──────────────────────

// BuildFields 根据目录生成字段及其候选项，并用 query 中同名参数预填。
// 无法解析的参数对应字段保持停用，错误合并后返回。
func BuildFields(idx *catalog.Index, query url.Values) ([]Field, error) {
	sections := idx.GetAllSections()

	subjects := idx.GetSubjects()
	subjectOpts := make([]Option, 0, len(subjects))
	for _, s := range subjects {
		subjectOpts = append(subjectOpts, Option{Value: SubjectValue(s.Code), Label: s.Code})
	}

	var (
		courses     = uniqueSorted(sections, func(s *model.Section) (int, bool) { return s.Course, true })
		titles      = uniqueSorted(sections, func(s *model.Section) (string, bool) { return s.Title, true })
		instructors = uniqueSorted(sections, func(s *model.Section) (string, bool) { return s.Instructor, s.Instructor != "" })
	)

	fields := []Field{
		{Key: KeySubject, Label: "Subject", Options: subjectOpts},
		{Key: KeyCourse, Label: "Course Number", Options: options(courses, func(n int) Value { return CourseValue(n) })},
		{Key: KeyTitle, Label: "Title", Options: options(titles, func(s string) Value { return TitleValue(s) })},
		{Key: KeyInstructor, Label: "Instructor", Options: options(instructors, func(s string) Value { return InstructorValue(s) })},
		{Key: KeyTags, Label: "Tags", Options: tagOptions(sections)},
		{Key: KeyCredits, Label: "Credit Hours", Options: creditOptions()},
	}

	if meta, ok := idx.SemesterMeta(); ok && meta.IsSummer() {
		sessions := uniqueSorted(sections, func(s *model.Section) (string, bool) { return s.Session, true })
		fields = append(fields, Field{
			Key:     KeySession,
			Label:   "Session",
			Options: options(sessions, func(s string) Value { return SessionValue(s) }),
		})
	}

	var errs []error
	for i := range fields {
		raw := query.Get(string(fields[i].Key))
		if raw == "" {
			continue
		}
		if _, err := ApplyRaw(fields, fields[i].Key, raw); err != nil {
			errs = append(errs, err)
		}
	}
	return fields, errors.Join(errs...)
}

func uniqueSorted[T cmp.Ordered](sections []model.Section, get func(*model.Section) (T, bool)) []T {
	seen := make(map[T]struct{})
	var out []T
	for i := range sections {
		v, ok := get(&sections[i])
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func options[T any](values []T, wrap func(T) Value) []Option {
	out := make([]Option, 0, len(values))
	for _, v := range values {
		val := wrap(v)
		out = append(out, Option{Value: val, Label: val.String()})
	}
	return out
}

// tagOptions 标签按首次出现顺序去重，同一缩写以最后一次出现的全称为准
func tagOptions(sections []model.Section) []Option {
	pos := make(map[string]int)
	var out []Option
	for i := range sections {
		for _, t := range sections[i].Tags {
			v := TagValue(t)
			if j, ok := pos[t.Short]; ok {
				out[j] = Option{Value: v, Label: v.String()}
				continue
			}
			pos[t.Short] = len(out)
			out = append(out, Option{Value: v, Label: v.String()})
		}
	}
	return out
}

func creditOptions() []Option {
	out := make([]Option, 0, MaxCredits+1)
	for n := 0; n <= MaxCredits; n++ {
		v := CreditValue(n)
		out = append(out, Option{Value: v, Label: fmt.Sprint(n)})
	}
	return out
}
