// Package catalog 课程目录索引。
//
// Index 在构建后只读，可被多个 goroutine 并发查询；所有返回值都是副本，
// 调用方无法通过返回值修改索引内部状态。
package catalog

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"semester-planner/internal/model"
	apperrors "semester-planner/pkg/errors"
	"semester-planner/pkg/sortedindex"
)

// ── 查找错误 ──

var (
	ErrSubjectNotFound    = fmt.Errorf("学科%w", apperrors.ErrNotFound)
	ErrCourseNotFound     = fmt.Errorf("课程%w", apperrors.ErrNotFound)
	ErrSectionNotFound    = fmt.Errorf("班级%w", apperrors.ErrNotFound)
	ErrInstructorNotFound = fmt.Errorf("教师%w", apperrors.ErrNotFound)
	ErrEmptyCatalog       = errors.New("课程目录为空")
)

// Predicate 班级筛选条件
type Predicate func(*model.Section) bool

type courseKey struct {
	subject string
	number  int
}

// Index 课程目录只读索引
type Index struct {
	subjects     []model.Subject
	subjectIdx   map[string]int
	courses      map[string][]model.Course // 学科 → 课程（加载顺序）
	courseIdx    map[courseKey]int         // (学科, 课程号) → courses[学科] 下标
	sections     *sortedindex.Index[model.Section, int]
	instructors  *sortedindex.Index[model.Instructor, string]
	timestamp    time.Time
	semesterMeta *model.SemesterMeta

	rand func(n int) int
}

// Option Index 构建选项
type Option func(*Index)

// WithRand 替换随机数来源，测试用
func WithRand(intN func(n int) int) Option {
	return func(x *Index) { x.rand = intN }
}

// New 由数据集构建索引。
// 学科、课程、教师中的下标引用在此解析为 CRN；越界下标视为载荷损坏。
// 重复 CRN 不做检测，由上游数据生成保证。
func New(ds *model.Dataset, opts ...Option) (*Index, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: 数据集为空", apperrors.ErrLoadFailure)
	}

	x := &Index{
		subjectIdx: make(map[string]int, len(ds.Subjects)),
		courses:    make(map[string][]model.Course, len(ds.Subjects)),
		courseIdx:  make(map[courseKey]int, len(ds.Courses)),
		rand:       rand.IntN,
	}
	for _, opt := range opts {
		opt(x)
	}

	crnAt := func(idx int) (int, error) {
		if idx < 0 || idx >= len(ds.Sections) {
			return 0, fmt.Errorf("%w: section 下标 %d 越界", apperrors.ErrLoadFailure, idx)
		}
		return ds.Sections[idx].CRN, nil
	}

	// ── 课程 ──
	resolved := make([]model.Course, len(ds.Courses))
	for i, rec := range ds.Courses {
		crns := make([]int, 0, len(rec.SectionIdxs))
		for _, si := range rec.SectionIdxs {
			crn, err := crnAt(si)
			if err != nil {
				return nil, err
			}
			crns = append(crns, crn)
		}
		resolved[i] = model.Course{
			Subject:     rec.Subject,
			Number:      rec.Course,
			Credits:     rec.Credits,
			Title:       rec.Title,
			Description: rec.Description,
			Tags:        slices.Clone(rec.Tags),
			CRNs:        crns,
		}
	}

	// ── 学科 ──
	x.subjects = make([]model.Subject, 0, len(ds.Subjects))
	for _, rec := range ds.Subjects {
		subj := model.Subject{Code: rec.Subject, Title: rec.Title}
		owned := make([]model.Course, 0, len(rec.CourseIdxs))
		for _, ci := range rec.CourseIdxs {
			if ci < 0 || ci >= len(resolved) {
				return nil, fmt.Errorf("%w: course 下标 %d 越界", apperrors.ErrLoadFailure, ci)
			}
			c := resolved[ci]
			x.courseIdx[courseKey{rec.Subject, c.Number}] = len(owned)
			owned = append(owned, c)
			subj.CourseNumbers = append(subj.CourseNumbers, c.Number)
		}
		x.subjectIdx[rec.Subject] = len(x.subjects)
		x.subjects = append(x.subjects, subj)
		x.courses[rec.Subject] = owned
	}

	// ── 教师 ──
	instructors := make([]model.Instructor, 0, len(ds.Instructors))
	for _, rec := range ds.Instructors {
		crns := make([]int, 0, len(rec.SectionIdxs))
		for _, si := range rec.SectionIdxs {
			crn, err := crnAt(si)
			if err != nil {
				return nil, err
			}
			crns = append(crns, crn)
		}
		instructors = append(instructors, model.Instructor{Name: rec.Name, CRNs: crns})
	}

	x.sections = sortedindex.New(ds.Sections, sectionCRN, cmp.Compare[int])
	x.instructors = sortedindex.New(instructors, instructorName, compareFold)

	if ds.Timestamp > 0 {
		sec := int64(ds.Timestamp)
		nsec := int64((ds.Timestamp - float64(sec)) * float64(time.Second))
		x.timestamp = time.Unix(sec, nsec).UTC()
	}
	if ds.Semester != nil {
		meta := *ds.Semester
		x.semesterMeta = &meta
	}

	return x, nil
}

func sectionCRN(s model.Section) int          { return s.CRN }
func instructorName(i model.Instructor) string { return i.Name }

// compareFold 大小写不敏感的姓名比较
func compareFold(a, b string) int {
	return strings.Compare(strings.ToUpper(a), strings.ToUpper(b))
}

// ────────────────────── 学科 / 课程 ──────────────────────

// GetSubjects 全部学科，保持加载顺序
func (x *Index) GetSubjects() []model.Subject {
	out := make([]model.Subject, len(x.subjects))
	for i, s := range x.subjects {
		out[i] = s.Clone()
	}
	return out
}

// GetSubject 按学科代码查找
func (x *Index) GetSubject(code string) (model.Subject, error) {
	i, ok := x.subjectIdx[code]
	if !ok {
		return model.Subject{}, fmt.Errorf("%w: %s", ErrSubjectNotFound, code)
	}
	return x.subjects[i].Clone(), nil
}

// GetCourses 学科下的全部课程
func (x *Index) GetCourses(subject string) ([]model.Course, error) {
	owned, ok := x.courses[subject]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubjectNotFound, subject)
	}
	out := make([]model.Course, len(owned))
	for i, c := range owned {
		out[i] = c.Clone()
	}
	return out, nil
}

// GetCourse 按 (学科, 课程号) 查找
func (x *Index) GetCourse(subject string, number int) (model.Course, error) {
	c, err := x.course(subject, number)
	if err != nil {
		return model.Course{}, err
	}
	return c.Clone(), nil
}

func (x *Index) course(subject string, number int) (*model.Course, error) {
	owned, ok := x.courses[subject]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubjectNotFound, subject)
	}
	i, ok := x.courseIdx[courseKey{subject, number}]
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", ErrCourseNotFound, subject, number)
	}
	return &owned[i], nil
}

// GetSections 课程下的全部班级，顺序与课程记录一致
func (x *Index) GetSections(subject string, number int) ([]model.Section, error) {
	c, err := x.course(subject, number)
	if err != nil {
		return nil, err
	}
	out := make([]model.Section, 0, len(c.CRNs))
	for _, crn := range c.CRNs {
		s, ok := x.sections.Get(crn)
		if !ok {
			continue
		}
		out = append(out, s.Clone())
	}
	return out, nil
}

// GetSectionCrns 课程下的全部 CRN
func (x *Index) GetSectionCrns(subject string, number int) ([]int, error) {
	c, err := x.course(subject, number)
	if err != nil {
		return nil, err
	}
	return slices.Clone(c.CRNs), nil
}

// ────────────────────── 班级 ──────────────────────

// GetSection 二分查找 CRN
func (x *Index) GetSection(crn int) (model.Section, error) {
	s, ok := x.sections.Get(crn)
	if !ok {
		return model.Section{}, fmt.Errorf("%w: CRN %d", ErrSectionNotFound, crn)
	}
	return s.Clone(), nil
}

// HasSection CRN 是否存在
func (x *Index) HasSection(crn int) bool {
	_, ok := x.sections.Find(crn)
	return ok
}

// GetAllSections 按 CRN 升序的全部班级
func (x *Index) GetAllSections() []model.Section {
	out := make([]model.Section, x.sections.Len())
	for i := range out {
		out[i] = x.sections.At(i).Clone()
	}
	return out
}

// SectionCount 班级总数
func (x *Index) SectionCount() int { return x.sections.Len() }

// GetRandomSection 拒绝采样：均匀抽取直到满足 pred。
// pred 为 nil 视为恒真。若没有任何班级满足 pred，该调用不会返回，由调用方保证。
func (x *Index) GetRandomSection(pred Predicate) (model.Section, error) {
	n := x.sections.Len()
	if n == 0 {
		return model.Section{}, ErrEmptyCatalog
	}
	for {
		s := x.sections.At(x.rand(n))
		if pred == nil || pred(&s) {
			return s.Clone(), nil
		}
	}
}

// ────────────────────── 教师 ──────────────────────

// GetInstructor 大小写不敏感的二分查找
func (x *Index) GetInstructor(name string) (model.Instructor, error) {
	in, ok := x.instructors.Get(name)
	if !ok {
		return model.Instructor{}, fmt.Errorf("%w: %s", ErrInstructorNotFound, name)
	}
	return in.Clone(), nil
}

// GetInstructors 按姓名排序的全部教师
func (x *Index) GetInstructors() []model.Instructor {
	out := make([]model.Instructor, x.instructors.Len())
	for i := range out {
		out[i] = x.instructors.At(i).Clone()
	}
	return out
}

// GetInstructorSections 教师所授班级，按 (学科, 课程号, CRN) 排序
func (x *Index) GetInstructorSections(name string) ([]model.Section, error) {
	in, ok := x.instructors.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstructorNotFound, name)
	}
	out := make([]model.Section, 0, len(in.CRNs))
	for _, crn := range in.CRNs {
		if s, ok := x.sections.Get(crn); ok {
			out = append(out, s.Clone())
		}
	}
	slices.SortFunc(out, func(a, b model.Section) int {
		return cmp.Or(
			strings.Compare(a.Subject, b.Subject),
			cmp.Compare(a.Course, b.Course),
			cmp.Compare(a.CRN, b.CRN),
		)
	})
	return out, nil
}

// ────────────────────── 元数据 ──────────────────────

// Timestamp 数据集生成时间；载荷未提供时为零值
func (x *Index) Timestamp() time.Time { return x.timestamp }

// SemesterMeta 学期信息，载荷未提供时返回 false
func (x *Index) SemesterMeta() (model.SemesterMeta, bool) {
	if x.semesterMeta == nil {
		return model.SemesterMeta{}, false
	}
	return *x.semesterMeta, true
}

// Stats 计数信息
type Stats struct {
	Subjects    int `json:"subjects"`
	Courses     int `json:"courses"`
	Sections    int `json:"sections"`
	Instructors int `json:"instructors"`
}

// Stats 返回各类实体数量
func (x *Index) Stats() Stats {
	courses := 0
	for _, cs := range x.courses {
		courses += len(cs)
	}
	return Stats{
		Subjects:    len(x.subjects),
		Courses:     courses,
		Sections:    x.sections.Len(),
		Instructors: x.instructors.Len(),
	}
}
