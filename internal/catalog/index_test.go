package catalog_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"semester-planner/internal/catalog"
	"semester-planner/internal/catalog/catalogtest"
	"semester-planner/internal/model"
	apperrors "semester-planner/pkg/errors"
)

func TestGetSection_MatchesDataset(t *testing.T) {
	ds := catalogtest.Dataset()
	idx := catalogtest.Index()

	for _, want := range ds.Sections {
		got, err := idx.GetSection(want.CRN)
		if err != nil {
			t.Fatalf("GetSection(%d) 失败: %v", want.CRN, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("GetSection(%d) 不符 (-want +got):\n%s", want.CRN, diff)
		}
	}

	_, err := idx.GetSection(999)
	if !errors.Is(err, catalog.ErrSectionNotFound) || !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("期望 ErrSectionNotFound, 实际 %v", err)
	}
}

// 二分查找结果必须与线性扫描一致
func TestBinarySearchEquivalence(t *testing.T) {
	ds := catalogtest.Dataset()
	idx := catalogtest.Index()

	linearSection := func(crn int) (model.Section, bool) {
		for _, s := range ds.Sections {
			if s.CRN == crn {
				return s, true
			}
		}
		return model.Section{}, false
	}
	for crn := -1; crn <= 500; crn++ {
		want, wantOK := linearSection(crn)
		got, err := idx.GetSection(crn)
		if wantOK != (err == nil) {
			t.Fatalf("CRN %d: 线性扫描 found=%v, 二分查找 err=%v", crn, wantOK, err)
		}
		if wantOK && !cmp.Equal(want, got) {
			t.Errorf("CRN %d: 结果不一致", crn)
		}
	}

	linearInstructor := func(name string) (string, bool) {
		for _, in := range ds.Instructors {
			if strings.EqualFold(in.Name, name) {
				return in.Name, true
			}
		}
		return "", false
	}
	names := []string{"Smith, John", "SMITH, JOHN", "adams, amy", "Adams, Amy", "Zed, Zoe", "Nobody", "", "zzz"}
	for _, name := range names {
		want, wantOK := linearInstructor(name)
		got, err := idx.GetInstructor(name)
		if wantOK != (err == nil) {
			t.Fatalf("教师 %q: 线性扫描 found=%v, 二分查找 err=%v", name, wantOK, err)
		}
		if wantOK && got.Name != want {
			t.Errorf("教师 %q: 期望 %q, 实际 %q", name, want, got.Name)
		}
	}
}

func TestGetAllSections_SortedByCRN(t *testing.T) {
	idx := catalogtest.Index()
	all := idx.GetAllSections()

	var crns []int
	for _, s := range all {
		crns = append(crns, s.CRN)
	}
	if diff := cmp.Diff([]int{100, 150, 200, 300, 400}, crns); diff != "" {
		t.Errorf("CRN 顺序不符 (-want +got):\n%s", diff)
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	idx := catalogtest.Index()

	s, _ := idx.GetSection(100)
	s.Title = "changed"
	s.Times[0].Start = 0

	all := idx.GetAllSections()
	all[0].Days[0] = "S"

	crns, _ := idx.GetSectionCrns("CSE", 1001)
	crns[0] = -1

	subj, _ := idx.GetSubject("CSE")
	subj.CourseNumbers[0] = -1

	again, _ := idx.GetSection(100)
	if again.Title != "Intro to Programming" || again.Times[0].Start != 900 || again.Days[0] != "M" {
		t.Errorf("索引内部状态被修改: %+v", again)
	}
	crns2, _ := idx.GetSectionCrns("CSE", 1001)
	if crns2[0] != 100 {
		t.Errorf("课程 CRN 列表被修改: %v", crns2)
	}
	subj2, _ := idx.GetSubject("CSE")
	if subj2.CourseNumbers[0] != 1001 {
		t.Errorf("学科课程列表被修改: %v", subj2.CourseNumbers)
	}
}

func TestSubjectsAndCourses(t *testing.T) {
	idx := catalogtest.Index()

	subjects := idx.GetSubjects()
	if len(subjects) != 3 || subjects[0].Code != "CSE" || subjects[2].Code != "MTH" {
		t.Fatalf("学科顺序不符: %+v", subjects)
	}

	courses, err := idx.GetCourses("CSE")
	if err != nil {
		t.Fatalf("GetCourses 失败: %v", err)
	}
	if len(courses) != 2 || courses[1].Number != 2050 {
		t.Errorf("CSE 课程不符: %+v", courses)
	}

	sections, err := idx.GetSections("CSE", 1001)
	if err != nil {
		t.Fatalf("GetSections 失败: %v", err)
	}
	if len(sections) != 2 || sections[0].CRN != 100 || sections[1].CRN != 200 {
		t.Errorf("CSE 1001 班级不符: %+v", sections)
	}

	tests := []struct {
		name    string
		subject string
		number  int
		wantErr error
	}{
		{"学科不存在", "BIO", 1001, catalog.ErrSubjectNotFound},
		{"课程号不存在", "CSE", 9999, catalog.ErrCourseNotFound},
		{"课程属于其他学科", "ECE", 1001, catalog.ErrCourseNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := idx.GetCourse(tt.subject, tt.number); !errors.Is(err, tt.wantErr) {
				t.Errorf("GetCourse 期望 %v, 实际 %v", tt.wantErr, err)
			}
			if _, err := idx.GetSections(tt.subject, tt.number); !errors.Is(err, apperrors.ErrNotFound) {
				t.Errorf("GetSections 期望 ErrNotFound, 实际 %v", err)
			}
		})
	}

	if _, err := idx.GetSubject("BIO"); !errors.Is(err, catalog.ErrSubjectNotFound) {
		t.Errorf("GetSubject 期望 ErrSubjectNotFound, 实际 %v", err)
	}
}

func TestGetInstructorSections_Ordering(t *testing.T) {
	idx := catalogtest.Index()

	sections, err := idx.GetInstructorSections("smith, john")
	if err != nil {
		t.Fatalf("GetInstructorSections 失败: %v", err)
	}
	if len(sections) != 2 || sections[0].CRN != 100 || sections[1].CRN != 300 {
		t.Errorf("期望 [100 300], 实际 %+v", sections)
	}

	instructors := idx.GetInstructors()
	var names []string
	for _, in := range instructors {
		names = append(names, in.Name)
	}
	if diff := cmp.Diff([]string{"adams, amy", "Smith, John", "Zed, Zoe"}, names); diff != "" {
		t.Errorf("教师顺序不符 (-want +got):\n%s", diff)
	}

	if _, err := idx.GetInstructorSections("Nobody"); !errors.Is(err, catalog.ErrInstructorNotFound) {
		t.Errorf("期望 ErrInstructorNotFound, 实际 %v", err)
	}
}

func TestGetRandomSection(t *testing.T) {
	// 依次抽中下标 0(100) 1(150) 3(300)
	seq := []int{0, 1, 3}
	calls := 0
	idx, err := catalog.New(catalogtest.Dataset(), catalog.WithRand(func(n int) int {
		v := seq[calls%len(seq)]
		calls++
		return v
	}))
	if err != nil {
		t.Fatalf("New 失败: %v", err)
	}

	s, err := idx.GetRandomSection(nil)
	if err != nil || s.CRN != 100 {
		t.Fatalf("期望 CRN 100, 实际 %d err=%v", s.CRN, err)
	}

	calls = 0
	s, err = idx.GetRandomSection(func(s *model.Section) bool { return s.Course == 2050 })
	if err != nil || s.CRN != 300 {
		t.Fatalf("期望 CRN 300, 实际 %d err=%v", s.CRN, err)
	}
	if calls != 3 {
		t.Errorf("期望拒绝采样 3 次, 实际 %d", calls)
	}

	empty, _ := catalog.New(&model.Dataset{})
	if _, err := empty.GetRandomSection(nil); !errors.Is(err, catalog.ErrEmptyCatalog) {
		t.Errorf("空目录期望 ErrEmptyCatalog, 实际 %v", err)
	}
}

func TestNew_BadIndexReference(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ds *model.Dataset)
	}{
		{"课程引用越界的班级", func(ds *model.Dataset) { ds.Courses[0].SectionIdxs = []int{42} }},
		{"学科引用越界的课程", func(ds *model.Dataset) { ds.Subjects[0].CourseIdxs = []int{-1} }},
		{"教师引用越界的班级", func(ds *model.Dataset) { ds.Instructors[0].SectionIdxs = []int{5} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := catalogtest.Dataset()
			tt.mutate(ds)
			if _, err := catalog.New(ds); !errors.Is(err, apperrors.ErrLoadFailure) {
				t.Errorf("期望 ErrLoadFailure, 实际 %v", err)
			}
		})
	}

	if _, err := catalog.New(nil); !errors.Is(err, apperrors.ErrLoadFailure) {
		t.Errorf("nil 数据集期望 ErrLoadFailure, 实际 %v", err)
	}
}

func TestMetadata(t *testing.T) {
	idx := catalogtest.Index()

	want := time.Unix(1700000000, 500_000_000).UTC()
	if !idx.Timestamp().Equal(want) {
		t.Errorf("Timestamp 期望 %v, 实际 %v", want, idx.Timestamp())
	}

	meta, ok := idx.SemesterMeta()
	if !ok || !meta.IsSummer() || meta.Year != 2024 {
		t.Errorf("SemesterMeta 不符: %+v ok=%v", meta, ok)
	}

	stats := idx.Stats()
	if stats != (catalog.Stats{Subjects: 3, Courses: 4, Sections: 5, Instructors: 3}) {
		t.Errorf("Stats 不符: %+v", stats)
	}
}
