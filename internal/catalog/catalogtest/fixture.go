// Package catalogtest 提供测试用的小型数据集
package catalogtest

import (
	"semester-planner/internal/catalog"
	"semester-planner/internal/model"
)

// Dataset 返回一个覆盖常见边界的数据集：
//
//	100 CSE 1001-01  M 0900-0950  Smith, John  cr 3    cap 10/20  [CL]
//	200 CSE 1001-02  M 0930-1020  adams, amy   cr 3    cap 20/20
//	300 CSE 2050-01  TR 1300-1415 Smith, John  cr 4    无容量数据
//	150 ECE 1010-01  MWF 1000-1050 (未分配)     cr 1-2  cap 5/10   [HU]
//	400 MTH 1100-01  无上课时间    Zed, Zoe     cr 3-4  无容量数据  session A
//
// sections 数组刻意不按 CRN 排序。
func Dataset() *model.Dataset {
	return &model.Dataset{
		Subjects: []model.SubjectRecord{
			{Subject: "CSE", Title: "Computer Science", CourseIdxs: []int{0, 1}},
			{Subject: "ECE", Title: "Electrical & Computer Eng", CourseIdxs: []int{2}},
			{Subject: "MTH", Title: "Mathematics", CourseIdxs: []int{3}},
		},
		Courses: []model.CourseRecord{
			{Subject: "CSE", Course: 1001, Credits: model.CreditRange{Lo: 3, Hi: 3}, Title: "Intro to Programming",
				Tags: []model.Tag{{Short: "CL", Long: "Computer Literacy"}}, SectionIdxs: []int{0, 1}},
			{Subject: "CSE", Course: 2050, Credits: model.CreditRange{Lo: 4, Hi: 4}, Title: "Data Structures", SectionIdxs: []int{2}},
			{Subject: "ECE", Course: 1010, Credits: model.CreditRange{Lo: 1, Hi: 2}, Title: "Circuits",
				Tags: []model.Tag{{Short: "HU", Long: "Humanities"}}, SectionIdxs: []int{3}},
			{Subject: "MTH", Course: 1100, Credits: model.CreditRange{Lo: 3, Hi: 4}, Title: "Calculus", SectionIdxs: []int{4}},
		},
		Sections: []model.Section{
			{
				CRN: 100, Subject: "CSE", Course: 1001, Section: "01", Title: "Intro to Programming",
				Instructor: "Smith, John", Credits: model.CreditRange{Lo: 3, Hi: 3}, Cap: model.Enrollment{Enrolled: 10, Capacity: 20},
				Days: []string{"M"}, Times: []model.TimeRange{{Start: 900, End: 950}},
				Places: []model.Place{{Building: "OS", Room: "120"}},
				Tags:   []model.Tag{{Short: "CL", Long: "Computer Literacy"}},
			},
			{
				CRN: 200, Subject: "CSE", Course: 1001, Section: "02", Title: "Intro to Programming",
				Instructor: "adams, amy", Credits: model.CreditRange{Lo: 3, Hi: 3}, Cap: model.Enrollment{Enrolled: 20, Capacity: 20},
				Days: []string{"M"}, Times: []model.TimeRange{{Start: 930, End: 1020}},
			},
			{
				CRN: 300, Subject: "CSE", Course: 2050, Section: "01", Title: "Data Structures",
				Instructor: "Smith, John", Credits: model.CreditRange{Lo: 4, Hi: 4},
				Days: []string{"TR"}, Times: []model.TimeRange{{Start: 1300, End: 1415}},
			},
			{
				CRN: 150, Subject: "ECE", Course: 1010, Section: "01", Title: "Circuits",
				Credits: model.CreditRange{Lo: 1, Hi: 2}, Cap: model.Enrollment{Enrolled: 5, Capacity: 10},
				Days: []string{"MWF"}, Times: []model.TimeRange{{Start: 1000, End: 1050}},
				Tags: []model.Tag{{Short: "HU", Long: "Humanities"}},
			},
			{
				CRN: 400, Subject: "MTH", Course: 1100, Section: "01", Title: "Calculus",
				Instructor: "Zed, Zoe", Credits: model.CreditRange{Lo: 3, Hi: 4}, Session: "A",
			},
		},
		Instructors: []model.InstructorRecord{
			{Name: "Smith, John", SectionIdxs: []int{2, 0}},
			{Name: "adams, amy", SectionIdxs: []int{1}},
			{Name: "Zed, Zoe", SectionIdxs: []int{4}},
		},
		Timestamp: 1700000000.5,
		Semester:  &model.SemesterMeta{Semester: "summer", Year: 2024},
	}
}

// Index 由 Dataset 构建索引，失败时 panic
func Index() *catalog.Index {
	idx, err := catalog.New(Dataset())
	if err != nil {
		panic(err)
	}
	return idx
}
