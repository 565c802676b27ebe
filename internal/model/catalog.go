package model

import (
	"encoding/json"
	"fmt"
	"slices"
)

// ── 数据集原始结构（与爬虫输出的 data.json 一致）──
//
// 学科、课程、教师通过下标引用扁平的 sections / courses 数组，
// 加载时由 catalog 包解析为 CRN 引用。

// Dataset 数据集载荷
type Dataset struct {
	Subjects    []SubjectRecord    `json:"subjects"`
	Courses     []CourseRecord     `json:"courses"`
	Sections    []Section          `json:"sections"`
	Instructors []InstructorRecord `json:"instructors"`
	Timestamp   float64            `json:"timestamp"` // Unix 秒
	Semester    *SemesterMeta      `json:"semester,omitempty"`
}

// SubjectRecord 学科记录
type SubjectRecord struct {
	Subject    string `json:"subject"`
	Title      string `json:"title"`
	CourseIdxs []int  `json:"courseIdxs"`
}

// CourseRecord 课程记录
type CourseRecord struct {
	Subject     string      `json:"subject"`
	Course      int         `json:"course"`
	Credits     CreditRange `json:"cr"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Tags        []Tag       `json:"tags"`
	SectionIdxs []int       `json:"sectionIdxs"`
}

// InstructorRecord 教师记录
type InstructorRecord struct {
	Name        string `json:"name"`
	SectionIdxs []int  `json:"sectionIdxs"`
}

// SemesterMeta 学期信息
type SemesterMeta struct {
	Semester string `json:"semester"` // spring | summer | fall
	Year     int    `json:"year"`
}

// IsSummer 夏季学期才有 session（子学期）字段
func (m SemesterMeta) IsSummer() bool { return m.Semester == "summer" }

// ── 对外暴露的目录实体 ──

// Subject 学科
type Subject struct {
	Code          string `json:"subject"`
	Title         string `json:"title"`
	CourseNumbers []int  `json:"courses"`
}

// Clone 深拷贝
func (s Subject) Clone() Subject {
	s.CourseNumbers = slices.Clone(s.CourseNumbers)
	return s
}

// Course 课程
type Course struct {
	Subject     string      `json:"subject"`
	Number      int         `json:"course"`
	Credits     CreditRange `json:"cr"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Tags        []Tag       `json:"tags"`
	CRNs        []int       `json:"crns"`
}

// Clone 深拷贝
func (c Course) Clone() Course {
	c.Tags = slices.Clone(c.Tags)
	c.CRNs = slices.Clone(c.CRNs)
	return c
}

// Instructor 教师
type Instructor struct {
	Name string `json:"name"`
	CRNs []int  `json:"crns"`
}

// Clone 深拷贝
func (i Instructor) Clone() Instructor {
	i.CRNs = slices.Clone(i.CRNs)
	return i
}

// Section 开课班级，CRN 全局唯一
type Section struct {
	CRN         int         `json:"crn"`
	Subject     string      `json:"subject"`
	Course      int         `json:"course"`
	Section     string      `json:"section"`
	Title       string      `json:"title"`
	Instructor  string      `json:"instructor"` // 空串表示未分配
	Credits     CreditRange `json:"cr"`
	Cap         Enrollment  `json:"cap"`
	Days        []string    `json:"days"`  // 每项为一组上课日，如 "MWF"
	Times       []TimeRange `json:"times"` // 与 Days 按下标对齐
	Places      []Place     `json:"places,omitempty"`
	Tags        []Tag       `json:"tags"`
	Note        string      `json:"note"`
	Description string      `json:"description,omitempty"`
	Session     string      `json:"session"`
}

// Clone 深拷贝
func (s Section) Clone() Section {
	s.Days = slices.Clone(s.Days)
	s.Times = slices.Clone(s.Times)
	s.Places = slices.Clone(s.Places)
	s.Tags = slices.Clone(s.Tags)
	return s
}

// HasTag 是否带有缩写为 short 的标签
func (s *Section) HasTag(short string) bool {
	return slices.ContainsFunc(s.Tags, func(t Tag) bool { return t.Short == short })
}

// Meeting 某一天的一次上课
type Meeting struct {
	Day  byte // U M T W R F S
	Time TimeRange
}

// Meetings 按 Days/Times 下标展开为逐日上课列表
func (s *Section) Meetings() []Meeting {
	var out []Meeting
	for i, days := range s.Days {
		if i >= len(s.Times) {
			break
		}
		for j := 0; j < len(days); j++ {
			out = append(out, Meeting{Day: days[j], Time: s.Times[i]})
		}
	}
	return out
}

// CompareCRN 按 CRN 升序比较
func CompareCRN(a, b Section) int { return a.CRN - b.CRN }

// ── 以 JSON 数组编码的值类型 ──

// Tag 课程标签 [缩写, 全称]，如 ["HU", "Humanities Elective"]
type Tag struct {
	Short string
	Long  string
}

func (t Tag) MarshalJSON() ([]byte, error) { return json.Marshal([2]string{t.Short, t.Long}) }

func (t *Tag) UnmarshalJSON(b []byte) error {
	var arr [2]string
	if err := json.Unmarshal(b, &arr); err != nil {
		return fmt.Errorf("tag: %w", err)
	}
	t.Short, t.Long = arr[0], arr[1]
	return nil
}

// CreditRange 学分范围 [下限, 上限]
type CreditRange struct {
	Lo float64
	Hi float64
}

// Fixed 学分是否为确定值
func (c CreditRange) Fixed() bool { return c.Lo == c.Hi }

// Contains 闭区间包含判断
func (c CreditRange) Contains(v float64) bool { return c.Lo <= v && v <= c.Hi }

func (c CreditRange) MarshalJSON() ([]byte, error) { return json.Marshal([2]float64{c.Lo, c.Hi}) }

func (c *CreditRange) UnmarshalJSON(b []byte) error {
	var arr [2]float64
	if err := json.Unmarshal(b, &arr); err != nil {
		return fmt.Errorf("cr: %w", err)
	}
	c.Lo, c.Hi = arr[0], arr[1]
	return nil
}

// Enrollment 选课人数 [已选, 容量]，容量为 0 表示无容量数据
type Enrollment struct {
	Enrolled int
	Capacity int
}

// HasCapacity 是否有容量数据
func (e Enrollment) HasCapacity() bool { return e.Capacity != 0 }

// FillRatio 已选 / 容量
func (e Enrollment) FillRatio() float64 {
	if e.Capacity == 0 {
		return 0
	}
	return float64(e.Enrolled) / float64(e.Capacity)
}

func (e Enrollment) MarshalJSON() ([]byte, error) { return json.Marshal([2]int{e.Enrolled, e.Capacity}) }

func (e *Enrollment) UnmarshalJSON(b []byte) error {
	var arr [2]int
	if err := json.Unmarshal(b, &arr); err != nil {
		return fmt.Errorf("cap: %w", err)
	}
	e.Enrolled, e.Capacity = arr[0], arr[1]
	return nil
}

// TimeRange 上课时间 [开始, 结束]，24 小时制 HHMM 整数
type TimeRange struct {
	Start int
	End   int
}

// String 例如 "0900-0950"
func (t TimeRange) String() string { return fmt.Sprintf("%04d-%04d", t.Start, t.End) }

// Clock 将 HHMM 拆分为小时与分钟
func Clock(hhmm int) (hour, minute int) { return hhmm / 100, hhmm % 100 }

func (t TimeRange) MarshalJSON() ([]byte, error) { return json.Marshal([2]int{t.Start, t.End}) }

func (t *TimeRange) UnmarshalJSON(b []byte) error {
	var arr [2]int
	if err := json.Unmarshal(b, &arr); err != nil {
		return fmt.Errorf("times: %w", err)
	}
	t.Start, t.End = arr[0], arr[1]
	return nil
}

// Place 上课地点 [楼, 教室]
type Place struct {
	Building string
	Room     string
}

func (p Place) MarshalJSON() ([]byte, error) { return json.Marshal([2]string{p.Building, p.Room}) }

func (p *Place) UnmarshalJSON(b []byte) error {
	var arr [2]string
	if err := json.Unmarshal(b, &arr); err != nil {
		return fmt.Errorf("places: %w", err)
	}
	p.Building, p.Room = arr[0], arr[1]
	return nil
}
