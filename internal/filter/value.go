package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"semester-planner/internal/model"
)

var (
	ErrUnknownField = errors.New("未知的筛选字段")
	ErrInvalidValue = errors.New("筛选值无效")
)

// Key 可筛选的班级属性
type Key string

const (
	KeySubject    Key = "subject"
	KeyCourse     Key = "course"
	KeyTitle      Key = "title"
	KeyInstructor Key = "instructor"
	KeySection    Key = "section"
	KeySession    Key = "session"
	KeyTags       Key = "tags"
	KeyCredits    Key = "cr"
)

// Keys 全部可筛选属性
var Keys = []Key{KeySubject, KeyCourse, KeyTitle, KeyInstructor, KeySection, KeySession, KeyTags, KeyCredits}

// Value 某一属性上的筛选值，各实现自带比较逻辑
type Value interface {
	Key() Key
	Match(s *model.Section) bool
	String() string
}

// ── 精确相等 ──

type SubjectValue string

func (v SubjectValue) Key() Key                    { return KeySubject }
func (v SubjectValue) Match(s *model.Section) bool { return s.Subject == string(v) }
func (v SubjectValue) String() string              { return string(v) }

type CourseValue int

func (v CourseValue) Key() Key                    { return KeyCourse }
func (v CourseValue) Match(s *model.Section) bool { return s.Course == int(v) }
func (v CourseValue) String() string              { return strconv.Itoa(int(v)) }

type TitleValue string

func (v TitleValue) Key() Key                    { return KeyTitle }
func (v TitleValue) Match(s *model.Section) bool { return s.Title == string(v) }
func (v TitleValue) String() string              { return string(v) }

type InstructorValue string

func (v InstructorValue) Key() Key                    { return KeyInstructor }
func (v InstructorValue) Match(s *model.Section) bool { return s.Instructor == string(v) }
func (v InstructorValue) String() string              { return string(v) }

type SectionValue string

func (v SectionValue) Key() Key                    { return KeySection }
func (v SectionValue) Match(s *model.Section) bool { return s.Section == string(v) }
func (v SectionValue) String() string              { return string(v) }

type SessionValue string

func (v SessionValue) Key() Key                    { return KeySession }
func (v SessionValue) Match(s *model.Section) bool { return s.Session == string(v) }
func (v SessionValue) String() string              { return string(v) }

// ── 特殊比较 ──

// TagValue 按标签缩写匹配
type TagValue model.Tag

func (v TagValue) Key() Key                    { return KeyTags }
func (v TagValue) Match(s *model.Section) bool { return s.HasTag(v.Short) }

func (v TagValue) String() string {
	if v.Long == "" {
		return v.Short
	}
	return v.Short + " - " + v.Long
}

// CreditValue 学分落在班级学分区间内（闭区间）
type CreditValue int

func (v CreditValue) Key() Key                    { return KeyCredits }
func (v CreditValue) Match(s *model.Section) bool { return s.Credits.Contains(float64(v)) }
func (v CreditValue) String() string              { return strconv.Itoa(int(v)) }

// ParseValue 将字符串形式的筛选值解析为对应属性的 Value
func ParseValue(key Key, raw string) (Value, error) {
	switch key {
	case KeySubject:
		return SubjectValue(raw), nil
	case KeyTitle:
		return TitleValue(raw), nil
	case KeyInstructor:
		return InstructorValue(raw), nil
	case KeySection:
		return SectionValue(raw), nil
	case KeySession:
		return SessionValue(raw), nil
	case KeyCourse:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
		}
		return CourseValue(n), nil
	case KeyCredits:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
		}
		return CreditValue(n), nil
	case KeyTags:
		short, long, _ := strings.Cut(raw, " - ")
		short = strings.TrimSpace(short)
		if short == "" {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
		}
		return TagValue{Short: short, Long: long}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
}
