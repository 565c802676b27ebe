package service

import (
	"fmt"
	"strings"
	"time"

	"semester-planner/internal/conflict"
	"semester-planner/internal/model"
	"semester-planner/internal/session"
)

// 日历事件类型
const (
	EventSection     = "section"
	EventTempSection = "tempSection"
	EventBlockOut    = "blockOut"
)

// CalendarEvent 周视图中的一个事件，时间为会话时区的本地时间
type CalendarEvent struct {
	Type        string `json:"type"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	CRN         int    `json:"crn,omitempty"`
	ID          string `json:"id,omitempty"`
}

// WeekEvents 把已选班级、临时班级的每次上课展开到 now 所在的一周（周日开始），
// 并附上屏蔽时段。
func WeekEvents(snap session.Snapshot, now time.Time) []CalendarEvent {
	y, m, d := session.WeekStart(now)
	loc := now.Location()

	var events []CalendarEvent
	expand := func(typ string, sections []model.Section) {
		for _, sec := range sections {
			for i, days := range sec.Days {
				if i >= len(sec.Times) {
					break
				}
				tr := sec.Times[i]
				var where string
				if i < len(sec.Places) {
					where = strings.TrimSpace(sec.Places[i].Building + " " + sec.Places[i].Room)
				}
				for j := 0; j < len(days); j++ {
					offset := strings.IndexByte(conflict.Weekdays, days[j])
					if offset < 0 {
						continue
					}
					events = append(events, CalendarEvent{
						Type:        typ,
						Summary:     fmt.Sprintf("%05d %s%04d", sec.CRN, sec.Subject, sec.Course),
						Description: sectionDescription(&sec),
						Location:    where,
						Start:       clockOn(y, m, d+offset, tr.Start, loc),
						End:         clockOn(y, m, d+offset, tr.End, loc),
						CRN:         sec.CRN,
					})
				}
			}
		}
	}
	expand(EventSection, snap.Selected)
	expand(EventTempSection, snap.Temp)

	for _, b := range snap.BlockOuts {
		events = append(events, CalendarEvent{
			Type:    EventBlockOut,
			Summary: b.Text,
			Start:   b.Start,
			End:     b.End,
			ID:      b.ID,
		})
	}
	return events
}

func sectionDescription(sec *model.Section) string {
	if sec.Instructor == "" {
		return sec.Title
	}
	return sec.Title + "\n" + sec.Instructor
}

// clockOn 某天 hhmm 时刻的本地时间字符串
func clockOn(y int, m time.Month, d, hhmm int, loc *time.Location) string {
	hour, minute := model.Clock(hhmm)
	return time.Date(y, m, d, hour, minute, 0, 0, loc).Format(model.LocalTimeLayout)
}
