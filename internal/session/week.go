package session

import (
	"time"

	"semester-planner/internal/model"
)

// WeekStart 以周日为一周起点，返回 t 所在周周日的日期（年、月、日）
func WeekStart(t time.Time) (year int, month time.Month, day int) {
	d := time.Date(t.Year(), t.Month(), t.Day()-int(t.Weekday()), 0, 0, 0, 0, time.UTC)
	return d.Date()
}

// ReanchorToWeek 把屏蔽时段平移到 now 所在的周，保持星期几、时刻与跨天数不变。
// 计算按墙上时间进行，夏令时切换不改变显示的时刻。
func ReanchorToWeek(b model.BlockOut, now time.Time) (model.BlockOut, error) {
	start, end, err := b.Bounds(time.UTC)
	if err != nil {
		return model.BlockOut{}, err
	}

	y, m, d := WeekStart(now)
	offset := int(start.Weekday())
	span := daysBetween(start, end)

	newStart := time.Date(y, m, d+offset, start.Hour(), start.Minute(), start.Second(), 0, time.UTC)
	newEnd := time.Date(y, m, d+offset+span, end.Hour(), end.Minute(), end.Second(), 0, time.UTC)

	b.Start = newStart.Format(model.LocalTimeLayout)
	b.End = newEnd.Format(model.LocalTimeLayout)
	return b, nil
}

// daysBetween 两个时间之间相差的日历天数
func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
