package model

import (
	"fmt"
	"time"
)

// LocalTimeLayout 屏蔽时段使用的本地时间格式（无时区）
const LocalTimeLayout = "2006-01-02T15:04:05"

// BlockOut 用户自定义的屏蔽时段
type BlockOut struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Start string `json:"start"` // 2006-01-02T15:04:05
	End   string `json:"end"`
}

// Bounds 在 loc 时区下解析起止时间
func (b BlockOut) Bounds(loc *time.Location) (start, end time.Time, err error) {
	start, err = time.ParseInLocation(LocalTimeLayout, b.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start %q: %w", b.Start, err)
	}
	end, err = time.ParseInLocation(LocalTimeLayout, b.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end %q: %w", b.End, err)
	}
	return start, end, nil
}
