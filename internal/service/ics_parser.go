package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"semester-planner/internal/model"
	"semester-planner/internal/session"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 职责：把外部日历（RFC 5545）中落在本周的忙碌事件转为屏蔽时段。
//
//   - DTSTART/DTEND（或 DURATION）确定起止时刻
//   - 无 RRULE 的单次事件仅当其落在本周时导入
//   - FREQ=WEEKLY 的重复事件按 INTERVAL / BYDAY / COUNT / UNTIL / EXDATE 计算本周的各次发生
//   - 其他 FREQ 按单次事件处理
// ─────────────────────────────────────────────────────────────

var ErrICSInvalid = errors.New("日历文件格式错误")

const (
	icsMaxFileSize     = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout    = 30 * time.Second
	defaultBusySummary = "Busy"
)

// FetchICSContent 从 URL 获取 ICS 内容，支持 webcal://
func FetchICSContent(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	// 限制响应体大小
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: resp.Body,
	}, nil
}

// ParseBusyICS 解析 ICS 内容，返回落在 now 所在周（周日开始）的屏蔽时段，按开始时间排序。
// 返回的屏蔽时段没有 ID，由会话在添加时分配。
func ParseBusyICS(reader io.Reader, now time.Time, loc *time.Location) ([]model.BlockOut, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrICSInvalid, err)
	}

	y, m, d := session.WeekStart(now.In(loc))
	weekStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	weekEnd := time.Date(y, m, d+7, 0, 0, 0, 0, loc)

	type occurrence struct {
		text       string
		start, end time.Time
	}
	var found []occurrence
	for _, evt := range cal.Events() {
		text, start, dur, ok := parseBusyEvent(evt, loc)
		if !ok {
			continue
		}
		for _, s := range occurrencesInWeek(evt, start, weekStart, weekEnd, loc) {
			found = append(found, occurrence{text: text, start: s, end: s.Add(dur)})
		}
	}
	slices.SortStableFunc(found, func(a, b occurrence) int { return a.start.Compare(b.start) })

	out := make([]model.BlockOut, 0, len(found))
	for _, o := range found {
		out = append(out, model.BlockOut{
			Text:  o.text,
			Start: o.start.Format(model.LocalTimeLayout),
			End:   o.end.Format(model.LocalTimeLayout),
		})
	}
	return out, nil
}

// parseBusyEvent 解析单个 VEVENT 的标题、开始时间与持续时间
func parseBusyEvent(evt *ics.VEvent, loc *time.Location) (string, time.Time, time.Duration, bool) {
	text := defaultBusySummary
	if summary := evt.GetProperty(ics.ComponentPropertySummary); summary != nil && strings.TrimSpace(summary.Value) != "" {
		text = strings.TrimSpace(summary.Value)
	}

	dtStart, allDay, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return "", time.Time{}, 0, false
	}

	var dur time.Duration
	if dtEnd, _, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc); err == nil {
		dur = dtEnd.Sub(dtStart)
	} else if prop := evt.GetProperty(ics.ComponentPropertyDuration); prop != nil {
		dur, err = parseICSDuration(prop.Value)
		if err != nil {
			return "", time.Time{}, 0, false
		}
	} else if allDay {
		dur = 24 * time.Hour
	} else {
		return "", time.Time{}, 0, false
	}
	if dur < 0 {
		return "", time.Time{}, 0, false
	}
	return text, dtStart, dur, true
}

// occurrencesInWeek 计算事件在 [weekStart, weekEnd) 内的各次开始时间
func occurrencesInWeek(evt *ics.VEvent, dtStart, weekStart, weekEnd time.Time, loc *time.Location) []time.Time {
	inWeek := func(t time.Time) bool { return !t.Before(weekStart) && t.Before(weekEnd) }

	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		if inWeek(dtStart) {
			return []time.Time{dtStart}
		}
		return nil
	}

	rule := parseRRule(rruleProp.Value)
	if rule.freq != "WEEKLY" {
		if inWeek(dtStart) {
			return []time.Time{dtStart}
		}
		return nil
	}

	interval := max(rule.interval, 1)

	// 事件首周与本周相差的周数
	fy, fm, fd := session.WeekStart(dtStart)
	firstWeek := time.Date(fy, fm, fd, 0, 0, 0, 0, loc)
	weeks := int(math.Round(weekStart.Sub(firstWeek).Hours()/24)) / 7
	if weeks < 0 || weeks%interval != 0 {
		return nil
	}

	days := rule.byDay
	if len(days) == 0 {
		days = []time.Weekday{dtStart.Weekday()}
	}
	exDates := parseExDates(evt, loc)

	y, m, d := weekStart.Date()
	var out []time.Time
	for i, wd := range days {
		occ := time.Date(y, m, d+int(wd), dtStart.Hour(), dtStart.Minute(), dtStart.Second(), 0, loc)
		if occ.Before(dtStart) || !inWeek(occ) {
			continue
		}
		if !rule.until.IsZero() && occ.After(rule.until) {
			continue
		}
		// COUNT 按"每周 len(days) 次"近似计数
		if rule.count > 0 && (weeks/interval)*len(days)+i >= rule.count {
			continue
		}
		if exDates[occ.Format("20060102")] {
			continue
		}
		out = append(out, occ)
	}
	return out
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
	byDay    []time.Weekday
}

var icsWeekdays = map[string]time.Weekday{
	"SU": time.Sunday, "MO": time.Monday, "TU": time.Tuesday, "WE": time.Wednesday,
	"TH": time.Thursday, "FR": time.Friday, "SA": time.Saturday,
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;BYDAY=MO,WE）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.ToUpper(k) {
		case "FREQ":
			r.freq = strings.ToUpper(v)
		case "INTERVAL":
			if n, err := strconv.Atoi(v); err == nil {
				r.interval = n
			}
		case "COUNT":
			if n, err := strconv.Atoi(v); err == nil {
				r.count = n
			}
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", v)
			if err != nil {
				t, _ = time.Parse("20060102", v)
			}
			r.until = t
		case "BYDAY":
			for _, day := range strings.Split(v, ",") {
				// 去掉 1MO / -1FR 这类序号前缀
				day = strings.TrimLeft(strings.ToUpper(day), "+-0123456789")
				if wd, ok := icsWeekdays[day]; ok && !slices.Contains(r.byDay, wd) {
					r.byDay = append(r.byDay, wd)
				}
			}
			slices.Sort(r.byDay)
		}
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE，键为 loc 时区下的日期
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, v := range strings.Split(prop.Value, ",") {
			t, err := time.Parse("20060102T150405Z", v)
			if err == nil {
				t = t.In(loc)
			} else if t, err = time.ParseInLocation("20060102T150405", v, loc); err != nil {
				t, err = time.ParseInLocation("20060102", v, loc)
			}
			if err == nil {
				exDates[t.Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性，第二个返回值表示是否为全天日期
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", propName)
	}
	val := prop.Value

	// TZID 参数
	tzLoc := loc
	for k, v := range prop.ICalParameters {
		if strings.EqualFold(k, "TZID") && len(v) > 0 {
			if l, err := time.LoadLocation(v[0]); err == nil {
				tzLoc = l
			}
		}
	}

	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t.In(loc), false, nil
	}
	if t, err := time.ParseInLocation("20060102T150405", val, tzLoc); err == nil {
		return t.In(loc), false, nil
	}
	if t, err := time.ParseInLocation("20060102", val, loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
}

// parseICSDuration 解析 RFC 5545 DURATION（如 PT1H30M、P1D、P2W）
func parseICSDuration(value string) (time.Duration, error) {
	v := strings.ToUpper(strings.TrimSpace(value))
	neg := strings.HasPrefix(v, "-")
	v = strings.TrimLeft(v, "+-")
	if !strings.HasPrefix(v, "P") {
		return 0, fmt.Errorf("无法解析时长: %s", value)
	}
	v = v[1:]

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
			continue
		case r == 'T':
			inTime = true
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, fmt.Errorf("无法解析时长: %s", value)
		}
		num = ""
		switch {
		case r == 'W' && !inTime:
			total += time.Duration(n) * 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			total += time.Duration(n) * 24 * time.Hour
		case r == 'H' && inTime:
			total += time.Duration(n) * time.Hour
		case r == 'M' && inTime:
			total += time.Duration(n) * time.Minute
		case r == 'S' && inTime:
			total += time.Duration(n) * time.Second
		default:
			return 0, fmt.Errorf("无法解析时长: %s", value)
		}
	}
	if num != "" {
		return 0, fmt.Errorf("无法解析时长: %s", value)
	}
	if neg {
		total = -total
	}
	return total, nil
}
