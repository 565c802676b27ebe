package service

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"semester-planner/internal/model"
)

func icsCalendar(events ...string) string {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}
	for _, e := range events {
		lines = append(lines, "BEGIN:VEVENT")
		lines = append(lines, strings.Split(e, "\n")...)
		lines = append(lines, "END:VEVENT")
	}
	lines = append(lines, "END:VCALENDAR", "")
	return strings.Join(lines, "\r\n")
}

func TestParseBusyICS(t *testing.T) {
	tests := []struct {
		name  string
		event string
		want  []model.BlockOut
	}{
		{
			name:  "本周单次事件",
			event: "UID:1\nSUMMARY:Dentist\nDTSTART:20240314T160000Z\nDTEND:20240314T170000Z",
			want:  []model.BlockOut{{Text: "Dentist", Start: "2024-03-14T16:00:00", End: "2024-03-14T17:00:00"}},
		},
		{
			name:  "下周的单次事件",
			event: "UID:1\nSUMMARY:Later\nDTSTART:20240318T160000Z\nDTEND:20240318T170000Z",
			want:  []model.BlockOut{},
		},
		{
			name:  "无标题用 DURATION",
			event: "UID:1\nDTSTART:20240312T080000Z\nDURATION:PT1H30M",
			want:  []model.BlockOut{{Text: "Busy", Start: "2024-03-12T08:00:00", End: "2024-03-12T09:30:00"}},
		},
		{
			name:  "每周重复并排除一天",
			event: "UID:1\nSUMMARY:Run\nDTSTART:20240226T060000Z\nDTEND:20240226T070000Z\nRRULE:FREQ=WEEKLY;BYDAY=MO,WE\nEXDATE:20240313T060000Z",
			want:  []model.BlockOut{{Text: "Run", Start: "2024-03-11T06:00:00", End: "2024-03-11T07:00:00"}},
		},
		{
			name:  "隔周重复不在本周",
			event: "UID:1\nSUMMARY:Club\nDTSTART:20240304T180000Z\nDTEND:20240304T190000Z\nRRULE:FREQ=WEEKLY;INTERVAL=2",
			want:  []model.BlockOut{},
		},
		{
			name:  "COUNT 已用完",
			event: "UID:1\nSUMMARY:Course\nDTSTART:20240226T090000Z\nDTEND:20240226T100000Z\nRRULE:FREQ=WEEKLY;COUNT=2",
			want:  []model.BlockOut{},
		},
		{
			name:  "UNTIL 截止于本周周一之后",
			event: "UID:1\nSUMMARY:Lab\nDTSTART:20240226T090000Z\nDTEND:20240226T100000Z\nRRULE:FREQ=WEEKLY;BYDAY=MO,FR;UNTIL=20240312T000000Z",
			want:  []model.BlockOut{{Text: "Lab", Start: "2024-03-11T09:00:00", End: "2024-03-11T10:00:00"}},
		},
		{
			name:  "全天事件",
			event: "UID:1\nSUMMARY:Holiday\nDTSTART;VALUE=DATE:20240315",
			want:  []model.BlockOut{{Text: "Holiday", Start: "2024-03-15T00:00:00", End: "2024-03-16T00:00:00"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBusyICS(strings.NewReader(icsCalendar(tt.event)), testNow, time.UTC)
			if err != nil {
				t.Fatalf("不应报错: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("结果不符:\n%s", diff)
			}
		})
	}
}

func TestParseICSDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"PT1H30M", 90 * time.Minute, false},
		{"P1D", 24 * time.Hour, false},
		{"P1W", 7 * 24 * time.Hour, false},
		{"P1DT2H", 26 * time.Hour, false},
		{"-PT15M", -15 * time.Minute, false},
		{"PT45S", 45 * time.Second, false},
		{"1H", 0, true},
		{"PT1X", 0, true},
		{"PT5", 0, true},
	}
	for _, tt := range tests {
		got, err := parseICSDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseICSDuration(%q): 期望错误=%v, 实际 %v", tt.in, tt.wantErr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseICSDuration(%q): 期望 %v, 实际 %v", tt.in, tt.want, got)
		}
	}
}

func TestParseRRule(t *testing.T) {
	r := parseRRule("FREQ=weekly;INTERVAL=2;COUNT=10;BYDAY=1FR,MO,-1MO")
	if r.freq != "WEEKLY" || r.interval != 2 || r.count != 10 {
		t.Errorf("解析结果不符: %+v", r)
	}
	if diff := cmp.Diff([]time.Weekday{time.Monday, time.Friday}, r.byDay); diff != "" {
		t.Errorf("BYDAY 不符:\n%s", diff)
	}
}
