package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"semester-planner/internal/catalog"
	"semester-planner/internal/model"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoSections   = errors.New("尚未选择任何班级")
	ErrExportEmpty        = errors.New("没有可导出的班级或屏蔽时段")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 选课单导出为 Excel (.xlsx)，一行一个已选班级
//   - 日历导出为 iCalendar (.ics)，包含本周的上课与屏蔽时段
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportRegistration 导出选课单
	ExportRegistration(ctx context.Context, sessionID string) (*bytes.Buffer, string, error)
	// ExportCalendar 导出本周日历
	ExportCalendar(ctx context.Context, sessionID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	sessions *sessionManager
	provider catalog.Provider
	logger   *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(sessions *sessionManager, provider catalog.Provider, logger *zap.Logger) ExportService {
	return &exportService{sessions: sessions, provider: provider, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportRegistration 导出选课单
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "Registration"
//   - 列：CRN | Subject | Course | Section | Title | Days | Times | Credits
//   - 多组上课时间的班级，Days / Times 按组换行
//   - 学分不定（如 1-3）时留空
//   - 表尾：数据集时间戳 t1、导出时间戳 t2、以及前面所有内容的 SHA-256 摘要 h

var registrationHeaders = []string{"CRN", "Subject", "Course", "Section", "Title", "Days", "Times", "Credits"}

func (s *exportService) ExportRegistration(ctx context.Context, sessionID string) (*bytes.Buffer, string, error) {
	e, err := s.sessions.lookup(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	idx, err := s.provider.Index()
	if err != nil {
		return nil, "", err
	}

	sections := e.session.Snapshot().Selected
	if len(sections) == 0 {
		return nil, "", ErrExportNoSections
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Registration"
	sheet, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(sheet)
	f.DeleteSheet("Sheet1")

	// 列宽
	widths := []float64{8, 9, 8, 9, 40, 8, 12, 8}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	wrapStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})

	// 表头
	for i, h := range registrationHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(registrationHeaders)-1), 1), headerStyle)

	// 数据行
	var digest strings.Builder
	row := 2
	for _, sec := range sections {
		values := registrationRow(&sec)
		for i, v := range values {
			f.SetCellValue(sheetName, cell(colName(i), row), v)
			digest.WriteString(v)
		}
		f.SetCellStyle(sheetName, cell("A", row), cell(colName(len(values)-1), row), wrapStyle)
		row++
	}

	// 表尾
	row++
	t1 := formatUnix(idx.Timestamp())
	t2 := formatUnix(s.sessions.now())
	digest.WriteString(t1)
	digest.WriteString(t2)
	sum := sha256.Sum256([]byte(digest.String()))
	for _, line := range []string{"// t1 = " + t1, "// t2 = " + t2, "// h = " + hex.EncodeToString(sum[:])} {
		f.SetCellValue(sheetName, cell("A", row), line)
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	s.logger.Info("导出选课单", zap.String("session_id", sessionID), zap.Int("sections", len(sections)))
	return buf, "RegistrationForm.xlsx", nil
}

// registrationRow 选课单一行
func registrationRow(sec *model.Section) []string {
	times := make([]string, len(sec.Times))
	for i, t := range sec.Times {
		times[i] = fmt.Sprintf("%d-%d", t.Start, t.End)
	}
	credits := ""
	if sec.Credits.Fixed() {
		credits = strconv.FormatFloat(sec.Credits.Lo, 'f', -1, 64)
	}
	return []string{
		strconv.Itoa(sec.CRN),
		sec.Subject,
		strconv.Itoa(sec.Course),
		sec.Section,
		sec.Title,
		strings.Join(sec.Days, "\n"),
		strings.Join(times, "\n"),
		credits,
	}
}

// formatUnix 秒级 Unix 时间戳，保留小数部分
func formatUnix(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMilli())/1000, 'f', -1, 64)
}

// ═══════════════════════════════════════════════════════════
// ExportCalendar 导出本周日历
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportCalendar(ctx context.Context, sessionID string) (*bytes.Buffer, string, error) {
	e, err := s.sessions.lookup(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}

	now := s.sessions.now().In(s.sessions.loc)
	events := WeekEvents(e.session.Snapshot(), now)
	if len(events) == 0 {
		return nil, "", ErrExportEmpty
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//semester-planner//schedule//EN")

	for _, ev := range events {
		start, err := time.ParseInLocation(model.LocalTimeLayout, ev.Start, s.sessions.loc)
		if err != nil {
			s.logger.Warn("跳过无法解析的事件", zap.String("summary", ev.Summary), zap.Error(err))
			continue
		}
		end, err := time.ParseInLocation(model.LocalTimeLayout, ev.End, s.sessions.loc)
		if err != nil {
			s.logger.Warn("跳过无法解析的事件", zap.String("summary", ev.Summary), zap.Error(err))
			continue
		}

		vevent := cal.AddEvent(eventUID(ev))
		vevent.SetDtStampTime(now)
		vevent.SetStartAt(start)
		vevent.SetEndAt(end)
		vevent.SetSummary(ev.Summary)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			vevent.SetLocation(ev.Location)
		}
		if ev.Type == EventTempSection {
			vevent.SetProperty(ics.ComponentPropertyStatus, "TENTATIVE")
		}
	}

	buf := bytes.NewBufferString(cal.Serialize())
	s.logger.Info("导出日历", zap.String("session_id", sessionID), zap.Int("events", len(events)))
	return buf, "schedule.ics", nil
}

// eventUID 同一会话同一周内稳定的事件 UID
func eventUID(ev CalendarEvent) string {
	if ev.Type == EventBlockOut {
		return ev.ID + "@semester-planner"
	}
	return fmt.Sprintf("%d-%s-%s@semester-planner", ev.CRN, ev.Type, strings.NewReplacer("-", "", ":", "").Replace(ev.Start))
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
