package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/model"
	"github.com/KhalilA93/TImesheetTracker/internal/repository"
	pkgerrors "github.com/KhalilA93/TImesheetTracker/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoEntries    = errors.New("所选区间内没有工时记录")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

const (
	exportMaxDays   = 366
	icsProductID    = "-//Timesheet Tracker//Timesheet Export//EN"
	icsEventUIDHost = "timesheet-tracker"
)

// ExportService 导出业务接口
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportEntriesXLSX 导出工时记录为 Excel：明细表 + 按项目汇总表
	ExportEntriesXLSX(ctx context.Context, userID string, from, to time.Time) (*bytes.Buffer, string, error)
	// ExportEntriesICS 导出工时记录为 iCalendar 订阅内容
	ExportEntriesICS(ctx context.Context, userID string, from, to time.Time) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger, now: time.Now}
}

// ═══════════════════════════════════════════════════════════
// ExportEntriesXLSX 导出工时记录为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "Entries"：标题行 + 表头 + 每条记录一行 + 合计行（仅计入状态）
//   - Sheet "Projects"：按项目汇总（所有状态）

func (s *exportService) ExportEntriesXLSX(ctx context.Context, userID string, from, to time.Time) (*bytes.Buffer, string, error) {
	settings, entries, err := s.load(ctx, userID, from, to)
	if err != nil {
		return nil, "", err
	}

	totals, err := s.repo.Dashboard.Totals(ctx, userID, from, to)
	if err != nil {
		s.logger.Error("统计工时合计失败", zap.String("user_id", userID), zap.Error(err))
		return nil, "", err
	}
	projects, err := s.repo.Entry.ProjectSummary(ctx, userID, &from, &to)
	if err != nil {
		s.logger.Error("按项目汇总失败", zap.String("user_id", userID), zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	// ── 明细 ──
	sheet := "Entries"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"Date", "Start", "End", "Hours", "Rate", "Pay", "Project", "Category", "Status", "Description"}
	widths := []float64{12, 8, 8, 8, 10, 12, 20, 12, 12, 40}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheet, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#3174AD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	moneyStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 2})
	totalStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 2})

	// 标题行
	f.SetCellValue(sheet, "A1", exportTitle(settings, from, to))
	f.MergeCell(sheet, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	// 表头
	row := 2
	for i, h := range headers {
		f.SetCellValue(sheet, cell(colName(i), row), h)
	}
	f.SetCellStyle(sheet, cell("A", row), cell(colName(len(headers)-1), row), headerStyle)

	// 数据行（时间按用户时区展示）
	loc := settings.Location()
	policy := NewPayPolicy(settings)
	row = 3
	for i := range entries {
		e := &entries[i]
		f.SetCellValue(sheet, cell("A", row), e.Date.Format(dto.DateLayout))
		f.SetCellValue(sheet, cell("B", row), e.StartTime.In(loc).Format("15:04"))
		f.SetCellValue(sheet, cell("C", row), e.EndTime.In(loc).Format("15:04"))
		f.SetCellValue(sheet, cell("D", row), e.HoursWorked)
		f.SetCellValue(sheet, cell("E", row), EffectiveRate(e.PayRateOverride, policy.DefaultRate))
		f.SetCellValue(sheet, cell("F", row), e.CalculatedPay)
		f.SetCellValue(sheet, cell("G", row), e.Project)
		f.SetCellValue(sheet, cell("H", row), e.Category)
		f.SetCellValue(sheet, cell("I", row), e.Status)
		f.SetCellValue(sheet, cell("J", row), e.Description)
		f.SetCellStyle(sheet, cell("D", row), cell("F", row), moneyStyle)
		row++
	}

	// 合计行
	t := toTotals(totals)
	f.SetCellValue(sheet, cell("A", row), "Total")
	f.SetCellValue(sheet, cell("C", row), fmt.Sprintf("%d entries", t.EntryCount))
	f.SetCellValue(sheet, cell("D", row), t.TotalHours)
	f.SetCellValue(sheet, cell("F", row), t.TotalPay)
	f.SetCellStyle(sheet, cell("A", row), cell("F", row), totalStyle)

	// ── 按项目汇总 ──
	psheet := "Projects"
	f.NewSheet(psheet)
	f.SetColWidth(psheet, "A", "A", 24)
	f.SetColWidth(psheet, "B", "D", 12)
	f.SetColWidth(psheet, "E", "E", 36)
	for i, h := range []string{"Project", "Hours", "Pay", "Entries", "Categories"} {
		f.SetCellValue(psheet, cell(colName(i), 1), h)
	}
	f.SetCellStyle(psheet, "A1", "E1", headerStyle)
	for i, p := range projects {
		r := i + 2
		name := p.Project
		if name == "" {
			name = "(none)"
		}
		f.SetCellValue(psheet, cell("A", r), name)
		f.SetCellValue(psheet, cell("B", r), p.TotalHours)
		f.SetCellValue(psheet, cell("C", r), p.TotalPay)
		f.SetCellValue(psheet, cell("D", r), p.EntryCount)
		f.SetCellValue(psheet, cell("E", r), p.CategoryList)
		f.SetCellStyle(psheet, cell("B", r), cell("C", r), moneyStyle)
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("timesheet_%s_%s.xlsx", from.Format(dto.DateLayout), to.Format(dto.DateLayout))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportEntriesICS 导出工时记录为 iCalendar
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportEntriesICS(ctx context.Context, userID string, from, to time.Time) (*bytes.Buffer, string, error) {
	settings, entries, err := s.load(ctx, userID, from, to)
	if err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName("Timesheet")
	cal.SetXWRTimezone(settings.Timezone)

	for i := range entries {
		e := &entries[i]
		evt := cal.AddEvent(fmt.Sprintf("%s@%s", e.EntryID, icsEventUIDHost))
		evt.SetDtStampTime(now)
		evt.SetCreatedTime(e.CreatedAt)
		evt.SetModifiedAt(e.UpdatedAt)
		evt.SetStartAt(e.StartTime)
		evt.SetEndAt(e.EndTime)
		evt.SetSummary(e.Title(settings.CurrencySymbol))
		if e.Description != "" {
			evt.SetDescription(e.Description)
		}
		if e.Project != "" {
			evt.SetLocation(e.Project)
		}
		evt.SetProperty(ics.ComponentPropertyCategories, e.Category)
		if e.Status == model.EntryStatusDraft {
			evt.SetStatus(ics.ObjectStatusTentative)
		} else {
			evt.SetStatus(ics.ObjectStatusConfirmed)
		}
	}

	buf := new(bytes.Buffer)
	if err := cal.SerializeTo(buf); err != nil {
		s.logger.Error("生成 iCalendar 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("timesheet_%s_%s.ics", from.Format(dto.DateLayout), to.Format(dto.DateLayout))
	return buf, filename, nil
}

// ── 辅助函数 ──

// load 校验区间并读取设置与记录
func (s *exportService) load(ctx context.Context, userID string, from, to time.Time) (*model.UserSettings, []model.TimesheetEntry, error) {
	if to.Before(from) {
		return nil, nil, pkgerrors.NewValidationError("end_date 不能早于 start_date")
	}
	if to.Sub(from) > exportMaxDays*24*time.Hour {
		return nil, nil, pkgerrors.NewValidationError(fmt.Sprintf("导出区间不能超过 %d 天", exportMaxDays))
	}

	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, nil, err
	}

	entries, err := s.repo.Entry.ListByDateRange(ctx, userID, from, to)
	if err != nil {
		s.logger.Error("查询导出记录失败", zap.String("user_id", userID), zap.Error(err))
		return nil, nil, err
	}
	if len(entries) == 0 {
		return nil, nil, ErrExportNoEntries
	}
	return settings, entries, nil
}

func exportTitle(settings *model.UserSettings, from, to time.Time) string {
	title := fmt.Sprintf("Timesheet %s ~ %s", from.Format(dto.DateLayout), to.Format(dto.DateLayout))
	name := settings.Profile.FirstName
	if settings.Profile.LastName != "" {
		name += " " + settings.Profile.LastName
	}
	if name != "" {
		title += " | " + name
	}
	if settings.Profile.Company != "" {
		title += " | " + settings.Profile.Company
	}
	return title
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
