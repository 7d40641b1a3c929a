package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"

	"github.com/KhalilA93/TImesheetTracker/internal/model"
	pkgerrors "github.com/KhalilA93/TImesheetTracker/pkg/errors"
)

// ── 测试辅助 ──

func setupTestExportService() (ExportService, *mockRepos) {
	repos := newMockRepos()
	st := repos.seedSettings("u1", 20)
	st.Profile.FirstName = "Alice"
	st.Profile.Company = "Acme"
	repos.settings.settings["u1"] = *st
	svc := NewExportService(repos.repo, testLogger)
	return svc, repos
}

var (
	exportFrom = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	exportTo   = time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
)

// ── 区间校验 ──

func TestExportService_NoEntries(t *testing.T) {
	svc, _ := setupTestExportService()

	_, _, err := svc.ExportEntriesXLSX(context.Background(), "u1", exportFrom, exportTo)
	if !errors.Is(err, ErrExportNoEntries) {
		t.Errorf("期望 ErrExportNoEntries，实际: %v", err)
	}
	_, _, err = svc.ExportEntriesICS(context.Background(), "u1", exportFrom, exportTo)
	if !errors.Is(err, ErrExportNoEntries) {
		t.Errorf("期望 ErrExportNoEntries，实际: %v", err)
	}
}

func TestExportService_InvalidRange(t *testing.T) {
	svc, _ := setupTestExportService()

	_, _, err := svc.ExportEntriesXLSX(context.Background(), "u1", exportTo, exportFrom)
	if _, ok := pkgerrors.AsValidation(err); !ok {
		t.Errorf("期望结束早于开始时返回 ValidationError，实际: %v", err)
	}

	_, _, err = svc.ExportEntriesXLSX(context.Background(), "u1", exportFrom, exportFrom.AddDate(2, 0, 0))
	if _, ok := pkgerrors.AsValidation(err); !ok {
		t.Errorf("期望超过 366 天时返回 ValidationError，实际: %v", err)
	}
}

// ── Excel ──

func TestExportService_XLSX(t *testing.T) {
	svc, repos := setupTestExportService()
	seedEntry(repos, "u1", 20, nil)
	override := seedEntry(repos, "u1", 20, ptr(30.0))
	draft := repos.entries.entries[override.EntryID]
	draft.Status = model.EntryStatusDraft
	repos.entries.entries[override.EntryID] = draft

	buf, filename, err := svc.ExportEntriesXLSX(context.Background(), "u1", exportFrom, exportTo)
	if err != nil {
		t.Fatalf("导出应成功: %v", err)
	}
	if filename != "timesheet_2026-03-01_2026-03-31.xlsx" {
		t.Errorf("文件名不符: %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("导出内容应为合法 xlsx: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 2 || sheets[0] != "Entries" || sheets[1] != "Projects" {
		t.Errorf("期望工作表 [Entries Projects]，实际 %v", sheets)
	}

	title, _ := f.GetCellValue("Entries", "A1")
	if !strings.Contains(title, "Alice") || !strings.Contains(title, "Acme") {
		t.Errorf("标题应包含姓名与公司，实际 %q", title)
	}

	rows, err := f.GetRows("Entries")
	if err != nil {
		t.Fatalf("读取明细失败: %v", err)
	}
	// 标题 + 表头 + 2 条记录 + 合计
	if len(rows) != 5 {
		t.Fatalf("期望 5 行，实际 %d", len(rows))
	}
	if rows[1][0] != "Date" || rows[1][5] != "Pay" {
		t.Errorf("表头不符: %v", rows[1])
	}

	// 合计只计入非草稿记录
	total, _ := f.GetCellValue("Entries", "F5", excelize.Options{RawCellValue: true})
	if total != "160" {
		t.Errorf("期望合计薪资 160，实际 %s", total)
	}
	hours, _ := f.GetCellValue("Entries", "D5", excelize.Options{RawCellValue: true})
	if hours != "8" {
		t.Errorf("期望合计工时 8，实际 %s", hours)
	}

	project, _ := f.GetCellValue("Projects", "A2")
	if project != "Acme" {
		t.Errorf("期望项目汇总第一行为 Acme，实际 %q", project)
	}
	entries, _ := f.GetCellValue("Projects", "D2")
	if entries != "2" {
		t.Errorf("期望项目记录数 2，实际 %s", entries)
	}
}

// ── iCalendar ──

func TestExportService_ICS(t *testing.T) {
	svc, repos := setupTestExportService()
	e := seedEntry(repos, "u1", 20, nil)
	stored := repos.entries.entries[e.EntryID]
	stored.Description = "Weekly sync, notes"
	repos.entries.entries[e.EntryID] = stored

	buf, filename, err := svc.ExportEntriesICS(context.Background(), "u1", exportFrom, exportTo)
	if err != nil {
		t.Fatalf("导出应成功: %v", err)
	}
	if !strings.HasSuffix(filename, ".ics") {
		t.Errorf("期望 .ics 文件名，实际 %s", filename)
	}

	content := buf.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "BEGIN:VEVENT", "X-WR-TIMEZONE:UTC", "CATEGORIES:regular", "STATUS:CONFIRMED"} {
		if !strings.Contains(content, want) {
			t.Errorf("导出内容应包含 %q", want)
		}
	}

	// 导出结果可被解析器读回
	cal, err := ics.ParseCalendar(strings.NewReader(content))
	if err != nil {
		t.Fatalf("导出内容应可被解析: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("期望 1 个事件，实际 %d", len(events))
	}
	if uid := events[0].Id(); uid != e.EntryID+"@"+icsEventUIDHost {
		t.Errorf("UID 不符: %s", uid)
	}
	if desc := events[0].GetProperty(ics.ComponentPropertyDescription); desc == nil || desc.Value != "Weekly sync, notes" {
		t.Errorf("描述应原样读回，实际 %+v", desc)
	}

	sessions, err := ParseICSSessions(strings.NewReader(content), time.UTC)
	if err != nil || len(sessions.Sessions) != 1 {
		t.Fatalf("导出内容应可重新导入: err=%v", err)
	}
	if got := sessions.Sessions[0].End.Sub(sessions.Sessions[0].Start); got != 8*time.Hour {
		t.Errorf("期望时长 8h，实际 %v", got)
	}
}
