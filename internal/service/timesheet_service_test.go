package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/model"
	pkgerrors "github.com/KhalilA93/TImesheetTracker/pkg/errors"
)

var testDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func setupTestTimesheetService() (*timesheetService, *mockRepos) {
	repos := newMockRepos()
	svc := NewTimesheetService(repos.repo, testLogger).(*timesheetService)
	svc.now = fixedClock(testDay.Add(7 * time.Hour))
	return svc, repos
}

func newCreateRequest(startHour, endHour int) *dto.CreateEntryRequest {
	return &dto.CreateEntryRequest{
		Date:      "2026-03-02",
		StartTime: testDay.Add(time.Duration(startHour) * time.Hour),
		EndTime:   testDay.Add(time.Duration(endHour) * time.Hour),
		Project:   "  Acme  ",
	}
}

// ── Create ──

func TestCreateEntry_DerivesHoursAndPay(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)

	resp, err := svc.Create(context.Background(), "u1", newCreateRequest(9, 17))
	require.NoError(t, err)

	e := resp.Entry
	assert.Equal(t, 8.0, e.HoursWorked)
	assert.InDelta(t, 160.0, e.CalculatedPay, 1e-9)
	assert.Equal(t, "Acme", e.Project)
	assert.Equal(t, model.CategoryRegular, e.Category)
	assert.Equal(t, model.EntryStatusConfirmed, e.Status)
	assert.Equal(t, "#3174ad", e.Color, "未指定颜色时取分类配色")
	assert.Nil(t, resp.Alarm)
	assert.Len(t, repos.entries.entries, 1)
}

func TestCreateEntry_OverrideRate(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)

	req := newCreateRequest(9, 13)
	req.PayRateOverride = ptr(30.0)
	resp, err := svc.Create(context.Background(), "u1", req)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, resp.Entry.CalculatedPay, 1e-9)

	// 0 表示不设置单条费率
	req = newCreateRequest(9, 13)
	req.PayRateOverride = ptr(0.0)
	resp, err = svc.Create(context.Background(), "u1", req)
	require.NoError(t, err)
	assert.Nil(t, resp.Entry.PayRateOverride)
	assert.InDelta(t, 80.0, resp.Entry.CalculatedPay, 1e-9)
}

func TestCreateEntry_EndBeforeStart(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)

	for _, req := range []*dto.CreateEntryRequest{newCreateRequest(17, 9), newCreateRequest(9, 9)} {
		_, err := svc.Create(context.Background(), "u1", req)
		_, ok := pkgerrors.AsValidation(err)
		assert.True(t, ok, "期望 ValidationError，实际: %v", err)
	}
	assert.Empty(t, repos.entries.entries, "校验失败时不应写入任何记录")
}

func TestCreateEntry_WithReminder(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)

	req := newCreateRequest(9, 17)
	req.Reminder = &dto.EntryReminderRequest{ReminderMinutes: ptr(10)}
	resp, err := svc.Create(context.Background(), "u1", req)
	require.NoError(t, err)
	require.NotNil(t, resp.Alarm)

	require.Len(t, repos.alarms.alarms, 1)
	for _, a := range repos.alarms.alarms {
		assert.Equal(t, model.AlarmTypeStart, a.Type)
		assert.Equal(t, testDay.Add(9*time.Hour-10*time.Minute), a.AlarmTime)
		require.NotNil(t, a.TimesheetEntryID)
		assert.Equal(t, resp.Entry.ID, *a.TimesheetEntryID)
		assert.Equal(t, model.AlarmStatusActive, a.Status)
	}
}

// ── Update ──

func TestUpdateEntry_ReDerivesOnTimeChange(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)
	created, err := svc.Create(context.Background(), "u1", newCreateRequest(9, 17))
	require.NoError(t, err)

	end := testDay.Add(19 * time.Hour)
	resp, err := svc.Update(context.Background(), "u1", created.Entry.ID, &dto.UpdateEntryRequest{EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, 10.0, resp.HoursWorked)
	assert.InDelta(t, 200.0, resp.CalculatedPay, 1e-9)
}

func TestUpdateEntry_DescriptionKeepsPay(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)
	created, err := svc.Create(context.Background(), "u1", newCreateRequest(9, 17))
	require.NoError(t, err)

	// 费率变化但时间未变：薪资只在批量重算时更新
	st := repos.settings.settings["u1"]
	st.DefaultPayRate = 50
	repos.settings.settings["u1"] = st

	resp, err := svc.Update(context.Background(), "u1", created.Entry.ID, &dto.UpdateEntryRequest{Description: ptr("notes")})
	require.NoError(t, err)
	assert.Equal(t, "notes", resp.Description)
	assert.InDelta(t, 160.0, resp.CalculatedPay, 1e-9)
}

func TestUpdateEntry_ComputesPendingPay(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)
	e := seedEntry(repos, "u1", 20, nil)
	stored := repos.entries.entries[e.EntryID]
	stored.CalculatedPay = 0
	repos.entries.entries[e.EntryID] = stored

	resp, err := svc.Update(context.Background(), "u1", e.EntryID, &dto.UpdateEntryRequest{Description: ptr("notes")})
	require.NoError(t, err)
	assert.InDelta(t, 8.0, resp.HoursWorked, 1e-9)
	assert.InDelta(t, 160.0, resp.CalculatedPay, 1e-9, "薪资未计算时应在更新时补算")
}

func TestUpdateEntry_InvalidTimes(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)
	created, err := svc.Create(context.Background(), "u1", newCreateRequest(9, 17))
	require.NoError(t, err)

	start := testDay.Add(18 * time.Hour)
	_, err = svc.Update(context.Background(), "u1", created.Entry.ID, &dto.UpdateEntryRequest{StartTime: &start})
	_, ok := pkgerrors.AsValidation(err)
	assert.True(t, ok, "期望 ValidationError，实际: %v", err)
	assert.Equal(t, 8.0, repos.entries.entries[created.Entry.ID].HoursWorked)
}

func TestUpdateEntry_OtherUsersEntry(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)
	created, err := svc.Create(context.Background(), "u1", newCreateRequest(9, 17))
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), "u2", created.Entry.ID, &dto.UpdateEntryRequest{Description: ptr("x")})
	assert.True(t, errors.Is(err, ErrEntryNotFound), "期望 ErrEntryNotFound，实际: %v", err)
}

// ── Delete ──

func TestDeleteEntry_CascadesAlarms(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)
	req := newCreateRequest(9, 17)
	req.Reminder = &dto.EntryReminderRequest{}
	created, err := svc.Create(context.Background(), "u1", req)
	require.NoError(t, err)
	require.Len(t, repos.alarms.alarms, 1)

	require.NoError(t, svc.Delete(context.Background(), "u1", created.Entry.ID))
	assert.Empty(t, repos.entries.entries)
	assert.Empty(t, repos.alarms.alarms, "删除记录时应一并删除关联提醒")

	err = svc.Delete(context.Background(), "u1", created.Entry.ID)
	assert.True(t, errors.Is(err, ErrEntryNotFound), "期望 ErrEntryNotFound，实际: %v", err)
}

// ── BulkUpdate ──

func TestBulkUpdate(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)
	a, _ := svc.Create(context.Background(), "u1", newCreateRequest(9, 10))
	b, _ := svc.Create(context.Background(), "u1", newCreateRequest(11, 12))

	res, err := svc.BulkUpdate(context.Background(), "u1", &dto.BulkUpdateEntriesRequest{
		EntryIDs: []string{a.Entry.ID, b.Entry.ID, "missing"},
		Updates:  &dto.BulkEntryUpdates{Status: ptr(model.EntryStatusSubmitted)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.ModifiedCount)
	assert.Equal(t, model.EntryStatusSubmitted, repos.entries.entries[a.Entry.ID].Status)
}

func TestBulkUpdate_NoFields(t *testing.T) {
	svc, _ := setupTestTimesheetService()

	_, err := svc.BulkUpdate(context.Background(), "u1", &dto.BulkUpdateEntriesRequest{
		EntryIDs: []string{"x"},
		Updates:  &dto.BulkEntryUpdates{},
	})
	_, ok := pkgerrors.AsValidation(err)
	assert.True(t, ok, "期望 ValidationError，实际: %v", err)
}

// ── 查询 ──

func TestTotals_ExcludesDrafts(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)
	_, _ = svc.Create(context.Background(), "u1", newCreateRequest(9, 17))
	draft := newCreateRequest(18, 20)
	draft.Status = model.EntryStatusDraft
	_, _ = svc.Create(context.Background(), "u1", draft)

	totals, err := svc.Totals(context.Background(), "u1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 8.0, totals.TotalHours)
	assert.InDelta(t, 160.0, totals.TotalPay, 1e-9)
	assert.Equal(t, int64(1), totals.EntryCount)

	empty, err := svc.Totals(context.Background(), "nobody", nil, nil)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalHours)
}

func TestCalendar_UsesEntryTitle(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)
	_, _ = svc.Create(context.Background(), "u1", newCreateRequest(9, 17))

	events, err := svc.Calendar(context.Background(), "u1", testDay, testDay)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Title, "8")
	assert.Equal(t, "Acme", events[0].Resource.Project)

	_, err = svc.Calendar(context.Background(), "u1", testDay, testDay.AddDate(0, 0, -1))
	_, ok := pkgerrors.AsValidation(err)
	assert.True(t, ok)
}

func TestProjectSummary(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)
	_, _ = svc.Create(context.Background(), "u1", newCreateRequest(9, 17))
	meeting := newCreateRequest(17, 18)
	meeting.Category = model.CategoryMeeting
	_, _ = svc.Create(context.Background(), "u1", meeting)

	items, err := svc.ProjectSummary(context.Background(), "u1", nil, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 9.0, items[0].TotalHours)
	assert.ElementsMatch(t, []string{model.CategoryRegular, model.CategoryMeeting}, items[0].Categories)
}

func TestParseOptionalRange(t *testing.T) {
	from, to, err := ParseOptionalRange(dto.OptionalDateRangeQuery{StartDate: "2026-03-01"})
	require.NoError(t, err)
	assert.NotNil(t, from)
	assert.Nil(t, to)

	_, _, err = ParseOptionalRange(dto.OptionalDateRangeQuery{StartDate: "2026-03-05", EndDate: "2026-03-01"})
	_, ok := pkgerrors.AsValidation(err)
	assert.True(t, ok)

	_, _, err = ParseOptionalRange(dto.OptionalDateRangeQuery{EndDate: "03/01/2026"})
	_, ok = pkgerrors.AsValidation(err)
	assert.True(t, ok)
}

// ── ICS 导入 ──

func TestImportICS(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)

	data := buildICS(
		`BEGIN:VEVENT
UID:shift
DTSTART:20260302T140000Z
DTEND:20260302T180000Z
RRULE:FREQ=DAILY;COUNT=2
SUMMARY:Support shift
LOCATION:Helpdesk
END:VEVENT`,
		`BEGIN:VEVENT
UID:holiday
DTSTART;VALUE=DATE:20260305
SUMMARY:Day off
END:VEVENT`,
	)

	resp, err := svc.ImportICS(context.Background(), "u1", strings.NewReader(data), &dto.ImportICSOptions{Category: model.CategoryTraining})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Imported)
	assert.Equal(t, 1, resp.Skipped)
	require.Len(t, resp.Entries, 2)
	for _, e := range resp.Entries {
		assert.Equal(t, 4.0, e.HoursWorked)
		assert.InDelta(t, 80.0, e.CalculatedPay, 1e-9)
		assert.Equal(t, "Helpdesk", e.Project, "未指定项目时取事件地点")
		assert.Equal(t, model.CategoryTraining, e.Category)
	}
	assert.Len(t, repos.entries.entries, 2)
}

func TestImportICS_InvalidFile(t *testing.T) {
	svc, repos := setupTestTimesheetService()
	repos.seedSettings("u1", 20)

	_, err := svc.ImportICS(context.Background(), "u1", strings.NewReader("not a calendar"), nil)
	_, ok := pkgerrors.AsValidation(err)
	assert.True(t, ok, "期望 ValidationError，实际: %v", err)
	assert.Empty(t, repos.entries.entries)
}
