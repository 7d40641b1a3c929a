package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/model"
	pkgerrors "github.com/KhalilA93/TImesheetTracker/pkg/errors"
)

func setupTestSettingsService() (SettingsService, *mockRepos) {
	repos := newMockRepos()
	return NewSettingsService(repos.repo, testLogger), repos
}

// seedEntry 写入一条 8 小时记录，薪资按给定费率计算
func seedEntry(repos *mockRepos, userID string, rate float64, override *float64) *model.TimesheetEntry {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	e := &model.TimesheetEntry{
		UserID:          userID,
		Date:            time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		StartTime:       start,
		EndTime:         start.Add(8 * time.Hour),
		HoursWorked:     8,
		PayRateOverride: override,
		CalculatedPay:   8 * EffectiveRate(override, rate),
		Project:         "Acme",
		Category:        model.CategoryRegular,
		Status:          model.EntryStatusConfirmed,
	}
	_ = repos.entries.Create(context.Background(), e)
	return e
}

func TestSettingsGet_CreatesDefaults(t *testing.T) {
	svc, repos := setupTestSettingsService()

	resp, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 15.0, resp.DefaultPayRate)
	assert.Equal(t, "$15.00/hr", resp.FormattedPayRate)
	assert.Contains(t, repos.settings.settings, "u1")
}

func TestUpdatePayRate_RecalculatesEntries(t *testing.T) {
	svc, repos := setupTestSettingsService()
	repos.seedSettings("u1", 20)
	e1 := seedEntry(repos, "u1", 20, nil)
	e2 := seedEntry(repos, "u1", 20, nil)
	other := seedEntry(repos, "u2", 20, nil)

	resp, err := svc.UpdatePayRate(context.Background(), "u1", 25)
	require.NoError(t, err)
	require.NotNil(t, resp.RecalculationInfo)
	assert.True(t, resp.RecalculationInfo.PayRateChanged)
	assert.Equal(t, 20.0, resp.RecalculationInfo.OldPayRate)
	assert.Equal(t, 25.0, resp.RecalculationInfo.NewPayRate)
	assert.Equal(t, 2, resp.RecalculationInfo.EntriesRecalculated)

	assert.InDelta(t, 200.0, repos.entries.entries[e1.EntryID].CalculatedPay, 1e-9)
	assert.InDelta(t, 200.0, repos.entries.entries[e2.EntryID].CalculatedPay, 1e-9)
	assert.InDelta(t, 160.0, repos.entries.entries[other.EntryID].CalculatedPay, 1e-9, "其他用户的记录不应被重算")
}

func TestUpdatePayRate_SkipsOverrides(t *testing.T) {
	svc, repos := setupTestSettingsService()
	repos.seedSettings("u1", 20)
	plain := seedEntry(repos, "u1", 20, nil)
	fixed := seedEntry(repos, "u1", 20, ptr(30.0))

	resp, err := svc.UpdatePayRate(context.Background(), "u1", 25)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.RecalculationInfo.EntriesRecalculated)
	assert.InDelta(t, 200.0, repos.entries.entries[plain.EntryID].CalculatedPay, 1e-9)
	assert.InDelta(t, 240.0, repos.entries.entries[fixed.EntryID].CalculatedPay, 1e-9)
}

func TestUpdatePayRate_SameRateNoRecalculation(t *testing.T) {
	svc, repos := setupTestSettingsService()
	repos.seedSettings("u1", 20)
	seedEntry(repos, "u1", 20, nil)

	resp, err := svc.UpdatePayRate(context.Background(), "u1", 20)
	require.NoError(t, err)
	assert.Nil(t, resp.RecalculationInfo)
}

func TestUpdatePayRate_NegativeRejected(t *testing.T) {
	svc, repos := setupTestSettingsService()
	repos.seedSettings("u1", 20)
	e := seedEntry(repos, "u1", 20, nil)

	_, err := svc.UpdatePayRate(context.Background(), "u1", -1)
	_, ok := pkgerrors.AsValidation(err)
	assert.True(t, ok, "期望 ValidationError，实际: %v", err)
	assert.Equal(t, 20.0, repos.settings.settings["u1"].DefaultPayRate)
	assert.InDelta(t, 160.0, repos.entries.entries[e.EntryID].CalculatedPay, 1e-9)
}

func TestUpdateOvertime_RecalculatesIncludingOverrides(t *testing.T) {
	svc, repos := setupTestSettingsService()
	repos.seedSettings("u1", 20)
	e := seedEntry(repos, "u1", 20, ptr(10.0))
	// 10 小时：8 × 10 + 2 × 10 × 1.5 = 110
	rec := repos.entries.entries[e.EntryID]
	rec.HoursWorked = 10
	rec.CalculatedPay = 100
	repos.entries.entries[e.EntryID] = rec

	resp, err := svc.UpdateOvertime(context.Background(), "u1", &dto.OvertimePatch{ApplyOvertimeToEntries: ptr(true)})
	require.NoError(t, err)
	require.NotNil(t, resp.RecalculationInfo)
	assert.False(t, resp.RecalculationInfo.PayRateChanged)
	assert.Equal(t, 1, resp.RecalculationInfo.EntriesRecalculated)
	assert.InDelta(t, 110.0, repos.entries.entries[e.EntryID].CalculatedPay, 1e-9)
}

func TestUpdateKey_DottedPath(t *testing.T) {
	svc, repos := setupTestSettingsService()
	repos.seedSettings("u1", 20)

	_, err := svc.UpdateKey(context.Background(), "u1", "notifications.default_reminder_minutes", json.RawMessage(`30`))
	require.NoError(t, err)
	assert.Equal(t, 30, repos.settings.settings["u1"].Notifications.DefaultReminderMinutes)

	resp, err := svc.UpdateKey(context.Background(), "u1", "default_pay_rate", json.RawMessage(`22.5`))
	require.NoError(t, err)
	assert.Equal(t, 22.5, resp.Settings.DefaultPayRate)
	require.NotNil(t, resp.RecalculationInfo)
}

func TestUpdateKey_Invalid(t *testing.T) {
	svc, repos := setupTestSettingsService()
	repos.seedSettings("u1", 20)

	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"未知字段", "no_such_setting", `1`},
		{"类型不符", "default_pay_rate", `"abc"`},
		{"空值", "currency", `null`},
		{"空路径段", "notifications..browser_notifications", `true`},
		{"枚举越界", "currency", `"XYZ"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpdateKey(context.Background(), "u1", tc.key, json.RawMessage(tc.value))
			_, ok := pkgerrors.AsValidation(err)
			assert.True(t, ok, "期望 ValidationError，实际: %v", err)
		})
	}
}

func TestUpdateColors_Merges(t *testing.T) {
	svc, repos := setupTestSettingsService()
	repos.seedSettings("u1", 20)
	before := repos.settings.settings["u1"].ColorScheme[model.CategoryMeeting]

	colors, err := svc.UpdateColors(context.Background(), "u1", map[string]string{model.CategoryRegular: "#000000"})
	require.NoError(t, err)
	assert.Equal(t, "#000000", colors[model.CategoryRegular])
	assert.Equal(t, before, colors[model.CategoryMeeting])
}

func TestCalculatePay(t *testing.T) {
	svc, repos := setupTestSettingsService()
	repos.seedSettings("u1", 20)

	resp, err := svc.CalculatePay(context.Background(), "u1", &dto.CalculatePayRequest{HoursWorked: ptr(10.0)})
	require.NoError(t, err)
	assert.Equal(t, 20.0, resp.PayRate)
	assert.Equal(t, 8.0, resp.RegularHours)
	assert.Equal(t, 2.0, resp.OvertimeHours)
	assert.InDelta(t, 160.0, resp.RegularPay, 1e-9)
	assert.InDelta(t, 60.0, resp.OvertimePay, 1e-9)
	assert.InDelta(t, 220.0, resp.TotalPay, 1e-9)

	resp, err = svc.CalculatePay(context.Background(), "u1", &dto.CalculatePayRequest{HoursWorked: ptr(4.0), PayRate: ptr(30.0)})
	require.NoError(t, err)
	assert.InDelta(t, 120.0, resp.TotalPay, 1e-9)
}

func TestResetSettings_RestoresDefaults(t *testing.T) {
	svc, repos := setupTestSettingsService()
	repos.seedSettings("u1", 40)
	e := seedEntry(repos, "u1", 40, nil)

	resp, err := svc.Reset(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 15.0, resp.Settings.DefaultPayRate)
	assert.Equal(t, "America/New_York", resp.Settings.Timezone)
	require.NotNil(t, resp.RecalculationInfo)
	assert.InDelta(t, 120.0, repos.entries.entries[e.EntryID].CalculatedPay, 1e-9)
}

func TestExportImportSettings(t *testing.T) {
	svc, repos := setupTestSettingsService()
	repos.seedSettings("u1", 33)

	exported, err := svc.Export(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, exported.Settings.DefaultPayRate)
	assert.Equal(t, 33.0, *exported.Settings.DefaultPayRate)

	_, err = svc.Import(context.Background(), "u2", &exported.Settings)
	require.NoError(t, err)
	assert.Equal(t, 33.0, repos.settings.settings["u2"].DefaultPayRate)
	assert.Equal(t, "u2", repos.settings.settings["u2"].UserID)
}

func TestRecalculateEntries(t *testing.T) {
	svc, repos := setupTestSettingsService()
	repos.seedSettings("u1", 20)
	e := seedEntry(repos, "u1", 20, ptr(25.0))
	rec := repos.entries.entries[e.EntryID]
	rec.CalculatedPay = 0
	repos.entries.entries[e.EntryID] = rec

	n, err := svc.RecalculateEntries(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 200.0, repos.entries.entries[e.EntryID].CalculatedPay, 1e-9)
}
