package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KhalilA93/TImesheetTracker/internal/model"
	"github.com/KhalilA93/TImesheetTracker/internal/repository"
)

// 所有 mock 按值保存，读取时返回副本：
// 服务层修改返回的对象后必须调用 Update 才会落库，与真实数据库行为一致

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]model.User // key: user_id
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		m.seq++
		user.UserID = fmt.Sprintf("user-%d", m.seq)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.users[user.UserID] = *user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	if _, ok := m.users[user.UserID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.users[user.UserID] = *user
	return nil
}

// ── Mock UserSettingsRepository ──

type mockSettingsRepo struct {
	settings  map[string]model.UserSettings
	updateErr error
}

func newMockSettingsRepo() *mockSettingsRepo {
	return &mockSettingsRepo{settings: make(map[string]model.UserSettings)}
}

func (m *mockSettingsRepo) GetByUser(_ context.Context, userID string) (*model.UserSettings, error) {
	if s, ok := m.settings[userID]; ok {
		s.ColorScheme = s.ColorScheme.Clone()
		return &s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSettingsRepo) Create(_ context.Context, settings *model.UserSettings) error {
	if _, ok := m.settings[settings.UserID]; ok {
		return nil
	}
	s := *settings
	s.ColorScheme = settings.ColorScheme.Clone()
	m.settings[settings.UserID] = s
	return nil
}

func (m *mockSettingsRepo) Update(_ context.Context, settings *model.UserSettings) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	s := *settings
	s.ColorScheme = settings.ColorScheme.Clone()
	m.settings[settings.UserID] = s
	return nil
}

func (m *mockSettingsRepo) Delete(_ context.Context, userID string) error {
	delete(m.settings, userID)
	return nil
}

// ── Mock TimesheetEntryRepository ──

type mockEntryRepo struct {
	entries      map[string]model.TimesheetEntry
	seq          int
	updatePayErr error
}

func newMockEntryRepo() *mockEntryRepo {
	return &mockEntryRepo{entries: make(map[string]model.TimesheetEntry)}
}

func (m *mockEntryRepo) Create(_ context.Context, entry *model.TimesheetEntry) error {
	if entry.EntryID == "" {
		m.seq++
		entry.EntryID = fmt.Sprintf("entry-%d", m.seq)
	}
	now := time.Now()
	entry.CreatedAt, entry.UpdatedAt = now, now
	m.entries[entry.EntryID] = *entry
	return nil
}

func (m *mockEntryRepo) BatchCreate(ctx context.Context, entries []model.TimesheetEntry) error {
	for i := range entries {
		if err := m.Create(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockEntryRepo) GetByID(_ context.Context, userID, id string) (*model.TimesheetEntry, error) {
	if e, ok := m.entries[id]; ok && e.UserID == userID {
		return &e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEntryRepo) Update(_ context.Context, entry *model.TimesheetEntry) error {
	if _, ok := m.entries[entry.EntryID]; !ok {
		return gorm.ErrRecordNotFound
	}
	entry.UpdatedAt = time.Now()
	m.entries[entry.EntryID] = *entry
	return nil
}

func (m *mockEntryRepo) Delete(_ context.Context, userID, id string) error {
	if e, ok := m.entries[id]; !ok || e.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *mockEntryRepo) List(_ context.Context, userID string, f repository.EntryFilter) ([]model.TimesheetEntry, int64, error) {
	var result []model.TimesheetEntry
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if f.StartDate != nil && e.Date.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && e.Date.After(*f.EndDate) {
			continue
		}
		if f.Project != "" && !strings.Contains(strings.ToLower(e.Project), strings.ToLower(f.Project)) {
			continue
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.After(result[j].StartTime) })

	total := int64(len(result))
	if f.Offset >= len(result) {
		return []model.TimesheetEntry{}, total, nil
	}
	end := len(result)
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return result[f.Offset:end], total, nil
}

func (m *mockEntryRepo) ListByDateRange(_ context.Context, userID string, from, to time.Time) ([]model.TimesheetEntry, error) {
	var result []model.TimesheetEntry
	for _, e := range m.entries {
		if e.UserID == userID && !e.Date.Before(from) && !e.Date.After(to) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (m *mockEntryRepo) ListRecent(_ context.Context, userID string, limit int) ([]model.TimesheetEntry, error) {
	all, _, _ := m.List(context.Background(), userID, repository.EntryFilter{Limit: limit})
	return all, nil
}

func (m *mockEntryRepo) ListForRecalculation(_ context.Context, userID string, includeOverrides bool) ([]model.TimesheetEntry, error) {
	var result []model.TimesheetEntry
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if !includeOverrides && e.HasOverride() {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (m *mockEntryRepo) UpdatePay(_ context.Context, entryID string, pay float64) error {
	if m.updatePayErr != nil {
		return m.updatePayErr
	}
	e, ok := m.entries[entryID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	e.CalculatedPay = pay
	m.entries[entryID] = e
	return nil
}

func (m *mockEntryRepo) BulkUpdate(_ context.Context, userID string, ids []string, fields map[string]interface{}) (int64, error) {
	var n int64
	for _, id := range ids {
		e, ok := m.entries[id]
		if !ok || e.UserID != userID {
			continue
		}
		for k, v := range fields {
			switch k {
			case "status":
				e.Status = v.(string)
			case "category":
				e.Category = v.(string)
			case "project":
				e.Project = v.(string)
			case "description":
				e.Description = v.(string)
			}
		}
		m.entries[id] = e
		n++
	}
	return n, nil
}

func (m *mockEntryRepo) ProjectSummary(_ context.Context, userID string, from, to *time.Time) ([]repository.ProjectSummaryRow, error) {
	rows := map[string]*repository.ProjectSummaryRow{}
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if from != nil && e.Date.Before(*from) {
			continue
		}
		if to != nil && e.Date.After(*to) {
			continue
		}
		r, ok := rows[e.Project]
		if !ok {
			r = &repository.ProjectSummaryRow{Project: e.Project}
			rows[e.Project] = r
		}
		r.TotalHours += e.HoursWorked
		r.TotalPay += e.CalculatedPay
		r.EntryCount++
		if !strings.Contains(r.CategoryList, e.Category) {
			if r.CategoryList != "" {
				r.CategoryList += ","
			}
			r.CategoryList += e.Category
		}
	}
	result := make([]repository.ProjectSummaryRow, 0, len(rows))
	for _, r := range rows {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TotalHours > result[j].TotalHours })
	return result, nil
}

// ── Mock AlarmRepository ──

type mockAlarmRepo struct {
	alarms  map[string]model.Alarm
	entries *mockEntryRepo
	seq     int
}

func newMockAlarmRepo(entries *mockEntryRepo) *mockAlarmRepo {
	return &mockAlarmRepo{alarms: make(map[string]model.Alarm), entries: entries}
}

func (m *mockAlarmRepo) Create(_ context.Context, alarm *model.Alarm) error {
	if alarm.AlarmID == "" {
		m.seq++
		alarm.AlarmID = fmt.Sprintf("alarm-%d", m.seq)
	}
	now := time.Now()
	alarm.CreatedAt, alarm.UpdatedAt = now, now
	stored := *alarm
	stored.Entry = nil
	m.alarms[alarm.AlarmID] = stored
	return nil
}

// withEntry 模拟 Preload("Entry")
func (m *mockAlarmRepo) withEntry(a model.Alarm) model.Alarm {
	if a.TimesheetEntryID != nil && m.entries != nil {
		if e, ok := m.entries.entries[*a.TimesheetEntryID]; ok {
			a.Entry = &e
		}
	}
	return a
}

func (m *mockAlarmRepo) GetByID(_ context.Context, userID, id string) (*model.Alarm, error) {
	if a, ok := m.alarms[id]; ok && a.UserID == userID {
		a = m.withEntry(a)
		return &a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAlarmRepo) Update(_ context.Context, alarm *model.Alarm) error {
	if _, ok := m.alarms[alarm.AlarmID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *alarm
	stored.Entry = nil
	m.alarms[alarm.AlarmID] = stored
	return nil
}

func (m *mockAlarmRepo) UpdateIfStatus(_ context.Context, alarm *model.Alarm, expectStatus string) (bool, error) {
	cur, ok := m.alarms[alarm.AlarmID]
	if !ok || cur.Status != expectStatus {
		return false, nil
	}
	stored := *alarm
	stored.Entry = nil
	m.alarms[alarm.AlarmID] = stored
	return true, nil
}

func (m *mockAlarmRepo) Delete(_ context.Context, userID, id string) error {
	if a, ok := m.alarms[id]; !ok || a.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(m.alarms, id)
	return nil
}

func (m *mockAlarmRepo) DeleteByEntry(_ context.Context, entryID string) error {
	for id, a := range m.alarms {
		if a.TimesheetEntryID != nil && *a.TimesheetEntryID == entryID {
			delete(m.alarms, id)
		}
	}
	return nil
}

func (m *mockAlarmRepo) sorted(keep func(a model.Alarm) bool) []model.Alarm {
	var result []model.Alarm
	for _, a := range m.alarms {
		if keep(a) {
			result = append(result, m.withEntry(a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AlarmTime.Before(result[j].AlarmTime) })
	return result
}

func (m *mockAlarmRepo) List(_ context.Context, userID string, f repository.AlarmFilter) ([]model.Alarm, error) {
	return m.sorted(func(a model.Alarm) bool {
		if a.UserID != userID {
			return false
		}
		if f.Status != "" && a.Status != f.Status {
			return false
		}
		if f.Type != "" && a.Type != f.Type {
			return false
		}
		if f.EntryID != "" && (a.TimesheetEntryID == nil || *a.TimesheetEntryID != f.EntryID) {
			return false
		}
		if f.UpcomingUntil != nil {
			return a.Status == model.AlarmStatusActive && !a.AlarmTime.Before(f.Now) && !a.AlarmTime.After(*f.UpcomingUntil)
		}
		return true
	}), nil
}

func (m *mockAlarmRepo) ListByEntry(_ context.Context, userID, entryID string) ([]model.Alarm, error) {
	return m.sorted(func(a model.Alarm) bool {
		return a.UserID == userID && a.TimesheetEntryID != nil && *a.TimesheetEntryID == entryID
	}), nil
}

func (m *mockAlarmRepo) ListTriggerable(_ context.Context, userID string, now time.Time) ([]model.Alarm, error) {
	return m.sorted(func(a model.Alarm) bool {
		return (userID == "" || a.UserID == userID) && a.ShouldTrigger(now)
	}), nil
}

func (m *mockAlarmRepo) ListUpcoming(_ context.Context, userID string, from, until time.Time) ([]model.Alarm, error) {
	return m.sorted(func(a model.Alarm) bool {
		return a.UserID == userID && a.Status == model.AlarmStatusActive &&
			!a.AlarmTime.Before(from) && !a.AlarmTime.After(until)
	}), nil
}

func (m *mockAlarmRepo) ListDueSnoozed(_ context.Context, now time.Time) ([]model.Alarm, error) {
	return m.sorted(func(a model.Alarm) bool {
		return a.Status == model.AlarmStatusSnoozed && a.SnoozeUntil != nil && !a.SnoozeUntil.After(now)
	}), nil
}

func (m *mockAlarmRepo) ListByIDs(_ context.Context, userID string, ids []string) ([]model.Alarm, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return m.sorted(func(a model.Alarm) bool {
		return a.UserID == userID && want[a.AlarmID]
	}), nil
}

// ── Mock PasswordResetRepository ──

type mockPasswordResetRepo struct {
	resets map[string]model.PasswordReset // key: token
	users  *mockUserRepo
	seq    int
}

func newMockPasswordResetRepo(users *mockUserRepo) *mockPasswordResetRepo {
	return &mockPasswordResetRepo{resets: make(map[string]model.PasswordReset), users: users}
}

func (m *mockPasswordResetRepo) Create(_ context.Context, reset *model.PasswordReset) error {
	if reset.ResetID == "" {
		m.seq++
		reset.ResetID = fmt.Sprintf("reset-%d", m.seq)
	}
	stored := *reset
	stored.User = nil
	m.resets[reset.Token] = stored
	return nil
}

func (m *mockPasswordResetRepo) GetByToken(_ context.Context, token string) (*model.PasswordReset, error) {
	r, ok := m.resets[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if u, ok := m.users.users[r.UserID]; ok {
		r.User = &u
	}
	return &r, nil
}

func (m *mockPasswordResetRepo) DeleteByUser(_ context.Context, userID string) error {
	for token, r := range m.resets {
		if r.UserID == userID {
			delete(m.resets, token)
		}
	}
	return nil
}

func (m *mockPasswordResetRepo) MarkUsed(_ context.Context, resetID string) error {
	for token, r := range m.resets {
		if r.ResetID == resetID {
			r.Used = true
			m.resets[token] = r
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Mock DashboardRepository ──

// mockDashboardRepo 基于 mockEntryRepo 计算合计，分组类查询返回预置结果
type mockDashboardRepo struct {
	entries *mockEntryRepo
	daily   []repository.DailyRow
	groups  []repository.GroupRow
}

func (m *mockDashboardRepo) Totals(_ context.Context, userID string, from, to time.Time) (*repository.PeriodTotals, error) {
	t := &repository.PeriodTotals{}
	for _, e := range m.entries.entries {
		if e.UserID != userID || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		if !model.Contains(model.CountedStatuses, e.Status) {
			continue
		}
		t.TotalHours += e.HoursWorked
		t.TotalPay += e.CalculatedPay
		t.EntryCount++
	}
	return t, nil
}

func (m *mockDashboardRepo) DailyBreakdown(_ context.Context, _ string, _, _ time.Time) ([]repository.DailyRow, error) {
	return m.daily, nil
}

func (m *mockDashboardRepo) WeeklyBreakdown(_ context.Context, _ string, _, _ time.Time) ([]repository.WeeklyRow, error) {
	return nil, nil
}

func (m *mockDashboardRepo) GroupBreakdown(_ context.Context, _, _ string, _, _ time.Time) ([]repository.GroupRow, error) {
	return m.groups, nil
}

func (m *mockDashboardRepo) DailyAverages(_ context.Context, _ string, _, _ time.Time) (*repository.DailyAverages, error) {
	return &repository.DailyAverages{}, nil
}

func (m *mockDashboardRepo) HourlyBreakdown(_ context.Context, _, _ string, _, _ time.Time) ([]repository.HourRow, error) {
	return nil, nil
}

func (m *mockDashboardRepo) DayOfWeekBreakdown(_ context.Context, _ string, _, _ time.Time) ([]repository.DayOfWeekRow, error) {
	return nil, nil
}

func (m *mockDashboardRepo) AlarmStatusStats(_ context.Context, _ string, _, _ time.Time) ([]repository.AlarmStatusRow, error) {
	return nil, nil
}

func (m *mockDashboardRepo) AlarmEffectiveness(_ context.Context, _ string, _, _ time.Time) (*repository.AlarmEffectiveness, error) {
	return &repository.AlarmEffectiveness{}, nil
}

// ── 测试辅助 ──

// mockRepos 一组共享数据的 mock 仓储
type mockRepos struct {
	users     *mockUserRepo
	settings  *mockSettingsRepo
	entries   *mockEntryRepo
	alarms    *mockAlarmRepo
	resets    *mockPasswordResetRepo
	dashboard *mockDashboardRepo
	repo      *repository.Repository
}

func newMockRepos() *mockRepos {
	m := &mockRepos{
		users:    newMockUserRepo(),
		settings: newMockSettingsRepo(),
		entries:  newMockEntryRepo(),
	}
	m.alarms = newMockAlarmRepo(m.entries)
	m.resets = newMockPasswordResetRepo(m.users)
	m.dashboard = &mockDashboardRepo{entries: m.entries}
	m.repo = &repository.Repository{
		User:          m.users,
		Settings:      m.settings,
		Entry:         m.entries,
		Alarm:         m.alarms,
		PasswordReset: m.resets,
		Dashboard:     m.dashboard,
	}
	return m
}

var testLogger = zap.NewNop()

// fixedClock 固定当前时间
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// seedSettings 写入指定费率的默认设置
func (m *mockRepos) seedSettings(userID string, rate float64) *model.UserSettings {
	st := model.DefaultUserSettings(userID)
	st.DefaultPayRate = rate
	st.Timezone = "UTC"
	m.settings.settings[userID] = *st
	return st
}

func ptr[T any](v T) *T { return &v }
