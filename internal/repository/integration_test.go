//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KhalilA93/TImesheetTracker/internal/model"
	"github.com/KhalilA93/TImesheetTracker/internal/repository"
	"github.com/KhalilA93/TImesheetTracker/pkg/database"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=postgres password=postgres dbname=timesheet_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取底层连接失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "执行迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// setupUser 创建测试用户并返回清理函数（级联删除其全部数据）
func setupUser(t *testing.T) (*model.User, func()) {
	t.Helper()
	user := &model.User{
		Name:         "测试用户",
		Email:        fmt.Sprintf("test%d@example.com", time.Now().UnixNano()),
		PasswordHash: "$2a$10$placeholder",
	}
	if err := testDB.Create(user).Error; err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	return user, func() {
		testDB.Where("user_id = ?", user.UserID).Delete(&model.User{})
	}
}

func newEntry(userID string, day time.Time, startHour, endHour int, status string) *model.TimesheetEntry {
	start := time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, time.UTC)
	end := time.Date(day.Year(), day.Month(), day.Day(), endHour, 0, 0, 0, time.UTC)
	hours := end.Sub(start).Hours()
	return &model.TimesheetEntry{
		UserID:        userID,
		Date:          start,
		StartTime:     start,
		EndTime:       end,
		HoursWorked:   hours,
		CalculatedPay: hours * 20,
		Project:       "Acme",
		Category:      model.CategoryRegular,
		Status:        status,
		Color:         model.DefaultEntryColor,
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Transaction
// ═══════════════════════════════════════════════════════════

func TestTransaction_Rollback(t *testing.T) {
	user, cleanup := setupUser(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx 失败: %v", err)
	}
	txRepo := repo.WithTx(tx)

	entry := newEntry(user.UserID, time.Now(), 9, 17, model.EntryStatusConfirmed)
	if err := txRepo.Entry.Create(ctx, entry); err != nil {
		tx.Rollback()
		t.Fatalf("事务内创建工时记录失败: %v", err)
	}
	tx.Rollback()

	if _, err := repo.Entry.GetByID(ctx, user.UserID, entry.EntryID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("期望回滚后查不到记录，实际 err=%v", err)
	}
}

func TestTransaction_FnErrorRollsBack(t *testing.T) {
	user, cleanup := setupUser(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	if err := repo.Settings.Create(ctx, model.DefaultUserSettings(user.UserID)); err != nil {
		t.Fatalf("创建设置失败: %v", err)
	}

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		s, err := txRepo.Settings.GetByUser(ctx, user.UserID)
		if err != nil {
			return err
		}
		s.DefaultPayRate = 99
		if err := txRepo.Settings.Update(ctx, s); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("期望返回 boom，实际=%v", err)
	}

	s, err := repo.Settings.GetByUser(ctx, user.UserID)
	if err != nil {
		t.Fatalf("查询设置失败: %v", err)
	}
	if s.DefaultPayRate != 15 {
		t.Errorf("期望回滚后费率仍为 15，实际=%v", s.DefaultPayRate)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Settings
// ═══════════════════════════════════════════════════════════

func TestSettings_CreateIsIdempotent(t *testing.T) {
	user, cleanup := setupUser(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	first := model.DefaultUserSettings(user.UserID)
	first.DefaultPayRate = 30
	if err := repo.Settings.Create(ctx, first); err != nil {
		t.Fatalf("首次创建失败: %v", err)
	}
	if err := repo.Settings.Create(ctx, model.DefaultUserSettings(user.UserID)); err != nil {
		t.Fatalf("重复创建不应报错: %v", err)
	}

	got, err := repo.Settings.GetByUser(ctx, user.UserID)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got.DefaultPayRate != 30 {
		t.Errorf("期望保留首次写入的 30，实际=%v", got.DefaultPayRate)
	}
	if got.ColorFor(model.CategoryHoliday) != "#e74c3c" {
		t.Errorf("期望 JSONB 颜色方案正确读回，实际=%s", got.ColorFor(model.CategoryHoliday))
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Entries & Alarms
// ═══════════════════════════════════════════════════════════

func TestEntry_EndBeforeStartRejectedByConstraint(t *testing.T) {
	user, cleanup := setupUser(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	entry := newEntry(user.UserID, time.Now(), 17, 9, model.EntryStatusConfirmed)
	if err := repo.Entry.Create(context.Background(), entry); err == nil {
		t.Fatal("期望 CHECK 约束拒绝 end_time <= start_time")
	}
}

func TestEntry_DeleteCascadesAlarms(t *testing.T) {
	user, cleanup := setupUser(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	entry := newEntry(user.UserID, time.Now(), 9, 17, model.EntryStatusConfirmed)
	if err := repo.Entry.Create(ctx, entry); err != nil {
		t.Fatalf("创建记录失败: %v", err)
	}
	alarm := &model.Alarm{
		UserID:           user.UserID,
		TimesheetEntryID: &entry.EntryID,
		AlarmTime:        entry.StartTime.Add(-15 * time.Minute),
		ReminderMinutes:  15,
		Title:            model.AutoAlarmTitle(model.AlarmTypeStart),
		Message:          model.DefaultAlarmMessage,
		Type:             model.AlarmTypeStart,
		SoundFile:        model.DefaultAlarmSoundFile,
		Status:           model.AlarmStatusActive,
	}
	if err := repo.Alarm.Create(ctx, alarm); err != nil {
		t.Fatalf("创建提醒失败: %v", err)
	}

	if err := repo.Entry.Delete(ctx, user.UserID, entry.EntryID); err != nil {
		t.Fatalf("删除记录失败: %v", err)
	}
	if _, err := repo.Alarm.GetByID(ctx, user.UserID, alarm.AlarmID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("期望提醒随记录删除，实际 err=%v", err)
	}
}

func TestAlarm_UpdateIfStatusPreventsDoubleTrigger(t *testing.T) {
	user, cleanup := setupUser(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	now := time.Now().UTC()

	alarm := &model.Alarm{
		UserID:    user.UserID,
		AlarmTime: now.Add(-time.Minute),
		Title:     "站会",
		Message:   model.DefaultAlarmMessage,
		Type:      model.AlarmTypeCustom,
		SoundFile: model.DefaultAlarmSoundFile,
		Status:    model.AlarmStatusActive,
	}
	if err := repo.Alarm.Create(ctx, alarm); err != nil {
		t.Fatalf("创建提醒失败: %v", err)
	}

	triggerable, err := repo.Alarm.ListTriggerable(ctx, user.UserID, now)
	if err != nil || len(triggerable) != 1 {
		t.Fatalf("期望 1 条可触发提醒，实际 %d 条, err=%v", len(triggerable), err)
	}

	copy1, copy2 := triggerable[0], triggerable[0]
	if err := copy1.Trigger(now); err != nil {
		t.Fatalf("Trigger 失败: %v", err)
	}
	ok, err := repo.Alarm.UpdateIfStatus(ctx, &copy1, model.AlarmStatusActive)
	if err != nil || !ok {
		t.Fatalf("期望首次条件更新成功，ok=%v err=%v", ok, err)
	}

	_ = copy2.Trigger(now)
	ok, err = repo.Alarm.UpdateIfStatus(ctx, &copy2, model.AlarmStatusActive)
	if err != nil {
		t.Fatalf("条件更新出错: %v", err)
	}
	if ok {
		t.Error("期望第二次条件更新不生效")
	}

	left, _ := repo.Alarm.ListTriggerable(ctx, user.UserID, now)
	if len(left) != 0 {
		t.Errorf("期望触发后不再可触发，实际 %d 条", len(left))
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Dashboard
// ═══════════════════════════════════════════════════════════

func TestEntry_ListForRecalculationScopedToUser(t *testing.T) {
	alice, cleanupAlice := setupUser(t)
	defer cleanupAlice()
	bob, cleanupBob := setupUser(t)
	defer cleanupBob()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	override := 35.0
	withOverride := newEntry(alice.UserID, day, 13, 15, model.EntryStatusConfirmed)
	withOverride.PayRateOverride = &override
	zeroOverride := 0.0
	zeroed := newEntry(alice.UserID, day, 16, 17, model.EntryStatusConfirmed)
	zeroed.PayRateOverride = &zeroOverride

	entries := []model.TimesheetEntry{
		*newEntry(alice.UserID, day, 9, 12, model.EntryStatusConfirmed),
		*withOverride,
		*zeroed,
		*newEntry(bob.UserID, day, 9, 17, model.EntryStatusConfirmed),
	}
	if err := repo.Entry.BatchCreate(ctx, entries); err != nil {
		t.Fatalf("批量创建失败: %v", err)
	}

	got, err := repo.Entry.ListForRecalculation(ctx, alice.UserID, false)
	if err != nil {
		t.Fatalf("ListForRecalculation 失败: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 条无单条费率的记录，实际 %d", len(got))
	}
	for _, e := range got {
		if e.UserID != alice.UserID {
			t.Errorf("不应返回其他用户的记录: %s", e.UserID)
		}
		if e.PayRateOverride != nil && *e.PayRateOverride > 0 {
			t.Errorf("不应返回带单条费率的记录: %v", *e.PayRateOverride)
		}
	}

	all, err := repo.Entry.ListForRecalculation(ctx, alice.UserID, true)
	if err != nil {
		t.Fatalf("ListForRecalculation 失败: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("包含单条费率时期望 3 条，实际 %d", len(all))
	}
}

func TestDashboard_TotalsExcludeDrafts(t *testing.T) {
	user, cleanup := setupUser(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	entries := []model.TimesheetEntry{
		*newEntry(user.UserID, day, 9, 17, model.EntryStatusConfirmed),
		*newEntry(user.UserID, day, 18, 20, model.EntryStatusDraft),
	}
	if err := repo.Entry.BatchCreate(ctx, entries); err != nil {
		t.Fatalf("批量创建失败: %v", err)
	}

	totals, err := repo.Dashboard.Totals(ctx, user.UserID, day, day)
	if err != nil {
		t.Fatalf("Totals 失败: %v", err)
	}
	if totals.TotalHours != 8 || totals.TotalPay != 160 || totals.EntryCount != 1 {
		t.Errorf("期望 8h/$160/1 条，实际 %+v", totals)
	}

	empty, err := repo.Dashboard.Totals(ctx, user.UserID, day.AddDate(0, 1, 0), day.AddDate(0, 1, 1))
	if err != nil {
		t.Fatalf("Totals 失败: %v", err)
	}
	if empty.TotalHours != 0 || empty.TotalPay != 0 || empty.EntryCount != 0 {
		t.Errorf("期望空区间返回全零，实际 %+v", empty)
	}

	daily, err := repo.Dashboard.DailyBreakdown(ctx, user.UserID, day, day)
	if err != nil {
		t.Fatalf("DailyBreakdown 失败: %v", err)
	}
	if len(daily) != 1 || daily[0].Date != "2025-03-10" || daily[0].DayOfWeek != 1 {
		t.Errorf("期望 2025-03-10 周一一行，实际 %+v", daily)
	}
}
