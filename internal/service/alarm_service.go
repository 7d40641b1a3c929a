package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/model"
	"github.com/KhalilA93/TImesheetTracker/internal/repository"
	pkgerrors "github.com/KhalilA93/TImesheetTracker/pkg/errors"
)

var (
	ErrAlarmNotFound = errors.New("提醒不存在")
	ErrAlarmConflict = errors.New("提醒状态已被其他请求修改，请刷新后重试")
)

// AlarmService 提醒业务接口
// 状态迁移规则由 model.Alarm 定义，这里负责持久化与并发保护
type AlarmService interface {
	List(ctx context.Context, userID string, req *dto.AlarmListRequest) ([]dto.AlarmResponse, error)
	Triggerable(ctx context.Context, userID string) ([]dto.AlarmResponse, error)
	Upcoming(ctx context.Context, userID string, hoursAhead int) ([]dto.AlarmResponse, error)
	ByEntry(ctx context.Context, userID, entryID string) ([]dto.AlarmResponse, error)
	GetByID(ctx context.Context, userID, id string) (*dto.AlarmResponse, error)
	Create(ctx context.Context, userID string, req *dto.CreateAlarmRequest) (*dto.AlarmResponse, error)
	Update(ctx context.Context, userID, id string, req *dto.UpdateAlarmRequest) (*dto.AlarmResponse, error)
	Delete(ctx context.Context, userID, id string) error

	Trigger(ctx context.Context, userID, id string) (*dto.AlarmResponse, error)
	Dismiss(ctx context.Context, userID, id string) (*dto.DismissAlarmResponse, error)
	Snooze(ctx context.Context, userID, id string, minutes *int) (*dto.AlarmResponse, error)
	Reactivate(ctx context.Context, userID, id string) (*dto.AlarmResponse, error)
	BulkDismiss(ctx context.Context, userID string, ids []string) (*dto.BulkResult, error)

	// Sweep 后台扫描：重新激活稍后提醒已到期的提醒，并触发所有到期提醒
	Sweep(ctx context.Context) (*dto.SweepResult, error)
}

type alarmService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewAlarmService 创建 AlarmService 实例
func NewAlarmService(repo *repository.Repository, logger *zap.Logger) AlarmService {
	return &alarmService{repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── 查询 ──────────────────────

func (s *alarmService) List(ctx context.Context, userID string, req *dto.AlarmListRequest) ([]dto.AlarmResponse, error) {
	now := s.now()
	filter := repository.AlarmFilter{
		Status:  req.Status,
		Type:    req.Type,
		EntryID: req.TimesheetEntryID,
		Now:     now,
	}
	if req.Upcoming {
		hours := (&dto.UpcomingAlarmRequest{HoursAhead: req.HoursAhead}).GetHoursAhead()
		until := now.Add(time.Duration(hours) * time.Hour)
		filter.UpcomingUntil = &until
	}

	alarms, err := s.repo.Alarm.List(ctx, userID, filter)
	if err != nil {
		s.logger.Error("查询提醒列表失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return toAlarmResponses(alarms, now), nil
}

func (s *alarmService) Triggerable(ctx context.Context, userID string) ([]dto.AlarmResponse, error) {
	now := s.now()
	alarms, err := s.repo.Alarm.ListTriggerable(ctx, userID, now)
	if err != nil {
		s.logger.Error("查询待触发提醒失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return toAlarmResponses(alarms, now), nil
}

func (s *alarmService) Upcoming(ctx context.Context, userID string, hoursAhead int) ([]dto.AlarmResponse, error) {
	if hoursAhead <= 0 {
		hoursAhead = 24
	}
	now := s.now()
	alarms, err := s.repo.Alarm.ListUpcoming(ctx, userID, now, now.Add(time.Duration(hoursAhead)*time.Hour))
	if err != nil {
		s.logger.Error("查询即将到来的提醒失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return toAlarmResponses(alarms, now), nil
}

func (s *alarmService) ByEntry(ctx context.Context, userID, entryID string) ([]dto.AlarmResponse, error) {
	if _, err := s.repo.Entry.GetByID(ctx, userID, entryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		s.logger.Error("查询工时记录失败", zap.String("entry_id", entryID), zap.Error(err))
		return nil, err
	}

	alarms, err := s.repo.Alarm.ListByEntry(ctx, userID, entryID)
	if err != nil {
		s.logger.Error("查询记录提醒失败", zap.String("entry_id", entryID), zap.Error(err))
		return nil, err
	}
	return toAlarmResponses(alarms, s.now()), nil
}

func (s *alarmService) GetByID(ctx context.Context, userID, id string) (*dto.AlarmResponse, error) {
	alarm, err := s.getAlarm(ctx, s.repo, userID, id)
	if err != nil {
		return nil, err
	}
	resp := toAlarmResponse(alarm, s.now())
	return &resp, nil
}

// ────────────────────── Create / Update / Delete ──────────────────────

// Create 关联工时记录时 alarm_time 默认由记录开始（或结束）时间减去提前分钟数得出
func (s *alarmService) Create(ctx context.Context, userID string, req *dto.CreateAlarmRequest) (*dto.AlarmResponse, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	alarm := newAlarm(userID, settings)
	alarm.Title = strings.TrimSpace(req.Title)
	alarm.Message = defaultString(strings.TrimSpace(req.Message), model.DefaultAlarmMessage)
	alarm.SoundFile = defaultString(req.SoundFile, model.DefaultAlarmSoundFile)
	if req.ReminderMinutes != nil {
		alarm.ReminderMinutes = *req.ReminderMinutes
	}
	if req.SoundEnabled != nil {
		alarm.SoundEnabled = *req.SoundEnabled
	}
	if req.BrowserNotification != nil {
		alarm.BrowserNotification = *req.BrowserNotification
	}
	if err := setRecurrence(alarm, req.IsRecurring, req.RecurringPattern); err != nil {
		return nil, err
	}

	if req.TimesheetEntryID != nil && *req.TimesheetEntryID != "" {
		entry, err := s.repo.Entry.GetByID(ctx, userID, *req.TimesheetEntryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrEntryNotFound
			}
			s.logger.Error("查询工时记录失败", zap.String("entry_id", *req.TimesheetEntryID), zap.Error(err))
			return nil, err
		}
		alarm.TimesheetEntryID = &entry.EntryID
		alarm.Type = defaultString(req.Type, model.AlarmTypeStart)
		alarm.AlarmTime = alarmTimeForEntry(entry, alarm.Type, alarm.ReminderMinutes)
		if alarm.Title == "" {
			alarm.Title = model.AutoAlarmTitle(alarm.Type)
		}
		alarm.Entry = entry
	} else {
		alarm.Type = defaultString(req.Type, model.AlarmTypeCustom)
		if alarm.Title == "" {
			alarm.Title = model.AutoAlarmTitle(alarm.Type)
		}
	}
	if req.AlarmTime != nil {
		alarm.AlarmTime = *req.AlarmTime
	}
	if alarm.AlarmTime.IsZero() {
		return nil, pkgerrors.NewValidationError("未关联工时记录时 alarm_time 不能为空")
	}

	if err := s.repo.Alarm.Create(ctx, alarm); err != nil {
		s.logger.Error("创建提醒失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	resp := toAlarmResponse(alarm, s.now())
	return &resp, nil
}

// Update 修改触发时间后提醒重新进入 active（已停用的除外）
func (s *alarmService) Update(ctx context.Context, userID, id string, req *dto.UpdateAlarmRequest) (*dto.AlarmResponse, error) {
	alarm, err := s.getAlarm(ctx, s.repo, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Status != nil && *req.Status != alarm.Status {
		switch {
		case alarm.Status == model.AlarmStatusActive && *req.Status == model.AlarmStatusDisabled,
			alarm.Status == model.AlarmStatusDisabled && *req.Status == model.AlarmStatusActive:
			alarm.Status = *req.Status
			alarm.SnoozeUntil = nil
		default:
			return nil, pkgerrors.NewValidationError(
				fmt.Sprintf("状态 %s 不能手动切换为 %s，仅允许 active 与 disabled 互相切换", alarm.Status, *req.Status))
		}
	}

	rescheduled := false
	if req.ReminderMinutes != nil && *req.ReminderMinutes != alarm.ReminderMinutes {
		alarm.ReminderMinutes = *req.ReminderMinutes
		rescheduled = true
	}
	if req.Type != nil && *req.Type != alarm.Type {
		alarm.Type = *req.Type
		rescheduled = true
	}
	if rescheduled && alarm.Entry != nil {
		alarm.AlarmTime = alarmTimeForEntry(alarm.Entry, alarm.Type, alarm.ReminderMinutes)
	}
	if req.AlarmTime != nil && !req.AlarmTime.Equal(alarm.AlarmTime) {
		alarm.AlarmTime = *req.AlarmTime
		rescheduled = true
	}
	if rescheduled && alarm.Status != model.AlarmStatusDisabled {
		alarm.Status = model.AlarmStatusActive
		alarm.SnoozeUntil = nil
		alarm.TriggeredAt = nil
	}

	setString(&alarm.Title, req.Title)
	setString(&alarm.Message, req.Message)
	setString(&alarm.SoundFile, req.SoundFile)
	setBool(&alarm.SoundEnabled, req.SoundEnabled)
	setBool(&alarm.BrowserNotification, req.BrowserNotification)

	recurring := alarm.IsRecurring
	if req.IsRecurring != nil {
		recurring = *req.IsRecurring
	}
	pattern := alarm.RecurringPattern
	if req.RecurringPattern != nil {
		pattern = req.RecurringPattern
	}
	if err := setRecurrence(alarm, recurring, pattern); err != nil {
		return nil, err
	}

	if err := s.repo.Alarm.Update(ctx, alarm); err != nil {
		s.logger.Error("更新提醒失败", zap.String("alarm_id", id), zap.Error(err))
		return nil, err
	}

	resp := toAlarmResponse(alarm, s.now())
	return &resp, nil
}

func (s *alarmService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Alarm.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAlarmNotFound
		}
		s.logger.Error("删除提醒失败", zap.String("alarm_id", id), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── 状态迁移 ──────────────────────

// Trigger active → triggered；条件更新保证并发轮询只会触发一次
func (s *alarmService) Trigger(ctx context.Context, userID, id string) (*dto.AlarmResponse, error) {
	alarm, err := s.getAlarm(ctx, s.repo, userID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := alarm.Trigger(now); err != nil {
		return nil, err
	}
	if err := s.saveTransition(ctx, s.repo, alarm, model.AlarmStatusActive); err != nil {
		return nil, err
	}

	resp := toAlarmResponse(alarm, now)
	return &resp, nil
}

// Dismiss 任意状态 → dismissed；周期提醒同时生成下一次提醒
func (s *alarmService) Dismiss(ctx context.Context, userID, id string) (*dto.DismissAlarmResponse, error) {
	now := s.now()
	var (
		alarm *model.Alarm
		next  *model.Alarm
	)

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		a, err := s.getAlarm(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		alarm = a
		prev := a.Status
		if prev == model.AlarmStatusDismissed {
			return nil
		}

		a.Dismiss(now)
		if err := s.saveTransition(ctx, tx, a, prev); err != nil {
			return err
		}

		next = nextOccurrence(a, now)
		if next != nil {
			if err := tx.Alarm.Create(ctx, next); err != nil {
				return fmt.Errorf("创建下一次周期提醒失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.DismissAlarmResponse{Alarm: toAlarmResponse(alarm, now)}
	if next != nil {
		n := toAlarmResponse(next, now)
		resp.NextAlarm = &n
	}
	return resp, nil
}

// Snooze 默认 5 分钟
func (s *alarmService) Snooze(ctx context.Context, userID, id string, minutes *int) (*dto.AlarmResponse, error) {
	m := model.DefaultSnoozeMinutes
	if minutes != nil {
		m = *minutes
	}

	alarm, err := s.getAlarm(ctx, s.repo, userID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	prev := alarm.Status
	if err := alarm.Snooze(now, m); err != nil {
		return nil, err
	}
	if err := s.saveTransition(ctx, s.repo, alarm, prev); err != nil {
		return nil, err
	}

	resp := toAlarmResponse(alarm, now)
	return &resp, nil
}

// Reactivate snoozed → active；其他状态原样返回
func (s *alarmService) Reactivate(ctx context.Context, userID, id string) (*dto.AlarmResponse, error) {
	alarm, err := s.getAlarm(ctx, s.repo, userID, id)
	if err != nil {
		return nil, err
	}

	if alarm.Reactivate() {
		if err := s.saveTransition(ctx, s.repo, alarm, model.AlarmStatusSnoozed); err != nil {
			return nil, err
		}
	}

	resp := toAlarmResponse(alarm, s.now())
	return &resp, nil
}

// BulkDismiss 逐条走与 Dismiss 相同的状态迁移，周期提醒同样生成下一次提醒
// 已关闭或被并发修改的提醒跳过，不计入修改数
func (s *alarmService) BulkDismiss(ctx context.Context, userID string, ids []string) (*dto.BulkResult, error) {
	now := s.now()
	var modified int64

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		alarms, err := tx.Alarm.ListByIDs(ctx, userID, ids)
		if err != nil {
			return err
		}
		for i := range alarms {
			a := &alarms[i]
			prev := a.Status
			if prev == model.AlarmStatusDismissed {
				continue
			}
			a.Dismiss(now)
			ok, err := tx.Alarm.UpdateIfStatus(ctx, a, prev)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			modified++

			if next := nextOccurrence(a, now); next != nil {
				if err := tx.Alarm.Create(ctx, next); err != nil {
					return fmt.Errorf("创建下一次周期提醒失败: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("批量关闭提醒失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return &dto.BulkResult{ModifiedCount: modified}, nil
}

// ────────────────────── Sweep ──────────────────────

func (s *alarmService) Sweep(ctx context.Context) (*dto.SweepResult, error) {
	now := s.now()
	result := &dto.SweepResult{}

	// 1. 稍后提醒到期 → active
	snoozed, err := s.repo.Alarm.ListDueSnoozed(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("查询到期的稍后提醒失败: %w", err)
	}
	for i := range snoozed {
		a := &snoozed[i]
		if !a.Reactivate() {
			continue
		}
		ok, err := s.repo.Alarm.UpdateIfStatus(ctx, a, model.AlarmStatusSnoozed)
		if err != nil {
			return result, fmt.Errorf("重新激活提醒 %s 失败: %w", a.AlarmID, err)
		}
		if ok {
			result.Reactivated++
		}
	}

	// 2. 触发所有到期的 active 提醒
	due, err := s.repo.Alarm.ListTriggerable(ctx, "", now)
	if err != nil {
		return result, fmt.Errorf("查询待触发提醒失败: %w", err)
	}
	for i := range due {
		a := &due[i]
		if err := a.Trigger(now); err != nil {
			continue
		}
		ok, err := s.repo.Alarm.UpdateIfStatus(ctx, a, model.AlarmStatusActive)
		if err != nil {
			return result, fmt.Errorf("触发提醒 %s 失败: %w", a.AlarmID, err)
		}
		if ok {
			result.Triggered++
		}
	}

	return result, nil
}

// ── 内部辅助方法 ──

func (s *alarmService) getAlarm(ctx context.Context, repo *repository.Repository, userID, id string) (*model.Alarm, error) {
	alarm, err := repo.Alarm.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlarmNotFound
		}
		s.logger.Error("查询提醒失败", zap.String("alarm_id", id), zap.Error(err))
		return nil, err
	}
	return alarm, nil
}

// saveTransition 以迁移前状态为条件写入，状态已被并发修改时返回 ErrAlarmConflict
func (s *alarmService) saveTransition(ctx context.Context, repo *repository.Repository, alarm *model.Alarm, expect string) error {
	ok, err := repo.Alarm.UpdateIfStatus(ctx, alarm, expect)
	if err != nil {
		s.logger.Error("保存提醒状态失败", zap.String("alarm_id", alarm.AlarmID), zap.Error(err))
		return err
	}
	if !ok {
		return ErrAlarmConflict
	}
	return nil
}

// newAlarm 按用户通知偏好填充默认值
func newAlarm(userID string, settings *model.UserSettings) *model.Alarm {
	return &model.Alarm{
		UserID:              userID,
		ReminderMinutes:     settings.Notifications.DefaultReminderMinutes,
		Message:             model.DefaultAlarmMessage,
		SoundEnabled:        settings.Notifications.Sound,
		SoundFile:           model.DefaultAlarmSoundFile,
		BrowserNotification: settings.Notifications.Browser,
		Status:              model.AlarmStatusActive,
	}
}

// newEntryReminder 创建工时记录时内联提醒
func newEntryReminder(entry *model.TimesheetEntry, req *dto.EntryReminderRequest, settings *model.UserSettings) *model.Alarm {
	alarm := newAlarm(entry.UserID, settings)
	alarm.TimesheetEntryID = &entry.EntryID
	alarm.Type = defaultString(req.Type, model.AlarmTypeStart)
	if req.ReminderMinutes != nil {
		alarm.ReminderMinutes = *req.ReminderMinutes
	}
	alarm.AlarmTime = alarmTimeForEntry(entry, alarm.Type, alarm.ReminderMinutes)
	alarm.Title = defaultString(strings.TrimSpace(req.Title), model.AutoAlarmTitle(alarm.Type))
	alarm.Message = defaultString(strings.TrimSpace(req.Message), model.DefaultAlarmMessage)
	return alarm
}

// alarmTimeForEntry 结束提醒以记录结束时间为基准，其余以开始时间为基准
func alarmTimeForEntry(entry *model.TimesheetEntry, alarmType string, minutes int) time.Time {
	base := entry.StartTime
	if alarmType == model.AlarmTypeEnd {
		base = entry.EndTime
	}
	return base.Add(-time.Duration(minutes) * time.Minute)
}

func setRecurrence(alarm *model.Alarm, recurring bool, pattern *string) error {
	if !recurring {
		alarm.IsRecurring = false
		alarm.RecurringPattern = nil
		return nil
	}
	if pattern == nil || !model.Contains(model.RecurringPatterns, *pattern) {
		return pkgerrors.NewValidationError("周期提醒必须指定 recurring_pattern（daily/weekly/monthly）")
	}
	p := *pattern
	alarm.IsRecurring = true
	alarm.RecurringPattern = &p
	return nil
}

// nextOccurrence 周期提醒关闭后的下一次提醒，时间跳过已经过去的周期
func nextOccurrence(a *model.Alarm, now time.Time) *model.Alarm {
	at, ok := a.NextOccurrence()
	if !ok {
		return nil
	}
	cur := *a
	for i := 0; !at.After(now) && i < 1000; i++ {
		cur.AlarmTime = at
		at, _ = cur.NextOccurrence()
	}

	pattern := *a.RecurringPattern
	return &model.Alarm{
		UserID:              a.UserID,
		TimesheetEntryID:    a.TimesheetEntryID,
		AlarmTime:           at,
		ReminderMinutes:     a.ReminderMinutes,
		Title:               a.Title,
		Message:             a.Message,
		Type:                a.Type,
		IsRecurring:         true,
		RecurringPattern:    &pattern,
		SoundEnabled:        a.SoundEnabled,
		SoundFile:           a.SoundFile,
		BrowserNotification: a.BrowserNotification,
		Status:              model.AlarmStatusActive,
	}
}

func toAlarmResponses(alarms []model.Alarm, now time.Time) []dto.AlarmResponse {
	items := make([]dto.AlarmResponse, 0, len(alarms))
	for i := range alarms {
		items = append(items, toAlarmResponse(&alarms[i], now))
	}
	return items
}

func toAlarmResponse(a *model.Alarm, now time.Time) dto.AlarmResponse {
	resp := dto.AlarmResponse{
		ID:                  a.AlarmID,
		TimesheetEntryID:    a.TimesheetEntryID,
		AlarmTime:           a.AlarmTime,
		ReminderMinutes:     a.ReminderMinutes,
		Title:               a.Title,
		Message:             a.Message,
		Type:                a.Type,
		IsRecurring:         a.IsRecurring,
		RecurringPattern:    a.RecurringPattern,
		SoundEnabled:        a.SoundEnabled,
		SoundFile:           a.SoundFile,
		BrowserNotification: a.BrowserNotification,
		Status:              a.Status,
		TriggeredAt:         a.TriggeredAt,
		DismissedAt:         a.DismissedAt,
		SnoozeUntil:         a.SnoozeUntil,
		SnoozeCount:         a.SnoozeCount,
		ShouldTrigger:       a.ShouldTrigger(now),
		SecondsUntil:        int64(a.TimeUntil(now).Seconds()),
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
	if e := a.Entry; e != nil {
		resp.Entry = &dto.AlarmEntryBrief{
			ID:          e.EntryID,
			Date:        e.Date.Format(dto.DateLayout),
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			Project:     e.Project,
			Description: e.Description,
		}
	}
	return resp
}
