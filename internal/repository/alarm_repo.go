package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/KhalilA93/TImesheetTracker/internal/model"
)

// AlarmFilter 提醒列表筛选条件
type AlarmFilter struct {
	Status  string
	Type    string
	EntryID string
	// UpcomingUntil 非空时仅返回 [now, UpcomingUntil] 内的 active 提醒
	UpcomingUntil *time.Time
	Now           time.Time
}

// AlarmRepository 提醒数据访问接口
type AlarmRepository interface {
	Create(ctx context.Context, alarm *model.Alarm) error
	GetByID(ctx context.Context, userID, id string) (*model.Alarm, error)
	Update(ctx context.Context, alarm *model.Alarm) error
	// UpdateIfStatus 仅当数据库中状态仍为 expectStatus 时写入状态相关字段，返回是否写入成功
	UpdateIfStatus(ctx context.Context, alarm *model.Alarm, expectStatus string) (bool, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteByEntry(ctx context.Context, entryID string) error
	List(ctx context.Context, userID string, filter AlarmFilter) ([]model.Alarm, error)
	ListByEntry(ctx context.Context, userID, entryID string) ([]model.Alarm, error)
	// ListTriggerable userID 为空时扫描所有用户
	ListTriggerable(ctx context.Context, userID string, now time.Time) ([]model.Alarm, error)
	ListUpcoming(ctx context.Context, userID string, from, until time.Time) ([]model.Alarm, error)
	// ListDueSnoozed 稍后提醒已到期、等待重新激活的提醒（所有用户）
	ListDueSnoozed(ctx context.Context, now time.Time) ([]model.Alarm, error)
	// ListByIDs 按 ID 批量查询，只返回属于 userID 的提醒
	ListByIDs(ctx context.Context, userID string, ids []string) ([]model.Alarm, error)
}

type alarmRepo struct {
	db *gorm.DB
}

// NewAlarmRepo 创建 AlarmRepository 实例
func NewAlarmRepo(db *gorm.DB) AlarmRepository {
	return &alarmRepo{db: db}
}

func (r *alarmRepo) Create(ctx context.Context, alarm *model.Alarm) error {
	return r.db.WithContext(ctx).Omit("Entry").Create(alarm).Error
}

func (r *alarmRepo) GetByID(ctx context.Context, userID, id string) (*model.Alarm, error) {
	var alarm model.Alarm
	err := r.db.WithContext(ctx).
		Preload("Entry").
		Where("alarm_id = ? AND user_id = ?", id, userID).
		First(&alarm).Error
	if err != nil {
		return nil, err
	}
	return &alarm, nil
}

func (r *alarmRepo) Update(ctx context.Context, alarm *model.Alarm) error {
	return r.db.WithContext(ctx).Omit("Entry").Save(alarm).Error
}

func (r *alarmRepo) UpdateIfStatus(ctx context.Context, alarm *model.Alarm, expectStatus string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Alarm{}).
		Where("alarm_id = ? AND status = ?", alarm.AlarmID, expectStatus).
		Updates(map[string]interface{}{
			"status":       alarm.Status,
			"triggered_at": alarm.TriggeredAt,
			"dismissed_at": alarm.DismissedAt,
			"snooze_until": alarm.SnoozeUntil,
			"snooze_count": alarm.SnoozeCount,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *alarmRepo) Delete(ctx context.Context, userID, id string) error {
	result := r.db.WithContext(ctx).
		Where("alarm_id = ? AND user_id = ?", id, userID).
		Delete(&model.Alarm{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *alarmRepo) DeleteByEntry(ctx context.Context, entryID string) error {
	return r.db.WithContext(ctx).
		Where("timesheet_entry_id = ?", entryID).
		Delete(&model.Alarm{}).Error
}

func (r *alarmRepo) List(ctx context.Context, userID string, filter AlarmFilter) ([]model.Alarm, error) {
	var alarms []model.Alarm
	db := r.db.WithContext(ctx).Preload("Entry").Where("user_id = ?", userID)

	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		db = db.Where("type = ?", filter.Type)
	}
	if filter.EntryID != "" {
		db = db.Where("timesheet_entry_id = ?", filter.EntryID)
	}
	if filter.UpcomingUntil != nil {
		db = db.Where("status = ? AND alarm_time >= ? AND alarm_time <= ?",
			model.AlarmStatusActive, filter.Now, *filter.UpcomingUntil)
	}

	err := db.Order("alarm_time ASC").Find(&alarms).Error
	return alarms, err
}

func (r *alarmRepo) ListByEntry(ctx context.Context, userID, entryID string) ([]model.Alarm, error) {
	var alarms []model.Alarm
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND timesheet_entry_id = ?", userID, entryID).
		Order("alarm_time ASC").
		Find(&alarms).Error
	return alarms, err
}

func (r *alarmRepo) ListTriggerable(ctx context.Context, userID string, now time.Time) ([]model.Alarm, error) {
	var alarms []model.Alarm
	db := r.db.WithContext(ctx).
		Preload("Entry").
		Where("status = ?", model.AlarmStatusActive).
		Where("((alarm_time <= ? AND snooze_until IS NULL) OR snooze_until <= ?)", now, now)
	if userID != "" {
		db = db.Where("user_id = ?", userID)
	}
	err := db.Order("alarm_time ASC").Find(&alarms).Error
	return alarms, err
}

func (r *alarmRepo) ListUpcoming(ctx context.Context, userID string, from, until time.Time) ([]model.Alarm, error) {
	var alarms []model.Alarm
	err := r.db.WithContext(ctx).
		Preload("Entry").
		Where("user_id = ? AND status = ? AND alarm_time >= ? AND alarm_time <= ?",
			userID, model.AlarmStatusActive, from, until).
		Order("alarm_time ASC").
		Find(&alarms).Error
	return alarms, err
}

func (r *alarmRepo) ListDueSnoozed(ctx context.Context, now time.Time) ([]model.Alarm, error) {
	var alarms []model.Alarm
	err := r.db.WithContext(ctx).
		Where("status = ? AND snooze_until <= ?", model.AlarmStatusSnoozed, now).
		Find(&alarms).Error
	return alarms, err
}

func (r *alarmRepo) ListByIDs(ctx context.Context, userID string, ids []string) ([]model.Alarm, error) {
	var alarms []model.Alarm
	if len(ids) == 0 {
		return alarms, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND alarm_id IN ?", userID, ids).
		Order("alarm_time ASC").
		Find(&alarms).Error
	return alarms, err
}
