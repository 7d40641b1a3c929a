package model

import (
	"errors"
	"time"
)

// ── 提醒枚举 ──

const (
	AlarmStatusActive    = "active"
	AlarmStatusTriggered = "triggered"
	AlarmStatusDismissed = "dismissed"
	AlarmStatusSnoozed   = "snoozed"
	AlarmStatusDisabled  = "disabled"

	AlarmTypeStart  = "start-reminder"
	AlarmTypeEnd    = "end-reminder"
	AlarmTypeBreak  = "break-reminder"
	AlarmTypeCustom = "custom"

	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"

	DefaultAlarmMessage   = "Time to start your work session!"
	DefaultAlarmSoundFile = "default"
	DefaultSnoozeMinutes  = 5
	MaxReminderMinutes    = 1440
)

var (
	AlarmStatuses     = []string{AlarmStatusActive, AlarmStatusTriggered, AlarmStatusDismissed, AlarmStatusSnoozed, AlarmStatusDisabled}
	AlarmTypes        = []string{AlarmTypeStart, AlarmTypeEnd, AlarmTypeBreak, AlarmTypeCustom}
	RecurringPatterns = []string{RecurDaily, RecurWeekly, RecurMonthly}
)

// ── 状态机错误 ──

var (
	ErrAlarmNotActive    = errors.New("仅 active 状态的提醒可以触发")
	ErrAlarmNotDue       = errors.New("提醒尚未到达触发时间")
	ErrAlarmCannotSnooze = errors.New("已关闭或已停用的提醒不能稍后提醒")
	ErrInvalidSnooze     = errors.New("稍后提醒分钟数必须在 1-1440 之间")
)

// Alarm 提醒表 对应 alarms
type Alarm struct {
	AlarmID             string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"alarm_id"`
	UserID              string     `gorm:"type:uuid;not null;index"                       json:"user_id"`
	TimesheetEntryID    *string    `gorm:"type:uuid;index"                                json:"timesheet_entry_id"`
	AlarmTime           time.Time  `gorm:"type:timestamptz;not null"                      json:"alarm_time"`
	ReminderMinutes     int        `gorm:"not null"                                       json:"reminder_minutes"`
	Title               string     `gorm:"type:varchar(200);not null"                     json:"title"`
	Message             string     `gorm:"type:varchar(500);not null"                     json:"message"`
	Type                string     `gorm:"type:varchar(20);not null"                      json:"type"`
	IsRecurring         bool       `gorm:"not null"                                       json:"is_recurring"`
	RecurringPattern    *string    `gorm:"type:varchar(10)"                               json:"recurring_pattern"`
	SoundEnabled        bool       `gorm:"not null"                                       json:"sound_enabled"`
	SoundFile           string     `gorm:"type:varchar(100);not null"                     json:"sound_file"`
	BrowserNotification bool       `gorm:"not null"                                       json:"browser_notification"`
	Status              string     `gorm:"type:varchar(20);not null"                      json:"status"`
	TriggeredAt         *time.Time `gorm:"type:timestamptz"                               json:"triggered_at"`
	DismissedAt         *time.Time `gorm:"type:timestamptz"                               json:"dismissed_at"`
	SnoozeUntil         *time.Time `gorm:"type:timestamptz"                               json:"snooze_until"`
	SnoozeCount         int        `gorm:"not null"                                       json:"snooze_count"`
	BaseModel

	// 关联
	Entry *TimesheetEntry `gorm:"foreignKey:TimesheetEntryID;references:EntryID" json:"timesheet_entry,omitempty"`
}

// TableName 指定表名
func (Alarm) TableName() string { return "alarms" }

// EffectiveTime 实际触发时间：稍后提醒时取 SnoozeUntil，否则取 AlarmTime
func (a *Alarm) EffectiveTime() time.Time {
	if a.SnoozeUntil != nil {
		return *a.SnoozeUntil
	}
	return a.AlarmTime
}

// ShouldTrigger 状态为 active 且已到达实际触发时间
func (a *Alarm) ShouldTrigger(now time.Time) bool {
	return a.Status == AlarmStatusActive && !now.Before(a.EffectiveTime())
}

// TimeUntil 距实际触发时间的剩余时长，已到期时为 0
func (a *Alarm) TimeUntil(now time.Time) time.Duration {
	d := a.EffectiveTime().Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Trigger active → triggered
func (a *Alarm) Trigger(now time.Time) error {
	if a.Status != AlarmStatusActive {
		return ErrAlarmNotActive
	}
	if now.Before(a.EffectiveTime()) {
		return ErrAlarmNotDue
	}
	a.Status = AlarmStatusTriggered
	a.TriggeredAt = &now
	return nil
}

// Dismiss 任意状态 → dismissed，并清除稍后提醒信息
func (a *Alarm) Dismiss(now time.Time) {
	a.Status = AlarmStatusDismissed
	a.DismissedAt = &now
	a.SnoozeUntil = nil
	a.SnoozeCount = 0
}

// Snooze active/triggered/snoozed → snoozed，SnoozeUntil = now + minutes
func (a *Alarm) Snooze(now time.Time, minutes int) error {
	if minutes <= 0 || minutes > MaxReminderMinutes {
		return ErrInvalidSnooze
	}
	switch a.Status {
	case AlarmStatusActive, AlarmStatusTriggered, AlarmStatusSnoozed:
	default:
		return ErrAlarmCannotSnooze
	}
	until := now.Add(time.Duration(minutes) * time.Minute)
	a.Status = AlarmStatusSnoozed
	a.SnoozeUntil = &until
	a.SnoozeCount++
	return nil
}

// Reactivate snoozed → active，清除 SnoozeUntil；其余状态不变，返回是否发生了变更
func (a *Alarm) Reactivate() bool {
	if a.Status != AlarmStatusSnoozed {
		return false
	}
	a.Status = AlarmStatusActive
	a.SnoozeUntil = nil
	return true
}

// NextOccurrence 周期提醒的下一次触发时间；非周期提醒返回 false
func (a *Alarm) NextOccurrence() (time.Time, bool) {
	if !a.IsRecurring || a.RecurringPattern == nil {
		return time.Time{}, false
	}
	switch *a.RecurringPattern {
	case RecurDaily:
		return a.AlarmTime.AddDate(0, 0, 1), true
	case RecurWeekly:
		return a.AlarmTime.AddDate(0, 0, 7), true
	case RecurMonthly:
		return a.AlarmTime.AddDate(0, 1, 0), true
	}
	return time.Time{}, false
}

// AutoAlarmTitle 关联工时记录且未提供标题时按类型生成
func AutoAlarmTitle(alarmType string) string {
	switch alarmType {
	case AlarmTypeStart:
		return "Work Session Starting Soon"
	case AlarmTypeEnd:
		return "Work Session Ending Soon"
	case AlarmTypeBreak:
		return "Break Time Reminder"
	default:
		return "Work Reminder"
	}
}
