package dto

import "time"

// ── 提醒模块 DTO ──

// CreateAlarmRequest 创建提醒
// 关联工时记录时 alarm_time 由记录时间与提前分钟数推算，否则必须显式提供
type CreateAlarmRequest struct {
	TimesheetEntryID    *string    `json:"timesheet_entry_id"   binding:"omitempty,uuid"`
	AlarmTime           *time.Time `json:"alarm_time"`
	ReminderMinutes     *int       `json:"reminder_minutes"     binding:"omitempty,min=0,max=1440"`
	Type                string     `json:"type"                 binding:"omitempty,oneof=start-reminder end-reminder break-reminder custom"`
	Title               string     `json:"title"                binding:"max=200"`
	Message             string     `json:"message"              binding:"max=500"`
	IsRecurring         bool       `json:"is_recurring"`
	RecurringPattern    *string    `json:"recurring_pattern"    binding:"omitempty,oneof=daily weekly monthly"`
	SoundEnabled        *bool      `json:"sound_enabled"`
	SoundFile           string     `json:"sound_file"           binding:"max=100"`
	BrowserNotification *bool      `json:"browser_notification"`
}

// UpdateAlarmRequest 更新提醒（仅更新非 nil 字段）
// Status 只允许在 active 与 disabled 之间手动切换
type UpdateAlarmRequest struct {
	AlarmTime           *time.Time `json:"alarm_time"`
	ReminderMinutes     *int       `json:"reminder_minutes"     binding:"omitempty,min=0,max=1440"`
	Type                *string    `json:"type"                 binding:"omitempty,oneof=start-reminder end-reminder break-reminder custom"`
	Title               *string    `json:"title"                binding:"omitempty,max=200"`
	Message             *string    `json:"message"              binding:"omitempty,max=500"`
	IsRecurring         *bool      `json:"is_recurring"`
	RecurringPattern    *string    `json:"recurring_pattern"    binding:"omitempty,oneof=daily weekly monthly"`
	SoundEnabled        *bool      `json:"sound_enabled"`
	SoundFile           *string    `json:"sound_file"           binding:"omitempty,max=100"`
	BrowserNotification *bool      `json:"browser_notification"`
	Status              *string    `json:"status"               binding:"omitempty,oneof=active disabled"`
}

// AlarmListRequest 提醒列表查询参数
type AlarmListRequest struct {
	Status           string `form:"status"             binding:"omitempty,oneof=active triggered dismissed snoozed disabled"`
	Type             string `form:"type"               binding:"omitempty,oneof=start-reminder end-reminder break-reminder custom"`
	TimesheetEntryID string `form:"timesheet_entry_id" binding:"omitempty,uuid"`
	Upcoming         bool   `form:"upcoming"`
	HoursAhead       int    `form:"hours_ahead"        binding:"omitempty,min=1,max=720"`
}

// UpcomingAlarmRequest 即将到来的提醒
type UpcomingAlarmRequest struct {
	HoursAhead int `form:"hours_ahead" binding:"omitempty,min=1,max=720"`
}

// GetHoursAhead 默认 24 小时
func (r *UpcomingAlarmRequest) GetHoursAhead() int {
	if r.HoursAhead <= 0 {
		return 24
	}
	return r.HoursAhead
}

// SnoozeAlarmRequest 稍后提醒，默认 5 分钟
type SnoozeAlarmRequest struct {
	Minutes *int `json:"minutes" binding:"omitempty,min=1,max=1440"`
}

// BulkDismissRequest 批量关闭
type BulkDismissRequest struct {
	AlarmIDs []string `json:"alarm_ids" binding:"required,min=1,max=500,dive,uuid"`
}

// ── 响应 ──

// AlarmResponse 提醒
type AlarmResponse struct {
	ID                  string           `json:"id"`
	TimesheetEntryID    *string          `json:"timesheet_entry_id"`
	AlarmTime           time.Time        `json:"alarm_time"`
	ReminderMinutes     int              `json:"reminder_minutes"`
	Title               string           `json:"title"`
	Message             string           `json:"message"`
	Type                string           `json:"type"`
	IsRecurring         bool             `json:"is_recurring"`
	RecurringPattern    *string          `json:"recurring_pattern"`
	SoundEnabled        bool             `json:"sound_enabled"`
	SoundFile           string           `json:"sound_file"`
	BrowserNotification bool             `json:"browser_notification"`
	Status              string           `json:"status"`
	TriggeredAt         *time.Time       `json:"triggered_at"`
	DismissedAt         *time.Time       `json:"dismissed_at"`
	SnoozeUntil         *time.Time       `json:"snooze_until"`
	SnoozeCount         int              `json:"snooze_count"`
	ShouldTrigger       bool             `json:"should_trigger"`
	SecondsUntil        int64            `json:"seconds_until"`
	Entry               *AlarmEntryBrief `json:"timesheet_entry,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// AlarmEntryBrief 提醒关联的工时记录摘要
type AlarmEntryBrief struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Project     string    `json:"project"`
	Description string    `json:"description"`
}

// DismissAlarmResponse 关闭结果；周期提醒会生成下一次提醒
type DismissAlarmResponse struct {
	Alarm     AlarmResponse  `json:"alarm"`
	NextAlarm *AlarmResponse `json:"next_alarm,omitempty"`
}

// SweepResult 后台扫描一次的处理结果
type SweepResult struct {
	Reactivated int `json:"reactivated"`
	Triggered   int `json:"triggered"`
}
