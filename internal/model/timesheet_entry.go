package model

import (
	"fmt"
	"time"
)

// ── 工时记录枚举 ──

const (
	CategoryRegular  = "regular"
	CategoryOvertime = "overtime"
	CategoryHoliday  = "holiday"
	CategorySick     = "sick"
	CategoryVacation = "vacation"
	CategoryTraining = "training"
	CategoryMeeting  = "meeting"

	EntryStatusDraft     = "draft"
	EntryStatusConfirmed = "confirmed"
	EntryStatusSubmitted = "submitted"
	EntryStatusApproved  = "approved"

	DefaultEntryColor = "#3174ad"
)

var (
	EntryCategories = []string{
		CategoryRegular, CategoryOvertime, CategoryHoliday, CategorySick,
		CategoryVacation, CategoryTraining, CategoryMeeting,
	}
	EntryStatuses = []string{
		EntryStatusDraft, EntryStatusConfirmed, EntryStatusSubmitted, EntryStatusApproved,
	}
	// CountedStatuses 计入统计的状态（草稿不计入）
	CountedStatuses = []string{EntryStatusConfirmed, EntryStatusSubmitted, EntryStatusApproved}
)

// TimesheetEntry 工时记录表 对应 timesheet_entries
// HoursWorked 与 CalculatedPay 为派生字段，每次保存时由服务层重新计算
type TimesheetEntry struct {
	EntryID         string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"entry_id"`
	UserID          string    `gorm:"type:uuid;not null;index"                       json:"user_id"`
	Date            time.Time `gorm:"type:date;not null"                             json:"date"`
	StartTime       time.Time `gorm:"type:timestamptz;not null"                      json:"start_time"`
	EndTime         time.Time `gorm:"type:timestamptz;not null"                      json:"end_time"`
	HoursWorked     float64   `gorm:"type:numeric(8,4);not null"                     json:"hours_worked"`
	PayRateOverride *float64  `gorm:"type:numeric(12,2)"                             json:"pay_rate_override"`
	CalculatedPay   float64   `gorm:"type:numeric(14,4);not null"                    json:"calculated_pay"`
	Description     string    `gorm:"type:varchar(500);not null"                     json:"description"`
	Project         string    `gorm:"type:varchar(100);not null"                     json:"project"`
	Category        string    `gorm:"type:varchar(20);not null"                      json:"category"`
	Status          string    `gorm:"type:varchar(20);not null"                      json:"status"`
	IsBreakTime     bool      `gorm:"not null"                                       json:"is_break_time"`
	Color           string    `gorm:"type:varchar(7);not null"                       json:"color"`
	BaseModel
}

// TableName 指定表名
func (TimesheetEntry) TableName() string { return "timesheet_entries" }

// HasOverride 是否设置了有效的单条费率
func (e *TimesheetEntry) HasOverride() bool {
	return e.PayRateOverride != nil && *e.PayRateOverride > 0
}

// Title 日历展示标题，如 "8.00h - $160.00 (Acme)"
func (e *TimesheetEntry) Title(currencySymbol string) string {
	title := fmt.Sprintf("%.2fh - %s%.2f", e.HoursWorked, currencySymbol, e.CalculatedPay)
	if e.Project != "" {
		title += " (" + e.Project + ")"
	}
	return title
}
