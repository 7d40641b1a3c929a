package dto

import "time"

// ── 工时记录模块 DTO ──

// CreateEntryRequest 创建工时记录
type CreateEntryRequest struct {
	Date            string                `json:"date"              binding:"required,datetime=2006-01-02"`
	StartTime       time.Time             `json:"start_time"        binding:"required"`
	EndTime         time.Time             `json:"end_time"          binding:"required"`
	Description     string                `json:"description"       binding:"max=500"`
	Project         string                `json:"project"           binding:"max=100"`
	Category        string                `json:"category"          binding:"omitempty,oneof=regular overtime holiday sick vacation training meeting"`
	Status          string                `json:"status"            binding:"omitempty,oneof=draft confirmed submitted approved"`
	PayRateOverride *float64              `json:"pay_rate_override" binding:"omitempty,gte=0"`
	IsBreakTime     bool                  `json:"is_break_time"`
	Color           string                `json:"color"             binding:"omitempty,hexcolor"`
	Reminder        *EntryReminderRequest `json:"reminder"`
}

// EntryReminderRequest 创建记录时一并创建的提醒
type EntryReminderRequest struct {
	Type            string `json:"type"             binding:"omitempty,oneof=start-reminder end-reminder break-reminder custom"`
	ReminderMinutes *int   `json:"reminder_minutes" binding:"omitempty,min=0,max=1440"`
	Title           string `json:"title"            binding:"max=200"`
	Message         string `json:"message"          binding:"max=500"`
}

// UpdateEntryRequest 更新工时记录（仅更新非 nil 字段）
// PayRateOverride 传 0 表示取消单条费率
type UpdateEntryRequest struct {
	Date            *string    `json:"date"              binding:"omitempty,datetime=2006-01-02"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	Description     *string    `json:"description"       binding:"omitempty,max=500"`
	Project         *string    `json:"project"           binding:"omitempty,max=100"`
	Category        *string    `json:"category"          binding:"omitempty,oneof=regular overtime holiday sick vacation training meeting"`
	Status          *string    `json:"status"            binding:"omitempty,oneof=draft confirmed submitted approved"`
	PayRateOverride *float64   `json:"pay_rate_override" binding:"omitempty,gte=0"`
	IsBreakTime     *bool      `json:"is_break_time"`
	Color           *string    `json:"color"             binding:"omitempty,hexcolor"`
}

// EntryListRequest 列表查询参数
type EntryListRequest struct {
	OptionalDateRangeQuery
	PaginationRequest
	Project   string `form:"project"    binding:"max=100"`
	Category  string `form:"category"   binding:"omitempty,oneof=regular overtime holiday sick vacation training meeting"`
	Status    string `form:"status"     binding:"omitempty,oneof=draft confirmed submitted approved"`
	SortBy    string `form:"sort_by"    binding:"omitempty,oneof=date start_time end_time hours_worked calculated_pay created_at project"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

// BulkUpdateEntriesRequest 批量更新
type BulkUpdateEntriesRequest struct {
	EntryIDs []string          `json:"entry_ids" binding:"required,min=1,max=500,dive,uuid"`
	Updates  *BulkEntryUpdates `json:"updates"   binding:"required"`
}

// BulkEntryUpdates 批量更新允许修改的字段，时间与费率相关字段必须逐条更新
type BulkEntryUpdates struct {
	Status      *string `json:"status"      binding:"omitempty,oneof=draft confirmed submitted approved"`
	Category    *string `json:"category"    binding:"omitempty,oneof=regular overtime holiday sick vacation training meeting"`
	Project     *string `json:"project"     binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

// ImportICSOptions 导入 iCalendar 时套用到每条记录的属性
type ImportICSOptions struct {
	Project  string `form:"project"  binding:"max=100"`
	Category string `form:"category" binding:"omitempty,oneof=regular overtime holiday sick vacation training meeting"`
	Status   string `form:"status"   binding:"omitempty,oneof=draft confirmed submitted approved"`
}

// ── 响应 ──

// EntryResponse 工时记录
type EntryResponse struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	HoursWorked     float64   `json:"hours_worked"`
	PayRateOverride *float64  `json:"pay_rate_override"`
	CalculatedPay   float64   `json:"calculated_pay"`
	Description     string    `json:"description"`
	Project         string    `json:"project"`
	Category        string    `json:"category"`
	Status          string    `json:"status"`
	IsBreakTime     bool      `json:"is_break_time"`
	Color           string    `json:"color"`
	Title           string    `json:"title"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateEntryResponse 创建结果，附带内联创建的提醒
type CreateEntryResponse struct {
	Entry EntryResponse  `json:"entry"`
	Alarm *AlarmResponse `json:"alarm,omitempty"`
}

// CalendarEvent 日历事件
type CalendarEvent struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	AllDay          bool             `json:"all_day"`
	Resource        CalendarResource `json:"resource"`
	BackgroundColor string           `json:"background_color"`
	BorderColor     string           `json:"border_color"`
}

// CalendarResource 日历事件附带的记录信息
type CalendarResource struct {
	EntryID       string  `json:"entry_id"`
	HoursWorked   float64 `json:"hours_worked"`
	CalculatedPay float64 `json:"calculated_pay"`
	Project       string  `json:"project"`
	Category      string  `json:"category"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
}

// Totals 工时与薪资合计；无数据时为全零
type Totals struct {
	TotalHours float64 `json:"total_hours"`
	TotalPay   float64 `json:"total_pay"`
	EntryCount int64   `json:"entry_count"`
}

// ProjectSummaryItem 按项目汇总
type ProjectSummaryItem struct {
	Project    string   `json:"project"`
	TotalHours float64  `json:"total_hours"`
	TotalPay   float64  `json:"total_pay"`
	EntryCount int64    `json:"entry_count"`
	Categories []string `json:"categories"`
}

// ImportICSResponse iCalendar 导入结果
type ImportICSResponse struct {
	Imported int             `json:"imported"`
	Skipped  int             `json:"skipped"`
	Errors   []string        `json:"errors,omitempty"`
	Entries  []EntryResponse `json:"entries"`
}
