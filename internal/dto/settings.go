package dto

import (
	"encoding/json"
	"time"

	"github.com/KhalilA93/TImesheetTracker/internal/model"
)

// ── 用户设置模块 DTO ──

// SettingsPatch 设置的部分更新，仅应用非 nil 字段
// 同时用作 PUT /settings 请求体、导入导出格式与单项更新的解码目标
type SettingsPatch struct {
	DefaultPayRate *float64 `json:"default_pay_rate,omitempty"`
	Currency       *string  `json:"currency,omitempty"`
	CurrencySymbol *string  `json:"currency_symbol,omitempty"`

	TimeFormat   *string `json:"time_format,omitempty"`
	DateFormat   *string `json:"date_format,omitempty"`
	WeekStartsOn *int    `json:"week_starts_on,omitempty"`
	Timezone     *string `json:"timezone,omitempty"`

	DefaultCalendarView *string `json:"default_calendar_view,omitempty"`
	ShowWeekends        *bool   `json:"show_weekends,omitempty"`
	BusinessHoursStart  *string `json:"business_hours_start,omitempty" binding:"omitempty,hhmm"`
	BusinessHoursEnd    *string `json:"business_hours_end,omitempty"   binding:"omitempty,hhmm"`

	DefaultSessionDuration *float64 `json:"default_session_duration,omitempty"`
	DefaultBreakDuration   *float64 `json:"default_break_duration,omitempty"`
	AutoCalculateBreaks    *bool    `json:"auto_calculate_breaks,omitempty"`
	MinimumSessionDuration *float64 `json:"minimum_session_duration,omitempty"`

	OvertimeThreshold       *float64 `json:"overtime_threshold,omitempty"`
	OvertimeMultiplier      *float64 `json:"overtime_multiplier,omitempty"`
	WeeklyOvertimeThreshold *float64 `json:"weekly_overtime_threshold,omitempty"`
	ApplyOvertimeToEntries  *bool    `json:"apply_overtime_to_entries,omitempty"`

	Notifications *NotificationsPatch `json:"notifications,omitempty"`
	Theme         *string             `json:"theme,omitempty"`
	ColorScheme   map[string]string   `json:"color_scheme,omitempty"`
	Reporting     *ReportingPatch     `json:"reporting_preferences,omitempty"`
	Profile       *ProfilePatch       `json:"user_info,omitempty"`
}

// NotificationsPatch 通知偏好部分更新
type NotificationsPatch struct {
	BrowserNotifications   *bool   `json:"browser_notifications,omitempty"`
	SoundNotifications     *bool   `json:"sound_notifications,omitempty"`
	DefaultReminderMinutes *int    `json:"default_reminder_minutes,omitempty"`
	DailySummaryTime       *string `json:"daily_summary_time,omitempty" binding:"omitempty,hhmm"`
	WeeklySummaryDay       *int    `json:"weekly_summary_day,omitempty"`
}

// ReportingPatch 报表偏好部分更新
type ReportingPatch struct {
	IncludeBreaks       *bool   `json:"include_breaks,omitempty"`
	GroupByProject      *bool   `json:"group_by_project,omitempty"`
	ShowHourlyBreakdown *bool   `json:"show_hourly_breakdown,omitempty"`
	DefaultExportFormat *string `json:"default_export_format,omitempty"`
}

// ProfilePatch 个人信息部分更新
type ProfilePatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Company   *string `json:"company,omitempty"`
	Position  *string `json:"position,omitempty"`
}

// UpdateSettingRequest 单项更新 PUT /settings/:key
// key 支持点号路径，如 notifications.sound_notifications
type UpdateSettingRequest struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

// UpdatePayRateRequest 更新默认费率
type UpdatePayRateRequest struct {
	PayRate *float64 `json:"pay_rate" binding:"required,gte=0"`
}

// OvertimePatch 加班设置部分更新
type OvertimePatch struct {
	OvertimeThreshold       *float64 `json:"overtime_threshold"        binding:"omitempty,gte=0,lte=24"`
	OvertimeMultiplier      *float64 `json:"overtime_multiplier"       binding:"omitempty,gte=1,lte=10"`
	WeeklyOvertimeThreshold *float64 `json:"weekly_overtime_threshold" binding:"omitempty,gte=0,lte=168"`
	ApplyOvertimeToEntries  *bool    `json:"apply_overtime_to_entries"`
}

// CalculatePayRequest 按加班规则试算薪资
type CalculatePayRequest struct {
	HoursWorked *float64 `json:"hours_worked" binding:"required,gte=0,lte=24"`
	PayRate     *float64 `json:"pay_rate"     binding:"omitempty,gte=0"`
}

// ImportSettingsRequest 导入设置
type ImportSettingsRequest struct {
	Settings *SettingsPatch `json:"settings" binding:"required"`
}

// ── 响应 ──

// SettingsResponse 完整设置
type SettingsResponse struct {
	model.UserSettings
	FormattedPayRate string `json:"formatted_pay_rate"`
}

// RecalculationInfo 费率变化后重算工时记录的结果
type RecalculationInfo struct {
	PayRateChanged      bool    `json:"pay_rate_changed"`
	OldPayRate          float64 `json:"old_pay_rate"`
	NewPayRate          float64 `json:"new_pay_rate"`
	EntriesRecalculated int     `json:"entries_recalculated"`
}

// UpdateSettingsResponse 更新设置的结果
type UpdateSettingsResponse struct {
	Settings          SettingsResponse   `json:"settings"`
	RecalculationInfo *RecalculationInfo `json:"recalculation_info,omitempty"`
}

// PayRateResponse 费率信息
type PayRateResponse struct {
	DefaultPayRate    float64            `json:"default_pay_rate"`
	Currency          string             `json:"currency"`
	CurrencySymbol    string             `json:"currency_symbol"`
	FormattedPayRate  string             `json:"formatted_pay_rate"`
	RecalculationInfo *RecalculationInfo `json:"recalculation_info,omitempty"`
}

// OvertimeResponse 加班设置
type OvertimeResponse struct {
	OvertimeThreshold       float64            `json:"overtime_threshold"`
	OvertimeMultiplier      float64            `json:"overtime_multiplier"`
	WeeklyOvertimeThreshold float64            `json:"weekly_overtime_threshold"`
	ApplyOvertimeToEntries  bool               `json:"apply_overtime_to_entries"`
	RecalculationInfo       *RecalculationInfo `json:"recalculation_info,omitempty"`
}

// CalculatePayResponse 薪资试算结果
type CalculatePayResponse struct {
	HoursWorked        float64 `json:"hours_worked"`
	PayRate            float64 `json:"pay_rate"`
	RegularHours       float64 `json:"regular_hours"`
	OvertimeHours      float64 `json:"overtime_hours"`
	RegularPay         float64 `json:"regular_pay"`
	OvertimePay        float64 `json:"overtime_pay"`
	TotalPay           float64 `json:"total_pay"`
	OvertimeThreshold  float64 `json:"overtime_threshold"`
	OvertimeMultiplier float64 `json:"overtime_multiplier"`
}

// ExportSettingsResponse 导出设置
type ExportSettingsResponse struct {
	ExportedAt time.Time     `json:"exported_at"`
	Settings   SettingsPatch `json:"settings"`
}
