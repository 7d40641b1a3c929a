package model

import (
	"fmt"
	"regexp"
	"time"
	_ "time/tzdata" // 容器镜像可能不带时区数据库

	pkgerrors "github.com/KhalilA93/TImesheetTracker/pkg/errors"
)

// ── 设置项枚举 ──

var (
	Currencies    = []string{"USD", "EUR", "GBP", "CAD", "AUD", "JPY"}
	TimeFormats   = []string{"12h", "24h"}
	DateFormats   = []string{"MM/DD/YYYY", "DD/MM/YYYY", "YYYY-MM-DD"}
	CalendarViews = []string{"month", "week", "day", "agenda"}
	Themes        = []string{"light", "dark", "auto"}
	ExportFormats = []string{"pdf", "csv", "excel"}
)

// DefaultCategoryColors 各分类的默认颜色
var DefaultCategoryColors = ColorScheme{
	CategoryRegular:  "#3174ad",
	CategoryOvertime: "#f39c12",
	CategoryHoliday:  "#e74c3c",
	CategorySick:     "#95a5a6",
	CategoryVacation: "#2ecc71",
	CategoryTraining: "#9b59b6",
	CategoryMeeting:  "#34495e",
}

// NotificationPrefs 通知偏好（嵌入 user_settings，列前缀 notify_）
type NotificationPrefs struct {
	Browser                bool   `gorm:"not null"                 json:"browser_notifications"`
	Sound                  bool   `gorm:"not null"                 json:"sound_notifications"`
	DefaultReminderMinutes int    `gorm:"not null"                 json:"default_reminder_minutes"`
	DailySummaryTime       string `gorm:"type:varchar(5);not null" json:"daily_summary_time"`
	WeeklySummaryDay       int    `gorm:"not null"                 json:"weekly_summary_day"`
}

// ReportingPrefs 报表偏好（列前缀 report_）
type ReportingPrefs struct {
	IncludeBreaks       bool   `gorm:"not null"                 json:"include_breaks"`
	GroupByProject      bool   `gorm:"not null"                 json:"group_by_project"`
	ShowHourlyBreakdown bool   `gorm:"not null"                 json:"show_hourly_breakdown"`
	DefaultExportFormat string `gorm:"type:varchar(5);not null" json:"default_export_format"`
}

// ProfileInfo 报表抬头使用的个人信息（列前缀 profile_）
type ProfileInfo struct {
	FirstName string `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName  string `gorm:"type:varchar(100);not null" json:"last_name"`
	Email     string `gorm:"type:varchar(255);not null" json:"email"`
	Company   string `gorm:"type:varchar(200);not null" json:"company"`
	Position  string `gorm:"type:varchar(100);not null" json:"position"`
}

// UserSettings 用户设置表 对应 user_settings（每用户一行，首次访问时按默认值创建）
//
// 布尔与数值列不使用 gorm default 标签：零值同样是合法取值，默认值统一由 DefaultUserSettings 给出。
type UserSettings struct {
	UserID string `gorm:"type:uuid;primaryKey" json:"user_id"`

	// 薪资
	DefaultPayRate float64 `gorm:"type:numeric(12,2);not null" json:"default_pay_rate"`
	Currency       string  `gorm:"type:varchar(3);not null"    json:"currency"`
	CurrencySymbol string  `gorm:"type:varchar(5);not null"    json:"currency_symbol"`

	// 时间与日期
	TimeFormat   string `gorm:"type:varchar(3);not null"  json:"time_format"`
	DateFormat   string `gorm:"type:varchar(10);not null" json:"date_format"`
	WeekStartsOn int    `gorm:"not null"                  json:"week_starts_on"`
	Timezone     string `gorm:"type:varchar(64);not null" json:"timezone"`

	// 日历
	DefaultCalendarView string `gorm:"type:varchar(10);not null" json:"default_calendar_view"`
	ShowWeekends        bool   `gorm:"not null"                  json:"show_weekends"`
	BusinessHoursStart  string `gorm:"type:varchar(5);not null"  json:"business_hours_start"`
	BusinessHoursEnd    string `gorm:"type:varchar(5);not null"  json:"business_hours_end"`

	// 工作时段
	DefaultSessionDuration float64 `gorm:"type:numeric(5,2);not null" json:"default_session_duration"`
	DefaultBreakDuration   float64 `gorm:"type:numeric(5,2);not null" json:"default_break_duration"`
	AutoCalculateBreaks    bool    `gorm:"not null"                   json:"auto_calculate_breaks"`
	MinimumSessionDuration float64 `gorm:"type:numeric(5,2);not null" json:"minimum_session_duration"`

	// 加班
	OvertimeThreshold       float64 `gorm:"type:numeric(5,2);not null" json:"overtime_threshold"`
	OvertimeMultiplier      float64 `gorm:"type:numeric(4,2);not null" json:"overtime_multiplier"`
	WeeklyOvertimeThreshold float64 `gorm:"type:numeric(5,2);not null" json:"weekly_overtime_threshold"`
	ApplyOvertimeToEntries  bool    `gorm:"not null"                   json:"apply_overtime_to_entries"`

	Notifications NotificationPrefs `gorm:"embedded;embeddedPrefix:notify_"  json:"notifications"`
	Theme         string            `gorm:"type:varchar(5);not null"         json:"theme"`
	ColorScheme   ColorScheme       `gorm:"type:jsonb;not null"              json:"color_scheme"`
	Reporting     ReportingPrefs    `gorm:"embedded;embeddedPrefix:report_"  json:"reporting_preferences"`
	Profile       ProfileInfo       `gorm:"embedded;embeddedPrefix:profile_" json:"user_info"`

	BaseModel
}

// TableName 指定表名
func (UserSettings) TableName() string { return "user_settings" }

// DefaultUserSettings 返回某用户的默认设置
func DefaultUserSettings(userID string) *UserSettings {
	return &UserSettings{
		UserID:                  userID,
		DefaultPayRate:          15.00,
		Currency:                "USD",
		CurrencySymbol:          "$",
		TimeFormat:              "12h",
		DateFormat:              "MM/DD/YYYY",
		WeekStartsOn:            0,
		Timezone:                "America/New_York",
		DefaultCalendarView:     "week",
		ShowWeekends:            true,
		BusinessHoursStart:      "09:00",
		BusinessHoursEnd:        "17:00",
		DefaultSessionDuration:  8,
		DefaultBreakDuration:    1,
		AutoCalculateBreaks:     false,
		MinimumSessionDuration:  0.25,
		OvertimeThreshold:       8,
		OvertimeMultiplier:      1.5,
		WeeklyOvertimeThreshold: 40,
		ApplyOvertimeToEntries:  false,
		Notifications: NotificationPrefs{
			Browser:                true,
			Sound:                  true,
			DefaultReminderMinutes: 15,
			DailySummaryTime:       "18:00",
			WeeklySummaryDay:       5,
		},
		Theme:       "auto",
		ColorScheme: DefaultCategoryColors.Clone(),
		Reporting: ReportingPrefs{
			IncludeBreaks:       false,
			GroupByProject:      true,
			ShowHourlyBreakdown: true,
			DefaultExportFormat: "pdf",
		},
	}
}

// ColorFor 返回分类对应的颜色，未配置时回退到 regular 颜色
func (s *UserSettings) ColorFor(category string) string {
	if c, ok := s.ColorScheme[category]; ok && c != "" {
		return c
	}
	if c, ok := s.ColorScheme[CategoryRegular]; ok && c != "" {
		return c
	}
	return DefaultEntryColor
}

// FormattedPayRate 形如 "$15.00/hr"
func (s *UserSettings) FormattedPayRate() string {
	return fmt.Sprintf("%s%.2f/hr", s.CurrencySymbol, s.DefaultPayRate)
}

var (
	hhmmPattern     = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// IsHHMM 是否为 24 小时制 HH:MM
func IsHHMM(v string) bool {
	return hhmmPattern.MatchString(v)
}

// Validate 校验全部设置项，返回逐字段的 ValidationError
func (s *UserSettings) Validate() error {
	ve := pkgerrors.NewValidationError()

	if s.DefaultPayRate < 0 {
		ve.Add("default_pay_rate 不能为负数")
	}
	if !Contains(Currencies, s.Currency) {
		ve.Add(fmt.Sprintf("currency 不支持: %s", s.Currency))
	}
	if l := len(s.CurrencySymbol); l == 0 || l > 5 {
		ve.Add("currency_symbol 长度必须在 1-5 之间")
	}
	if !Contains(TimeFormats, s.TimeFormat) {
		ve.Add(fmt.Sprintf("time_format 不支持: %s", s.TimeFormat))
	}
	if !Contains(DateFormats, s.DateFormat) {
		ve.Add(fmt.Sprintf("date_format 不支持: %s", s.DateFormat))
	}
	if s.WeekStartsOn < 0 || s.WeekStartsOn > 6 {
		ve.Add("week_starts_on 必须在 0-6 之间")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil || s.Timezone == "" {
		ve.Add(fmt.Sprintf("timezone 无效: %s", s.Timezone))
	}
	if !Contains(CalendarViews, s.DefaultCalendarView) {
		ve.Add(fmt.Sprintf("default_calendar_view 不支持: %s", s.DefaultCalendarView))
	}
	if !IsHHMM(s.BusinessHoursStart) || !IsHHMM(s.BusinessHoursEnd) {
		ve.Add("business_hours 必须为 HH:MM 格式")
	} else if s.BusinessHoursStart >= s.BusinessHoursEnd {
		ve.Add("business_hours_end 必须晚于 business_hours_start")
	}
	if s.DefaultSessionDuration < 0.25 || s.DefaultSessionDuration > 24 {
		ve.Add("default_session_duration 必须在 0.25-24 之间")
	}
	if s.DefaultBreakDuration < 0.25 || s.DefaultBreakDuration > 4 {
		ve.Add("default_break_duration 必须在 0.25-4 之间")
	}
	if s.MinimumSessionDuration < 0.1 {
		ve.Add("minimum_session_duration 不能小于 0.1")
	}
	if s.OvertimeThreshold < 0 || s.OvertimeThreshold > 24 {
		ve.Add("overtime_threshold 必须在 0-24 之间")
	}
	if s.OvertimeMultiplier < 1 {
		ve.Add("overtime_multiplier 不能小于 1")
	}
	if s.WeeklyOvertimeThreshold < 0 || s.WeeklyOvertimeThreshold > 168 {
		ve.Add("weekly_overtime_threshold 必须在 0-168 之间")
	}

	n := s.Notifications
	if n.DefaultReminderMinutes < 0 || n.DefaultReminderMinutes > MaxReminderMinutes {
		ve.Add("notifications.default_reminder_minutes 必须在 0-1440 之间")
	}
	if !IsHHMM(n.DailySummaryTime) {
		ve.Add("notifications.daily_summary_time 必须为 HH:MM 格式")
	}
	if n.WeeklySummaryDay < 0 || n.WeeklySummaryDay > 6 {
		ve.Add("notifications.weekly_summary_day 必须在 0-6 之间")
	}

	if !Contains(Themes, s.Theme) {
		ve.Add(fmt.Sprintf("theme 不支持: %s", s.Theme))
	}
	for category, color := range s.ColorScheme {
		if !Contains(EntryCategories, category) {
			ve.Add(fmt.Sprintf("color_scheme 包含未知分类: %s", category))
			continue
		}
		if !hexColorPattern.MatchString(color) {
			ve.Add(fmt.Sprintf("color_scheme.%s 必须为 #rrggbb 格式", category))
		}
	}
	if !Contains(ExportFormats, s.Reporting.DefaultExportFormat) {
		ve.Add(fmt.Sprintf("reporting_preferences.default_export_format 不支持: %s", s.Reporting.DefaultExportFormat))
	}

	return ve.OrNil()
}

// Location 用户时区，无效时回退到 UTC
func (s *UserSettings) Location() *time.Location {
	if loc, err := time.LoadLocation(s.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// Contains 判断 v 是否在枚举列表中
func Contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
