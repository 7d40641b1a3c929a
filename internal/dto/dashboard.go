package dto

import "time"

// ── 仪表盘模块 DTO ──

// WeeklySummaryRequest 周汇总，start_date 缺省为本周第一天
type WeeklySummaryRequest struct {
	StartDate string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
}

// MonthlySummaryRequest 月汇总，缺省为当月
type MonthlySummaryRequest struct {
	Year  int `form:"year"  binding:"omitempty,min=1970,max=9999"`
	Month int `form:"month" binding:"omitempty,min=1,max=12"`
}

// PeriodDaysRequest 最近 N 天
type PeriodDaysRequest struct {
	Days int `form:"days" binding:"omitempty,min=1,max=365"`
}

// GetDays 默认 30 天
func (r *PeriodDaysRequest) GetDays() int {
	if r.Days <= 0 {
		return 30
	}
	return r.Days
}

// ── 响应 ──

// OverviewResponse 仪表盘概览
type OverviewResponse struct {
	Totals         OverviewTotals   `json:"totals"`
	RecentEntries  []EntryResponse  `json:"recent_entries"`
	UpcomingAlarms []AlarmResponse  `json:"upcoming_alarms"`
	ActiveAlarms   []AlarmResponse  `json:"active_alarms"`
	Settings       OverviewSettings `json:"settings"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// OverviewTotals 今日/本周/本月合计
type OverviewTotals struct {
	Today     Totals `json:"today"`
	ThisWeek  Totals `json:"this_week"`
	ThisMonth Totals `json:"this_month"`
}

// OverviewSettings 概览附带的费率信息
type OverviewSettings struct {
	DefaultPayRate   float64 `json:"default_pay_rate"`
	FormattedPayRate string  `json:"formatted_pay_rate"`
	Currency         string  `json:"currency"`
	Timezone         string  `json:"timezone"`
}

// DailyBreakdownItem 按日分组
type DailyBreakdownItem struct {
	Date       string   `json:"date"`
	DayOfWeek  int      `json:"day_of_week"`
	TotalHours float64  `json:"total_hours"`
	TotalPay   float64  `json:"total_pay"`
	EntryCount int64    `json:"entry_count"`
	Categories []string `json:"categories"`
}

// WeeklyBreakdownItem 按 ISO 周分组
type WeeklyBreakdownItem struct {
	Year       int     `json:"year"`
	Week       int     `json:"week"`
	TotalHours float64 `json:"total_hours"`
	TotalPay   float64 `json:"total_pay"`
	EntryCount int64   `json:"entry_count"`
}

// GroupBreakdownItem 按项目或分类分组
type GroupBreakdownItem struct {
	Key        string  `json:"key"`
	TotalHours float64 `json:"total_hours"`
	TotalPay   float64 `json:"total_pay"`
	EntryCount int64   `json:"entry_count"`
}

// WeeklySummaryResponse 周汇总
type WeeklySummaryResponse struct {
	WeekStart        string               `json:"week_start"`
	WeekEnd          string               `json:"week_end"`
	Totals           Totals               `json:"totals"`
	DailyBreakdown   []DailyBreakdownItem `json:"daily_breakdown"`
	ProjectBreakdown []GroupBreakdownItem `json:"project_breakdown"`
}

// MonthlySummaryResponse 月汇总
type MonthlySummaryResponse struct {
	MonthStart        string                `json:"month_start"`
	MonthEnd          string                `json:"month_end"`
	Totals            Totals                `json:"totals"`
	WeeklyBreakdown   []WeeklyBreakdownItem `json:"weekly_breakdown"`
	CategoryBreakdown []GroupBreakdownItem  `json:"category_breakdown"`
}

// Period 统计区间
type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      int    `json:"days"`
}

// ProductivityInsights 每日平均
type ProductivityInsights struct {
	AvgHoursPerDay  float64 `json:"avg_hours_per_day"`
	AvgPayPerDay    float64 `json:"avg_pay_per_day"`
	TotalDaysWorked int64   `json:"total_days_worked"`
}

// HourlyBreakdownItem 按开始小时分组
type HourlyBreakdownItem struct {
	Hour       int     `json:"hour"`
	TotalHours float64 `json:"total_hours"`
	EntryCount int64   `json:"entry_count"`
}

// DayOfWeekBreakdownItem 按星期分组（0=周日）
type DayOfWeekBreakdownItem struct {
	DayOfWeek        int     `json:"day_of_week"`
	TotalHours       float64 `json:"total_hours"`
	AvgSessionLength float64 `json:"avg_session_length"`
	EntryCount       int64   `json:"entry_count"`
}

// InsightsResponse 效率洞察
type InsightsResponse struct {
	Period             Period                   `json:"period"`
	Insights           ProductivityInsights     `json:"insights"`
	HourlyBreakdown    []HourlyBreakdownItem    `json:"hourly_breakdown"`
	DayOfWeekBreakdown []DayOfWeekBreakdownItem `json:"day_of_week_breakdown"`
}

// AlarmStatusItem 按状态统计提醒
type AlarmStatusItem struct {
	Status         string  `json:"status"`
	Count          int64   `json:"count"`
	AvgSnoozeCount float64 `json:"avg_snooze_count"`
}

// AlarmEffectiveness 触发与关闭数量
type AlarmEffectiveness struct {
	Triggered int64 `json:"triggered"`
	Dismissed int64 `json:"dismissed"`
}

// AlarmStatsResponse 提醒统计
type AlarmStatsResponse struct {
	Period        Period             `json:"period"`
	AlarmStats    []AlarmStatusItem  `json:"alarm_stats"`
	Effectiveness AlarmEffectiveness `json:"effectiveness"`
}
