package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/KhalilA93/TImesheetTracker/internal/model"
)

// ── 聚合结果行 ──

// PeriodTotals 时间段合计；无匹配记录时各字段为 0
type PeriodTotals struct {
	TotalHours float64 `json:"total_hours"`
	TotalPay   float64 `json:"total_pay"`
	EntryCount int64   `json:"entry_count"`
}

// DailyRow 按日分组
type DailyRow struct {
	Date       string   `json:"date"`
	DayOfWeek  int      `json:"day_of_week"` // 0=周日
	TotalHours float64  `json:"total_hours"`
	TotalPay   float64  `json:"total_pay"`
	EntryCount int64    `json:"entry_count"`
	Categories []string `json:"categories" gorm:"-"`

	CategoryList string `json:"-"`
}

// WeeklyRow 按 ISO 周分组
type WeeklyRow struct {
	Year       int     `json:"year"`
	Week       int     `json:"week"`
	TotalHours float64 `json:"total_hours"`
	TotalPay   float64 `json:"total_pay"`
	EntryCount int64   `json:"entry_count"`
}

// GroupRow 按项目或分类分组
type GroupRow struct {
	Key        string  `json:"key"`
	TotalHours float64 `json:"total_hours"`
	TotalPay   float64 `json:"total_pay"`
	EntryCount int64   `json:"entry_count"`
}

// DailyAverages 每日平均值
type DailyAverages struct {
	AvgHoursPerDay  float64 `json:"avg_hours_per_day"`
	AvgPayPerDay    float64 `json:"avg_pay_per_day"`
	TotalDaysWorked int64   `json:"total_days_worked"`
}

// HourRow 按开始小时分组
type HourRow struct {
	Hour       int     `json:"hour"`
	TotalHours float64 `json:"total_hours"`
	EntryCount int64   `json:"entry_count"`
}

// DayOfWeekRow 按星期分组
type DayOfWeekRow struct {
	DayOfWeek        int     `json:"day_of_week"`
	TotalHours       float64 `json:"total_hours"`
	AvgSessionLength float64 `json:"avg_session_length"`
	EntryCount       int64   `json:"entry_count"`
}

// AlarmStatusRow 提醒按状态统计
type AlarmStatusRow struct {
	Status         string  `json:"status"`
	Count          int64   `json:"count"`
	AvgSnoozeCount float64 `json:"avg_snooze_count"`
}

// AlarmEffectiveness 已触发与已关闭数量
type AlarmEffectiveness struct {
	Triggered int64 `json:"triggered"`
	Dismissed int64 `json:"dismissed"`
}

// DashboardRepository 仪表盘只读聚合查询
// 工时相关查询只统计 model.CountedStatuses 中的记录，日期区间为闭区间
type DashboardRepository interface {
	Totals(ctx context.Context, userID string, from, to time.Time) (*PeriodTotals, error)
	DailyBreakdown(ctx context.Context, userID string, from, to time.Time) ([]DailyRow, error)
	WeeklyBreakdown(ctx context.Context, userID string, from, to time.Time) ([]WeeklyRow, error)
	// GroupBreakdown field 取 "project" 或 "category"，按合计工时降序
	GroupBreakdown(ctx context.Context, userID, field string, from, to time.Time) ([]GroupRow, error)
	DailyAverages(ctx context.Context, userID string, from, to time.Time) (*DailyAverages, error)
	// HourlyBreakdown 开始时间按 tz 换算后的小时分组
	HourlyBreakdown(ctx context.Context, userID, tz string, from, to time.Time) ([]HourRow, error)
	DayOfWeekBreakdown(ctx context.Context, userID string, from, to time.Time) ([]DayOfWeekRow, error)
	AlarmStatusStats(ctx context.Context, userID string, since, until time.Time) ([]AlarmStatusRow, error)
	AlarmEffectiveness(ctx context.Context, userID string, since, until time.Time) (*AlarmEffectiveness, error)
}

type dashboardRepo struct {
	db *gorm.DB
}

// NewDashboardRepo 创建 DashboardRepository 实例
func NewDashboardRepo(db *gorm.DB) DashboardRepository {
	return &dashboardRepo{db: db}
}

// counted 统计范围：用户 + 日期闭区间 + 非草稿
func (r *dashboardRepo) counted(ctx context.Context, userID string, from, to time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.TimesheetEntry{}).
		Where("user_id = ? AND date >= ? AND date <= ? AND status IN ?",
			userID, formatDate(from), formatDate(to), model.CountedStatuses)
}

func (r *dashboardRepo) Totals(ctx context.Context, userID string, from, to time.Time) (*PeriodTotals, error) {
	var totals PeriodTotals
	err := r.counted(ctx, userID, from, to).
		Select(`COALESCE(SUM(hours_worked), 0) AS total_hours,
			COALESCE(SUM(calculated_pay), 0) AS total_pay,
			COUNT(*) AS entry_count`).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func (r *dashboardRepo) DailyBreakdown(ctx context.Context, userID string, from, to time.Time) ([]DailyRow, error) {
	var rows []DailyRow
	err := r.counted(ctx, userID, from, to).
		Select(`to_char(date, 'YYYY-MM-DD') AS date,
			EXTRACT(DOW FROM date)::int AS day_of_week,
			COALESCE(SUM(hours_worked), 0) AS total_hours,
			COALESCE(SUM(calculated_pay), 0) AS total_pay,
			COUNT(*) AS entry_count,
			string_agg(DISTINCT category, ',') AS category_list`).
		Group("to_char(date, 'YYYY-MM-DD'), EXTRACT(DOW FROM date)").
		Order("1 ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Categories = splitList(rows[i].CategoryList)
	}
	return rows, nil
}

func (r *dashboardRepo) WeeklyBreakdown(ctx context.Context, userID string, from, to time.Time) ([]WeeklyRow, error) {
	var rows []WeeklyRow
	err := r.counted(ctx, userID, from, to).
		Select(`EXTRACT(ISOYEAR FROM date)::int AS year,
			EXTRACT(WEEK FROM date)::int AS week,
			COALESCE(SUM(hours_worked), 0) AS total_hours,
			COALESCE(SUM(calculated_pay), 0) AS total_pay,
			COUNT(*) AS entry_count`).
		Group("EXTRACT(ISOYEAR FROM date), EXTRACT(WEEK FROM date)").
		Order("1 ASC, 2 ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *dashboardRepo) GroupBreakdown(ctx context.Context, userID, field string, from, to time.Time) ([]GroupRow, error) {
	column := "project"
	if field == "category" {
		column = "category"
	}
	var rows []GroupRow
	err := r.counted(ctx, userID, from, to).
		Select(column + ` AS key,
			COALESCE(SUM(hours_worked), 0) AS total_hours,
			COALESCE(SUM(calculated_pay), 0) AS total_pay,
			COUNT(*) AS entry_count`).
		Group(column).
		Order("total_hours DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *dashboardRepo) DailyAverages(ctx context.Context, userID string, from, to time.Time) (*DailyAverages, error) {
	var avg DailyAverages
	daily := r.counted(ctx, userID, from, to).
		Select("date, SUM(hours_worked) AS daily_hours, SUM(calculated_pay) AS daily_pay").
		Group("date")
	err := r.db.WithContext(ctx).
		Table("(?) AS d", daily).
		Select(`COALESCE(AVG(daily_hours), 0) AS avg_hours_per_day,
			COALESCE(AVG(daily_pay), 0) AS avg_pay_per_day,
			COUNT(*) AS total_days_worked`).
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	return &avg, nil
}

func (r *dashboardRepo) HourlyBreakdown(ctx context.Context, userID, tz string, from, to time.Time) ([]HourRow, error) {
	if tz == "" {
		tz = "UTC"
	}
	var rows []HourRow
	err := r.counted(ctx, userID, from, to).
		Select(`EXTRACT(HOUR FROM start_time AT TIME ZONE ?)::int AS hour,
			COALESCE(SUM(hours_worked), 0) AS total_hours,
			COUNT(*) AS entry_count`, tz).
		Group("1").
		Order("total_hours DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *dashboardRepo) DayOfWeekBreakdown(ctx context.Context, userID string, from, to time.Time) ([]DayOfWeekRow, error) {
	var rows []DayOfWeekRow
	err := r.counted(ctx, userID, from, to).
		Select(`EXTRACT(DOW FROM date)::int AS day_of_week,
			COALESCE(SUM(hours_worked), 0) AS total_hours,
			COALESCE(AVG(hours_worked), 0) AS avg_session_length,
			COUNT(*) AS entry_count`).
		Group("1").
		Order("1 ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *dashboardRepo) AlarmStatusStats(ctx context.Context, userID string, since, until time.Time) ([]AlarmStatusRow, error) {
	var rows []AlarmStatusRow
	err := r.db.WithContext(ctx).
		Model(&model.Alarm{}).
		Select(`status, COUNT(*) AS count, COALESCE(AVG(snooze_count), 0) AS avg_snooze_count`).
		Where("user_id = ? AND created_at >= ? AND created_at <= ?", userID, since, until).
		Group("status").
		Order("status ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *dashboardRepo) AlarmEffectiveness(ctx context.Context, userID string, since, until time.Time) (*AlarmEffectiveness, error) {
	var eff AlarmEffectiveness
	err := r.db.WithContext(ctx).
		Model(&model.Alarm{}).
		Select(`COUNT(*) FILTER (WHERE status = ?) AS triggered,
			COUNT(*) FILTER (WHERE status = ?) AS dismissed`,
			model.AlarmStatusTriggered, model.AlarmStatusDismissed).
		Where("user_id = ? AND created_at >= ? AND created_at <= ?", userID, since, until).
		Scan(&eff).Error
	if err != nil {
		return nil, err
	}
	return &eff, nil
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
