package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/model"
	"github.com/KhalilA93/TImesheetTracker/internal/repository"
	pkgerrors "github.com/KhalilA93/TImesheetTracker/pkg/errors"
)

const (
	overviewRecentEntries  = 5
	overviewUpcomingAlarms = 5
	overviewUpcomingHours  = 24
)

// DashboardService 仪表盘统计业务接口
// 今日/本周/本月等区间按用户时区与 week_starts_on 计算
type DashboardService interface {
	Overview(ctx context.Context, userID string) (*dto.OverviewResponse, error)
	Weekly(ctx context.Context, userID string, req *dto.WeeklySummaryRequest) (*dto.WeeklySummaryResponse, error)
	Monthly(ctx context.Context, userID string, req *dto.MonthlySummaryRequest) (*dto.MonthlySummaryResponse, error)
	Insights(ctx context.Context, userID string, days int) (*dto.InsightsResponse, error)
	AlarmStats(ctx context.Context, userID string, days int) (*dto.AlarmStatsResponse, error)
}

type dashboardService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewDashboardService 创建 DashboardService 实例
func NewDashboardService(repo *repository.Repository, logger *zap.Logger) DashboardService {
	return &dashboardService{repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── Overview ──────────────────────

func (s *dashboardService) Overview(ctx context.Context, userID string) (*dto.OverviewResponse, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	now := s.now()
	today := localDate(now, settings.Location())
	weekStart, weekEnd := weekBounds(today, settings.WeekStartsOn)
	monthStart, monthEnd := monthBounds(today.Year(), today.Month())

	resp := &dto.OverviewResponse{
		Settings: dto.OverviewSettings{
			DefaultPayRate:   settings.DefaultPayRate,
			FormattedPayRate: settings.FormattedPayRate(),
			Currency:         settings.Currency,
			Timezone:         settings.Timezone,
		},
		GeneratedAt: now.UTC(),
	}

	periods := []struct {
		dst      *dto.Totals
		from, to time.Time
	}{
		{&resp.Totals.Today, today, today},
		{&resp.Totals.ThisWeek, weekStart, weekEnd},
		{&resp.Totals.ThisMonth, monthStart, monthEnd},
	}
	for _, p := range periods {
		t, err := s.repo.Dashboard.Totals(ctx, userID, p.from, p.to)
		if err != nil {
			s.logger.Error("统计工时合计失败", zap.String("user_id", userID), zap.Error(err))
			return nil, err
		}
		*p.dst = *toTotals(t)
	}

	recent, err := s.repo.Entry.ListRecent(ctx, userID, overviewRecentEntries)
	if err != nil {
		s.logger.Error("查询最近工时记录失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	resp.RecentEntries = make([]dto.EntryResponse, 0, len(recent))
	for i := range recent {
		resp.RecentEntries = append(resp.RecentEntries, toEntryResponse(&recent[i], settings.CurrencySymbol))
	}

	upcoming, err := s.repo.Alarm.ListUpcoming(ctx, userID, now, now.Add(overviewUpcomingHours*time.Hour))
	if err != nil {
		s.logger.Error("查询即将到来的提醒失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if len(upcoming) > overviewUpcomingAlarms {
		upcoming = upcoming[:overviewUpcomingAlarms]
	}
	resp.UpcomingAlarms = toAlarmResponses(upcoming, now)

	active, err := s.repo.Alarm.ListTriggerable(ctx, userID, now)
	if err != nil {
		s.logger.Error("查询待触发提醒失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	resp.ActiveAlarms = toAlarmResponses(active, now)

	return resp, nil
}

// ────────────────────── Weekly / Monthly ──────────────────────

func (s *dashboardService) Weekly(ctx context.Context, userID string, req *dto.WeeklySummaryRequest) (*dto.WeeklySummaryResponse, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	var start time.Time
	if req.StartDate != "" {
		start, err = time.Parse(dto.DateLayout, req.StartDate)
		if err != nil {
			return nil, pkgerrors.NewValidationError("start_date 格式应为 YYYY-MM-DD")
		}
	} else {
		start, _ = weekBounds(localDate(s.now(), settings.Location()), settings.WeekStartsOn)
	}
	end := start.AddDate(0, 0, 6)

	totals, err := s.repo.Dashboard.Totals(ctx, userID, start, end)
	if err != nil {
		return nil, s.fail("统计周合计失败", userID, err)
	}
	daily, err := s.repo.Dashboard.DailyBreakdown(ctx, userID, start, end)
	if err != nil {
		return nil, s.fail("按日统计失败", userID, err)
	}
	projects, err := s.repo.Dashboard.GroupBreakdown(ctx, userID, "project", start, end)
	if err != nil {
		return nil, s.fail("按项目统计失败", userID, err)
	}

	resp := &dto.WeeklySummaryResponse{
		WeekStart:        start.Format(dto.DateLayout),
		WeekEnd:          end.Format(dto.DateLayout),
		Totals:           *toTotals(totals),
		DailyBreakdown:   make([]dto.DailyBreakdownItem, 0, len(daily)),
		ProjectBreakdown: toGroupItems(projects),
	}
	for _, d := range daily {
		resp.DailyBreakdown = append(resp.DailyBreakdown, dto.DailyBreakdownItem{
			Date:       d.Date,
			DayOfWeek:  d.DayOfWeek,
			TotalHours: d.TotalHours,
			TotalPay:   d.TotalPay,
			EntryCount: d.EntryCount,
			Categories: d.Categories,
		})
	}
	return resp, nil
}

func (s *dashboardService) Monthly(ctx context.Context, userID string, req *dto.MonthlySummaryRequest) (*dto.MonthlySummaryResponse, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	today := localDate(s.now(), settings.Location())
	year, month := today.Year(), today.Month()
	if req.Year > 0 {
		year = req.Year
	}
	if req.Month > 0 {
		month = time.Month(req.Month)
	}
	start, end := monthBounds(year, month)

	totals, err := s.repo.Dashboard.Totals(ctx, userID, start, end)
	if err != nil {
		return nil, s.fail("统计月合计失败", userID, err)
	}
	weekly, err := s.repo.Dashboard.WeeklyBreakdown(ctx, userID, start, end)
	if err != nil {
		return nil, s.fail("按周统计失败", userID, err)
	}
	categories, err := s.repo.Dashboard.GroupBreakdown(ctx, userID, "category", start, end)
	if err != nil {
		return nil, s.fail("按分类统计失败", userID, err)
	}

	resp := &dto.MonthlySummaryResponse{
		MonthStart:        start.Format(dto.DateLayout),
		MonthEnd:          end.Format(dto.DateLayout),
		Totals:            *toTotals(totals),
		WeeklyBreakdown:   make([]dto.WeeklyBreakdownItem, 0, len(weekly)),
		CategoryBreakdown: toGroupItems(categories),
	}
	for _, w := range weekly {
		resp.WeeklyBreakdown = append(resp.WeeklyBreakdown, dto.WeeklyBreakdownItem{
			Year:       w.Year,
			Week:       w.Week,
			TotalHours: w.TotalHours,
			TotalPay:   w.TotalPay,
			EntryCount: w.EntryCount,
		})
	}
	return resp, nil
}

// ────────────────────── Insights ──────────────────────

func (s *dashboardService) Insights(ctx context.Context, userID string, days int) (*dto.InsightsResponse, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if days <= 0 {
		days = 30
	}

	to := localDate(s.now(), settings.Location())
	from := to.AddDate(0, 0, -(days - 1))

	avg, err := s.repo.Dashboard.DailyAverages(ctx, userID, from, to)
	if err != nil {
		return nil, s.fail("统计每日平均失败", userID, err)
	}
	hourly, err := s.repo.Dashboard.HourlyBreakdown(ctx, userID, settings.Location().String(), from, to)
	if err != nil {
		return nil, s.fail("按小时统计失败", userID, err)
	}
	weekdays, err := s.repo.Dashboard.DayOfWeekBreakdown(ctx, userID, from, to)
	if err != nil {
		return nil, s.fail("按星期统计失败", userID, err)
	}

	resp := &dto.InsightsResponse{
		Period:             dto.Period{StartDate: from.Format(dto.DateLayout), EndDate: to.Format(dto.DateLayout), Days: days},
		HourlyBreakdown:    make([]dto.HourlyBreakdownItem, 0, len(hourly)),
		DayOfWeekBreakdown: make([]dto.DayOfWeekBreakdownItem, 0, len(weekdays)),
	}
	if avg != nil {
		resp.Insights = dto.ProductivityInsights{
			AvgHoursPerDay:  avg.AvgHoursPerDay,
			AvgPayPerDay:    avg.AvgPayPerDay,
			TotalDaysWorked: avg.TotalDaysWorked,
		}
	}
	for _, h := range hourly {
		resp.HourlyBreakdown = append(resp.HourlyBreakdown, dto.HourlyBreakdownItem{
			Hour:       h.Hour,
			TotalHours: h.TotalHours,
			EntryCount: h.EntryCount,
		})
	}
	for _, d := range weekdays {
		resp.DayOfWeekBreakdown = append(resp.DayOfWeekBreakdown, dto.DayOfWeekBreakdownItem{
			DayOfWeek:        d.DayOfWeek,
			TotalHours:       d.TotalHours,
			AvgSessionLength: d.AvgSessionLength,
			EntryCount:       d.EntryCount,
		})
	}
	return resp, nil
}

// ────────────────────── Alarm stats ──────────────────────

func (s *dashboardService) AlarmStats(ctx context.Context, userID string, days int) (*dto.AlarmStatsResponse, error) {
	if days <= 0 {
		days = 30
	}
	until := s.now()
	since := until.AddDate(0, 0, -days)

	rows, err := s.repo.Dashboard.AlarmStatusStats(ctx, userID, since, until)
	if err != nil {
		return nil, s.fail("统计提醒状态失败", userID, err)
	}
	eff, err := s.repo.Dashboard.AlarmEffectiveness(ctx, userID, since, until)
	if err != nil {
		return nil, s.fail("统计提醒有效性失败", userID, err)
	}

	resp := &dto.AlarmStatsResponse{
		Period: dto.Period{
			StartDate: since.UTC().Format(dto.DateLayout),
			EndDate:   until.UTC().Format(dto.DateLayout),
			Days:      days,
		},
		AlarmStats: make([]dto.AlarmStatusItem, 0, len(model.AlarmStatuses)),
	}
	for _, r := range rows {
		resp.AlarmStats = append(resp.AlarmStats, dto.AlarmStatusItem{
			Status:         r.Status,
			Count:          r.Count,
			AvgSnoozeCount: r.AvgSnoozeCount,
		})
	}
	if eff != nil {
		resp.Effectiveness = dto.AlarmEffectiveness{Triggered: eff.Triggered, Dismissed: eff.Dismissed}
	}
	return resp, nil
}

// ── 内部辅助方法 ──

func (s *dashboardService) fail(msg, userID string, err error) error {
	s.logger.Error(msg, zap.String("user_id", userID), zap.Error(err))
	return err
}

// localDate 用户时区下的当天日期（以 UTC 零点表示，与 DATE 列比较）
func localDate(now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekBounds 包含 day 的一周，weekStartsOn 0=周日
func weekBounds(day time.Time, weekStartsOn int) (time.Time, time.Time) {
	offset := (int(day.Weekday()) - weekStartsOn + 7) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

func monthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

func toGroupItems(rows []repository.GroupRow) []dto.GroupBreakdownItem {
	items := make([]dto.GroupBreakdownItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, dto.GroupBreakdownItem{
			Key:        r.Key,
			TotalHours: r.TotalHours,
			TotalPay:   r.TotalPay,
			EntryCount: r.EntryCount,
		})
	}
	return items
}
