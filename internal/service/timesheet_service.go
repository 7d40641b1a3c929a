package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/model"
	"github.com/KhalilA93/TImesheetTracker/internal/repository"
	pkgerrors "github.com/KhalilA93/TImesheetTracker/pkg/errors"
)

const icsMaxImportEntries = 1000

var ErrEntryNotFound = errors.New("工时记录不存在")

// 覆盖全部日期的区间，用于未指定范围的合计
var (
	minDate = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// TimesheetService 工时记录业务接口
// 每次写入都会用该用户自己的设置重新推导 hours_worked 与 calculated_pay
type TimesheetService interface {
	List(ctx context.Context, userID string, req *dto.EntryListRequest) ([]dto.EntryResponse, int64, error)
	Calendar(ctx context.Context, userID string, from, to time.Time) ([]dto.CalendarEvent, error)
	Totals(ctx context.Context, userID string, from, to *time.Time) (*dto.Totals, error)
	ProjectSummary(ctx context.Context, userID string, from, to *time.Time) ([]dto.ProjectSummaryItem, error)
	GetByID(ctx context.Context, userID, id string) (*dto.EntryResponse, error)
	Create(ctx context.Context, userID string, req *dto.CreateEntryRequest) (*dto.CreateEntryResponse, error)
	Update(ctx context.Context, userID, id string, req *dto.UpdateEntryRequest) (*dto.EntryResponse, error)
	Delete(ctx context.Context, userID, id string) error
	BulkUpdate(ctx context.Context, userID string, req *dto.BulkUpdateEntriesRequest) (*dto.BulkResult, error)
	ImportICS(ctx context.Context, userID string, reader io.Reader, opts *dto.ImportICSOptions) (*dto.ImportICSResponse, error)
}

type timesheetService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewTimesheetService 创建 TimesheetService 实例
func NewTimesheetService(repo *repository.Repository, logger *zap.Logger) TimesheetService {
	return &timesheetService{repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── 查询 ──────────────────────

func (s *timesheetService) List(ctx context.Context, userID string, req *dto.EntryListRequest) ([]dto.EntryResponse, int64, error) {
	from, to, err := ParseOptionalRange(req.OptionalDateRangeQuery)
	if err != nil {
		return nil, 0, err
	}

	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, err
	}

	entries, total, err := s.repo.Entry.List(ctx, userID, repository.EntryFilter{
		StartDate: from,
		EndDate:   to,
		Project:   strings.TrimSpace(req.Project),
		Category:  req.Category,
		Status:    req.Status,
		Offset:    req.GetOffset(),
		Limit:     req.GetLimit(),
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		s.logger.Error("查询工时记录列表失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, err
	}

	items := make([]dto.EntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toEntryResponse(&entries[i], settings.CurrencySymbol))
	}
	return items, total, nil
}

func (s *timesheetService) Calendar(ctx context.Context, userID string, from, to time.Time) ([]dto.CalendarEvent, error) {
	if to.Before(from) {
		return nil, pkgerrors.NewValidationError("end_date 不能早于 start_date")
	}

	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	entries, err := s.repo.Entry.ListByDateRange(ctx, userID, from, to)
	if err != nil {
		s.logger.Error("查询日历记录失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	events := make([]dto.CalendarEvent, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		color := e.Color
		if color == "" {
			color = settings.ColorFor(e.Category)
		}
		events = append(events, dto.CalendarEvent{
			ID:              e.EntryID,
			Title:           e.Title(settings.CurrencySymbol),
			Start:           e.StartTime,
			End:             e.EndTime,
			BackgroundColor: color,
			BorderColor:     color,
			Resource: dto.CalendarResource{
				EntryID:       e.EntryID,
				HoursWorked:   e.HoursWorked,
				CalculatedPay: e.CalculatedPay,
				Project:       e.Project,
				Category:      e.Category,
				Description:   e.Description,
				Status:        e.Status,
			},
		})
	}
	return events, nil
}

// Totals 合计只统计计入状态的记录；区间内无记录时返回全零
func (s *timesheetService) Totals(ctx context.Context, userID string, from, to *time.Time) (*dto.Totals, error) {
	f, t := minDate, maxDate
	if from != nil {
		f = *from
	}
	if to != nil {
		t = *to
	}

	totals, err := s.repo.Dashboard.Totals(ctx, userID, f, t)
	if err != nil {
		s.logger.Error("统计工时合计失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return toTotals(totals), nil
}

func (s *timesheetService) ProjectSummary(ctx context.Context, userID string, from, to *time.Time) ([]dto.ProjectSummaryItem, error) {
	rows, err := s.repo.Entry.ProjectSummary(ctx, userID, from, to)
	if err != nil {
		s.logger.Error("按项目汇总失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	items := make([]dto.ProjectSummaryItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, dto.ProjectSummaryItem{
			Project:    r.Project,
			TotalHours: r.TotalHours,
			TotalPay:   r.TotalPay,
			EntryCount: r.EntryCount,
			Categories: r.Categories(),
		})
	}
	return items, nil
}

func (s *timesheetService) GetByID(ctx context.Context, userID, id string) (*dto.EntryResponse, error) {
	entry, err := s.getEntry(ctx, s.repo, userID, id)
	if err != nil {
		return nil, err
	}
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	resp := toEntryResponse(entry, settings.CurrencySymbol)
	return &resp, nil
}

// ────────────────────── Create ──────────────────────

func (s *timesheetService) Create(ctx context.Context, userID string, req *dto.CreateEntryRequest) (*dto.CreateEntryResponse, error) {
	date, err := time.Parse(dto.DateLayout, req.Date)
	if err != nil {
		return nil, pkgerrors.NewValidationError("date 格式应为 YYYY-MM-DD")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, pkgerrors.NewValidationError("end_time 必须晚于 start_time")
	}

	var (
		entry *model.TimesheetEntry
		alarm *model.Alarm
		st    *model.UserSettings
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		settings, err := loadSettings(ctx, tx, userID)
		if err != nil {
			return err
		}
		st = settings

		entry = &model.TimesheetEntry{
			UserID:          userID,
			Date:            date,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			PayRateOverride: normalizeOverride(req.PayRateOverride),
			Description:     strings.TrimSpace(req.Description),
			Project:         strings.TrimSpace(req.Project),
			Category:        defaultString(req.Category, model.CategoryRegular),
			Status:          defaultString(req.Status, model.EntryStatusConfirmed),
			IsBreakTime:     req.IsBreakTime,
		}
		entry.Color = defaultString(req.Color, settings.ColorFor(entry.Category))
		deriveEntry(entry, NewPayPolicy(settings))

		if err := tx.Entry.Create(ctx, entry); err != nil {
			return fmt.Errorf("创建工时记录失败: %w", err)
		}

		if req.Reminder != nil {
			alarm = newEntryReminder(entry, req.Reminder, settings)
			if err := tx.Alarm.Create(ctx, alarm); err != nil {
				return fmt.Errorf("创建记录提醒失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("创建工时记录失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	resp := &dto.CreateEntryResponse{Entry: toEntryResponse(entry, st.CurrencySymbol)}
	if alarm != nil {
		a := toAlarmResponse(alarm, s.now())
		resp.Alarm = &a
	}
	return resp, nil
}

// ────────────────────── Update ──────────────────────

func (s *timesheetService) Update(ctx context.Context, userID, id string, req *dto.UpdateEntryRequest) (*dto.EntryResponse, error) {
	var (
		entry *model.TimesheetEntry
		st    *model.UserSettings
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		e, err := s.getEntry(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		entry = e

		timesChanged := false
		overrideChanged := false

		if req.Date != nil {
			d, err := time.Parse(dto.DateLayout, *req.Date)
			if err != nil {
				return pkgerrors.NewValidationError("date 格式应为 YYYY-MM-DD")
			}
			e.Date = d
		}
		if req.StartTime != nil && !req.StartTime.Equal(e.StartTime) {
			e.StartTime = *req.StartTime
			timesChanged = true
		}
		if req.EndTime != nil && !req.EndTime.Equal(e.EndTime) {
			e.EndTime = *req.EndTime
			timesChanged = true
		}
		if !e.EndTime.After(e.StartTime) {
			return pkgerrors.NewValidationError("end_time 必须晚于 start_time")
		}
		if req.PayRateOverride != nil {
			e.PayRateOverride = normalizeOverride(req.PayRateOverride)
			overrideChanged = true
		}
		setString(&e.Description, req.Description)
		setString(&e.Project, req.Project)
		setString(&e.Category, req.Category)
		setString(&e.Status, req.Status)
		setBool(&e.IsBreakTime, req.IsBreakTime)
		setString(&e.Color, req.Color)

		settings, err := loadSettings(ctx, tx, userID)
		if err != nil {
			return err
		}
		st = settings

		// 起止时间变化 → 重新计算时长并强制重算薪资
		if timesChanged || overrideChanged || payPending(e) {
			deriveEntry(e, NewPayPolicy(settings))
		}

		if err := tx.Entry.Update(ctx, e); err != nil {
			return fmt.Errorf("更新工时记录失败: %w", err)
		}
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			s.logger.Error("更新工时记录失败", zap.String("entry_id", id), zap.Error(err))
		}
		return nil, err
	}

	resp := toEntryResponse(entry, st.CurrencySymbol)
	return &resp, nil
}

// ────────────────────── Delete ──────────────────────

// Delete 同一事务内先删除关联提醒再删除记录
func (s *timesheetService) Delete(ctx context.Context, userID, id string) error {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := s.getEntry(ctx, tx, userID, id); err != nil {
			return err
		}
		if err := tx.Alarm.DeleteByEntry(ctx, id); err != nil {
			return fmt.Errorf("删除关联提醒失败: %w", err)
		}
		if err := tx.Entry.Delete(ctx, userID, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEntryNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrEntryNotFound) {
			s.logger.Error("删除工时记录失败", zap.String("entry_id", id), zap.Error(err))
		}
		return err
	}

	s.logger.Info("删除工时记录", zap.String("entry_id", id), zap.String("user_id", userID))
	return nil
}

// BulkUpdate 批量修改不影响薪资的字段
func (s *timesheetService) BulkUpdate(ctx context.Context, userID string, req *dto.BulkUpdateEntriesRequest) (*dto.BulkResult, error) {
	fields := make(map[string]interface{})
	if u := req.Updates; u != nil {
		if u.Status != nil {
			fields["status"] = *u.Status
		}
		if u.Category != nil {
			fields["category"] = *u.Category
		}
		if u.Project != nil {
			fields["project"] = strings.TrimSpace(*u.Project)
		}
		if u.Description != nil {
			fields["description"] = strings.TrimSpace(*u.Description)
		}
	}
	if len(fields) == 0 {
		return nil, pkgerrors.NewValidationError("updates 至少包含一个可修改字段")
	}

	n, err := s.repo.Entry.BulkUpdate(ctx, userID, req.EntryIDs, fields)
	if err != nil {
		s.logger.Error("批量更新工时记录失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return &dto.BulkResult{ModifiedCount: n}, nil
}

// ────────────────────── ICS 导入 ──────────────────────

// ImportICS 将日历事件导入为工时记录，浮动时间按用户时区解释
func (s *timesheetService) ImportICS(ctx context.Context, userID string, reader io.Reader, opts *dto.ImportICSOptions) (*dto.ImportICSResponse, error) {
	if opts == nil {
		opts = &dto.ImportICSOptions{}
	}

	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	loc := settings.Location()

	parsed, err := ParseICSSessions(reader, loc)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	if len(parsed.Sessions) > icsMaxImportEntries {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("单次最多导入 %d 条记录，实际 %d 条", icsMaxImportEntries, len(parsed.Sessions)))
	}

	category := defaultString(opts.Category, model.CategoryRegular)
	status := defaultString(opts.Status, model.EntryStatusConfirmed)
	policy := NewPayPolicy(settings)

	entries := make([]model.TimesheetEntry, 0, len(parsed.Sessions))
	for _, sess := range parsed.Sessions {
		local := sess.Start.In(loc)
		e := model.TimesheetEntry{
			UserID:      userID,
			Date:        time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC),
			StartTime:   sess.Start.UTC(),
			EndTime:     sess.End.UTC(),
			Description: truncate(sess.Summary, 500),
			Project:     truncate(defaultString(strings.TrimSpace(opts.Project), sess.Location), 100),
			Category:    category,
			Status:      status,
			Color:       settings.ColorFor(category),
		}
		deriveEntry(&e, policy)
		entries = append(entries, e)
	}

	if len(entries) > 0 {
		err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			return tx.Entry.BatchCreate(ctx, entries)
		})
		if err != nil {
			s.logger.Error("导入 ICS 工时记录失败", zap.String("user_id", userID), zap.Error(err))
			return nil, err
		}
	}

	resp := &dto.ImportICSResponse{
		Imported: len(entries),
		Skipped:  parsed.Skipped,
		Errors:   parsed.Problems,
		Entries:  make([]dto.EntryResponse, 0, len(entries)),
	}
	for i := range entries {
		resp.Entries = append(resp.Entries, toEntryResponse(&entries[i], settings.CurrencySymbol))
	}

	s.logger.Info("ICS 导入完成",
		zap.String("user_id", userID),
		zap.Int("imported", resp.Imported),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}

// ── 内部辅助方法 ──

func (s *timesheetService) getEntry(ctx context.Context, repo *repository.Repository, userID, id string) (*model.TimesheetEntry, error) {
	entry, err := repo.Entry.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		s.logger.Error("查询工时记录失败", zap.String("entry_id", id), zap.Error(err))
		return nil, err
	}
	return entry, nil
}

// deriveEntry 推导派生字段：时长取起止时间差，薪资按用户计薪规则计算
func deriveEntry(e *model.TimesheetEntry, policy PayPolicy) {
	e.HoursWorked = HoursBetween(e.StartTime, e.EndTime)
	e.CalculatedPay = policy.Pay(e.HoursWorked, e.PayRateOverride)
}

// payPending 薪资尚未计算：时长缺失，或有时长但薪资仍为 0
func payPending(e *model.TimesheetEntry) bool {
	return e.HoursWorked == 0 || e.CalculatedPay == 0
}

// normalizeOverride 单条费率为 0 表示不设置
func normalizeOverride(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	rate := *v
	return &rate
}

// ParseOptionalRange 解析可选日期区间，两端都给出时要求 start ≤ end
func ParseOptionalRange(q dto.OptionalDateRangeQuery) (from, to *time.Time, err error) {
	if q.StartDate != "" {
		t, err := time.Parse(dto.DateLayout, q.StartDate)
		if err != nil {
			return nil, nil, pkgerrors.NewValidationError("start_date 格式应为 YYYY-MM-DD")
		}
		from = &t
	}
	if q.EndDate != "" {
		t, err := time.Parse(dto.DateLayout, q.EndDate)
		if err != nil {
			return nil, nil, pkgerrors.NewValidationError("end_date 格式应为 YYYY-MM-DD")
		}
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, pkgerrors.NewValidationError("end_date 不能早于 start_date")
	}
	return from, to, nil
}

func isClientError(err error) bool {
	if _, ok := pkgerrors.AsValidation(err); ok {
		return true
	}
	return errors.Is(err, ErrEntryNotFound) || errors.Is(err, ErrAlarmNotFound)
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func truncate(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}

func toEntryResponse(e *model.TimesheetEntry, currencySymbol string) dto.EntryResponse {
	return dto.EntryResponse{
		ID:              e.EntryID,
		Date:            e.Date.Format(dto.DateLayout),
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		HoursWorked:     e.HoursWorked,
		PayRateOverride: e.PayRateOverride,
		CalculatedPay:   e.CalculatedPay,
		Description:     e.Description,
		Project:         e.Project,
		Category:        e.Category,
		Status:          e.Status,
		IsBreakTime:     e.IsBreakTime,
		Color:           e.Color,
		Title:           e.Title(currencySymbol),
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toTotals(t *repository.PeriodTotals) *dto.Totals {
	if t == nil {
		return &dto.Totals{}
	}
	return &dto.Totals{TotalHours: t.TotalHours, TotalPay: t.TotalPay, EntryCount: t.EntryCount}
}
