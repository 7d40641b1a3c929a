package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/model"
	"github.com/KhalilA93/TImesheetTracker/internal/repository"
	pkgerrors "github.com/KhalilA93/TImesheetTracker/pkg/errors"
)

// SettingsService 用户设置业务接口
// 所有方法都以显式的 userID 查找该用户自己的设置，首次访问时按默认值创建
type SettingsService interface {
	Get(ctx context.Context, userID string) (*dto.SettingsResponse, error)
	Update(ctx context.Context, userID string, patch *dto.SettingsPatch) (*dto.UpdateSettingsResponse, error)
	UpdateKey(ctx context.Context, userID, key string, value json.RawMessage) (*dto.UpdateSettingsResponse, error)

	GetPayRate(ctx context.Context, userID string) (*dto.PayRateResponse, error)
	UpdatePayRate(ctx context.Context, userID string, rate float64) (*dto.PayRateResponse, error)
	GetNotifications(ctx context.Context, userID string) (*model.NotificationPrefs, error)
	UpdateNotifications(ctx context.Context, userID string, patch *dto.NotificationsPatch) (*model.NotificationPrefs, error)
	GetColors(ctx context.Context, userID string) (model.ColorScheme, error)
	UpdateColors(ctx context.Context, userID string, colors map[string]string) (model.ColorScheme, error)
	GetOvertime(ctx context.Context, userID string) (*dto.OvertimeResponse, error)
	UpdateOvertime(ctx context.Context, userID string, patch *dto.OvertimePatch) (*dto.OvertimeResponse, error)
	CalculatePay(ctx context.Context, userID string, req *dto.CalculatePayRequest) (*dto.CalculatePayResponse, error)

	Reset(ctx context.Context, userID string) (*dto.UpdateSettingsResponse, error)
	Export(ctx context.Context, userID string) (*dto.ExportSettingsResponse, error)
	Import(ctx context.Context, userID string, patch *dto.SettingsPatch) (*dto.UpdateSettingsResponse, error)

	// RecalculateEntries 按当前计薪规则重算该用户全部工时记录，返回实际改动条数
	RecalculateEntries(ctx context.Context, userID string) (int, error)
}

type settingsService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewSettingsService 创建 SettingsService 实例
func NewSettingsService(repo *repository.Repository, logger *zap.Logger) SettingsService {
	return &settingsService{repo: repo, logger: logger, now: time.Now}
}

// loadSettings 读取用户设置，不存在时按默认值创建
// 并发首次访问时 Create 冲突被忽略，随后重新读取已存在的那一行
func loadSettings(ctx context.Context, repo *repository.Repository, userID string) (*model.UserSettings, error) {
	settings, err := repo.Settings.GetByUser(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := repo.Settings.Create(ctx, model.DefaultUserSettings(userID)); err != nil {
		return nil, err
	}
	return repo.Settings.GetByUser(ctx, userID)
}

// ────────────────────── Get ──────────────────────

func (s *settingsService) Get(ctx context.Context, userID string) (*dto.SettingsResponse, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return toSettingsResponse(settings), nil
}

// ────────────────────── Update ──────────────────────

func (s *settingsService) Update(ctx context.Context, userID string, patch *dto.SettingsPatch) (*dto.UpdateSettingsResponse, error) {
	settings, info, err := s.mutate(ctx, userID, func(st *model.UserSettings) error {
		applySettingsPatch(st, patch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.UpdateSettingsResponse{Settings: *toSettingsResponse(settings), RecalculationInfo: info}, nil
}

// UpdateKey 单项更新：把 key 的点号路径展开成嵌套 JSON 再按 SettingsPatch 严格解码
func (s *settingsService) UpdateKey(ctx context.Context, userID, key string, value json.RawMessage) (*dto.UpdateSettingsResponse, error) {
	patch, err := patchFromKey(key, value)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, userID, patch)
}

func patchFromKey(key string, value json.RawMessage) (*dto.SettingsPatch, error) {
	key = strings.TrimSpace(key)
	trimmed := bytes.TrimSpace(value)
	if key == "" {
		return nil, pkgerrors.NewValidationError("设置项名称不能为空")
	}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, pkgerrors.NewValidationError("value 不能为空")
	}

	parts := strings.Split(key, ".")
	var nested interface{} = json.RawMessage(trimmed)
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "" {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("设置项名称无效: %s", key))
		}
		nested = map[string]interface{}{parts[i]: nested}
	}
	raw, err := json.Marshal(nested)
	if err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("value 无法序列化: %v", err))
	}

	var patch dto.SettingsPatch
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("设置项 %s 无效: %v", key, err))
	}
	return &patch, nil
}

// ────────────────────── Pay rate ──────────────────────

func (s *settingsService) GetPayRate(ctx context.Context, userID string) (*dto.PayRateResponse, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return toPayRateResponse(settings, nil), nil
}

func (s *settingsService) UpdatePayRate(ctx context.Context, userID string, rate float64) (*dto.PayRateResponse, error) {
	settings, info, err := s.mutate(ctx, userID, func(st *model.UserSettings) error {
		st.DefaultPayRate = rate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toPayRateResponse(settings, info), nil
}

// ────────────────────── Notifications ──────────────────────

func (s *settingsService) GetNotifications(ctx context.Context, userID string) (*model.NotificationPrefs, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return &settings.Notifications, nil
}

func (s *settingsService) UpdateNotifications(ctx context.Context, userID string, patch *dto.NotificationsPatch) (*model.NotificationPrefs, error) {
	settings, _, err := s.mutate(ctx, userID, func(st *model.UserSettings) error {
		applyNotificationsPatch(&st.Notifications, patch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &settings.Notifications, nil
}

// ────────────────────── Colors ──────────────────────

func (s *settingsService) GetColors(ctx context.Context, userID string) (model.ColorScheme, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return settings.ColorScheme, nil
}

// UpdateColors 合并到现有配色，未提及的分类保持不变
func (s *settingsService) UpdateColors(ctx context.Context, userID string, colors map[string]string) (model.ColorScheme, error) {
	settings, _, err := s.mutate(ctx, userID, func(st *model.UserSettings) error {
		mergeColors(st, colors)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settings.ColorScheme, nil
}

// ────────────────────── Overtime ──────────────────────

func (s *settingsService) GetOvertime(ctx context.Context, userID string) (*dto.OvertimeResponse, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return toOvertimeResponse(settings, nil), nil
}

func (s *settingsService) UpdateOvertime(ctx context.Context, userID string, patch *dto.OvertimePatch) (*dto.OvertimeResponse, error) {
	settings, info, err := s.mutate(ctx, userID, func(st *model.UserSettings) error {
		if patch.OvertimeThreshold != nil {
			st.OvertimeThreshold = *patch.OvertimeThreshold
		}
		if patch.OvertimeMultiplier != nil {
			st.OvertimeMultiplier = *patch.OvertimeMultiplier
		}
		if patch.WeeklyOvertimeThreshold != nil {
			st.WeeklyOvertimeThreshold = *patch.WeeklyOvertimeThreshold
		}
		if patch.ApplyOvertimeToEntries != nil {
			st.ApplyOvertimeToEntries = *patch.ApplyOvertimeToEntries
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toOvertimeResponse(settings, info), nil
}

// CalculatePay 试算：始终按加班规则计算，不写库
func (s *settingsService) CalculatePay(ctx context.Context, userID string, req *dto.CalculatePayRequest) (*dto.CalculatePayResponse, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	hours := *req.HoursWorked
	rate := EffectiveRate(req.PayRate, settings.DefaultPayRate)
	b := SplitOvertime(hours, rate, settings.OvertimeThreshold, settings.OvertimeMultiplier)

	return &dto.CalculatePayResponse{
		HoursWorked:        hours,
		PayRate:            rate,
		RegularHours:       b.RegularHours,
		OvertimeHours:      b.OvertimeHours,
		RegularPay:         b.RegularPay,
		OvertimePay:        b.OvertimePay,
		TotalPay:           b.Total(),
		OvertimeThreshold:  settings.OvertimeThreshold,
		OvertimeMultiplier: settings.OvertimeMultiplier,
	}, nil
}

// ────────────────────── Reset / Export / Import ──────────────────────

// Reset 恢复默认值；费率随之变化时同样触发重算
func (s *settingsService) Reset(ctx context.Context, userID string) (*dto.UpdateSettingsResponse, error) {
	settings, info, err := s.mutate(ctx, userID, func(st *model.UserSettings) error {
		created := st.CreatedAt
		*st = *model.DefaultUserSettings(userID)
		st.CreatedAt = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.UpdateSettingsResponse{Settings: *toSettingsResponse(settings), RecalculationInfo: info}, nil
}

func (s *settingsService) Export(ctx context.Context, userID string) (*dto.ExportSettingsResponse, error) {
	settings, err := loadSettings(ctx, s.repo, userID)
	if err != nil {
		s.logger.Error("查询用户设置失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return &dto.ExportSettingsResponse{
		ExportedAt: s.now().UTC(),
		Settings:   toSettingsPatch(settings),
	}, nil
}

func (s *settingsService) Import(ctx context.Context, userID string, patch *dto.SettingsPatch) (*dto.UpdateSettingsResponse, error) {
	return s.Update(ctx, userID, patch)
}

// ────────────────────── Recalculation ──────────────────────

func (s *settingsService) RecalculateEntries(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		settings, err := loadSettings(ctx, tx, userID)
		if err != nil {
			return err
		}
		count, err = recalculateEntries(ctx, tx, userID, NewPayPolicy(settings), true)
		return err
	})
	if err != nil {
		s.logger.Error("重算工时记录薪资失败", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}
	return count, nil
}

// recalculateEntries 重新计算薪资，变化小于容差的记录跳过写入
// includeOverrides=false 时只处理未设置单条费率的记录
func recalculateEntries(ctx context.Context, repo *repository.Repository, userID string, policy PayPolicy, includeOverrides bool) (int, error) {
	entries, err := repo.Entry.ListForRecalculation(ctx, userID, includeOverrides)
	if err != nil {
		return 0, fmt.Errorf("查询待重算记录失败: %w", err)
	}

	updated := 0
	for i := range entries {
		e := &entries[i]
		newPay := policy.Pay(e.HoursWorked, e.PayRateOverride)
		if !payChanged(e.CalculatedPay, newPay) {
			continue
		}
		if err := repo.Entry.UpdatePay(ctx, e.EntryID, newPay); err != nil {
			return updated, fmt.Errorf("更新记录 %s 薪资失败: %w", e.EntryID, err)
		}
		updated++
	}
	return updated, nil
}

// mutate 在同一事务中完成：读取设置 → 修改 → 校验 → 保存 → 按需重算
// 重算失败时设置修改一并回滚
func (s *settingsService) mutate(ctx context.Context, userID string, fn func(st *model.UserSettings) error) (*model.UserSettings, *dto.RecalculationInfo, error) {
	var (
		result *model.UserSettings
		info   *dto.RecalculationInfo
	)

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		settings, err := loadSettings(ctx, tx, userID)
		if err != nil {
			return err
		}
		before := NewPayPolicy(settings)

		if err := fn(settings); err != nil {
			return err
		}
		settings.UserID = userID
		if err := settings.Validate(); err != nil {
			return err
		}
		if err := tx.Settings.Update(ctx, settings); err != nil {
			return fmt.Errorf("保存用户设置失败: %w", err)
		}

		after := NewPayPolicy(settings)
		rateChanged := payChanged(before.DefaultRate, after.DefaultRate)
		overtimeChanged := overtimePolicyChanged(before, after)
		if rateChanged || overtimeChanged {
			n, err := recalculateEntries(ctx, tx, userID, after, overtimeChanged)
			if err != nil {
				return err
			}
			info = &dto.RecalculationInfo{
				PayRateChanged:      rateChanged,
				OldPayRate:          before.DefaultRate,
				NewPayRate:          after.DefaultRate,
				EntriesRecalculated: n,
			}
		}
		result = settings
		return nil
	})
	if err != nil {
		if _, ok := pkgerrors.AsValidation(err); !ok {
			s.logger.Error("更新用户设置失败", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, nil, err
	}

	if info != nil {
		s.logger.Info("费率变更后已重算工时记录",
			zap.String("user_id", userID),
			zap.Float64("old_rate", info.OldPayRate),
			zap.Float64("new_rate", info.NewPayRate),
			zap.Int("entries_recalculated", info.EntriesRecalculated),
		)
	}
	return result, info, nil
}

// overtimePolicyChanged 加班规则变化是否影响已有记录的薪资
// 带单条费率的记录同样受影响，因此调用方需包含这些记录
func overtimePolicyChanged(before, after PayPolicy) bool {
	if before.ApplyOvertime != after.ApplyOvertime {
		return true
	}
	if !after.ApplyOvertime {
		return false
	}
	return before.OvertimeThreshold != after.OvertimeThreshold ||
		before.OvertimeMultiplier != after.OvertimeMultiplier
}

// ── 内部辅助方法 ──

func applySettingsPatch(st *model.UserSettings, p *dto.SettingsPatch) {
	if p == nil {
		return
	}
	setFloat(&st.DefaultPayRate, p.DefaultPayRate)
	setString(&st.Currency, p.Currency)
	setString(&st.CurrencySymbol, p.CurrencySymbol)
	setString(&st.TimeFormat, p.TimeFormat)
	setString(&st.DateFormat, p.DateFormat)
	setInt(&st.WeekStartsOn, p.WeekStartsOn)
	setString(&st.Timezone, p.Timezone)
	setString(&st.DefaultCalendarView, p.DefaultCalendarView)
	setBool(&st.ShowWeekends, p.ShowWeekends)
	setString(&st.BusinessHoursStart, p.BusinessHoursStart)
	setString(&st.BusinessHoursEnd, p.BusinessHoursEnd)
	setFloat(&st.DefaultSessionDuration, p.DefaultSessionDuration)
	setFloat(&st.DefaultBreakDuration, p.DefaultBreakDuration)
	setBool(&st.AutoCalculateBreaks, p.AutoCalculateBreaks)
	setFloat(&st.MinimumSessionDuration, p.MinimumSessionDuration)
	setFloat(&st.OvertimeThreshold, p.OvertimeThreshold)
	setFloat(&st.OvertimeMultiplier, p.OvertimeMultiplier)
	setFloat(&st.WeeklyOvertimeThreshold, p.WeeklyOvertimeThreshold)
	setBool(&st.ApplyOvertimeToEntries, p.ApplyOvertimeToEntries)
	setString(&st.Theme, p.Theme)

	applyNotificationsPatch(&st.Notifications, p.Notifications)
	mergeColors(st, p.ColorScheme)

	if r := p.Reporting; r != nil {
		setBool(&st.Reporting.IncludeBreaks, r.IncludeBreaks)
		setBool(&st.Reporting.GroupByProject, r.GroupByProject)
		setBool(&st.Reporting.ShowHourlyBreakdown, r.ShowHourlyBreakdown)
		setString(&st.Reporting.DefaultExportFormat, r.DefaultExportFormat)
	}
	if pr := p.Profile; pr != nil {
		setString(&st.Profile.FirstName, pr.FirstName)
		setString(&st.Profile.LastName, pr.LastName)
		setString(&st.Profile.Email, pr.Email)
		setString(&st.Profile.Company, pr.Company)
		setString(&st.Profile.Position, pr.Position)
	}
}

func applyNotificationsPatch(n *model.NotificationPrefs, p *dto.NotificationsPatch) {
	if p == nil {
		return
	}
	setBool(&n.Browser, p.BrowserNotifications)
	setBool(&n.Sound, p.SoundNotifications)
	setInt(&n.DefaultReminderMinutes, p.DefaultReminderMinutes)
	setString(&n.DailySummaryTime, p.DailySummaryTime)
	setInt(&n.WeeklySummaryDay, p.WeeklySummaryDay)
}

func mergeColors(st *model.UserSettings, colors map[string]string) {
	if len(colors) == 0 {
		return
	}
	merged := st.ColorScheme.Clone()
	for k, v := range colors {
		merged[k] = v
	}
	st.ColorScheme = merged
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func toSettingsResponse(st *model.UserSettings) *dto.SettingsResponse {
	return &dto.SettingsResponse{UserSettings: *st, FormattedPayRate: st.FormattedPayRate()}
}

func toPayRateResponse(st *model.UserSettings, info *dto.RecalculationInfo) *dto.PayRateResponse {
	return &dto.PayRateResponse{
		DefaultPayRate:    st.DefaultPayRate,
		Currency:          st.Currency,
		CurrencySymbol:    st.CurrencySymbol,
		FormattedPayRate:  st.FormattedPayRate(),
		RecalculationInfo: info,
	}
}

func toOvertimeResponse(st *model.UserSettings, info *dto.RecalculationInfo) *dto.OvertimeResponse {
	return &dto.OvertimeResponse{
		OvertimeThreshold:       st.OvertimeThreshold,
		OvertimeMultiplier:      st.OvertimeMultiplier,
		WeeklyOvertimeThreshold: st.WeeklyOvertimeThreshold,
		ApplyOvertimeToEntries:  st.ApplyOvertimeToEntries,
		RecalculationInfo:       info,
	}
}

// toSettingsPatch 导出格式：完整字段，可直接用于导入
func toSettingsPatch(st *model.UserSettings) dto.SettingsPatch {
	c := *st
	return dto.SettingsPatch{
		DefaultPayRate:          &c.DefaultPayRate,
		Currency:                &c.Currency,
		CurrencySymbol:          &c.CurrencySymbol,
		TimeFormat:              &c.TimeFormat,
		DateFormat:              &c.DateFormat,
		WeekStartsOn:            &c.WeekStartsOn,
		Timezone:                &c.Timezone,
		DefaultCalendarView:     &c.DefaultCalendarView,
		ShowWeekends:            &c.ShowWeekends,
		BusinessHoursStart:      &c.BusinessHoursStart,
		BusinessHoursEnd:        &c.BusinessHoursEnd,
		DefaultSessionDuration:  &c.DefaultSessionDuration,
		DefaultBreakDuration:    &c.DefaultBreakDuration,
		AutoCalculateBreaks:     &c.AutoCalculateBreaks,
		MinimumSessionDuration:  &c.MinimumSessionDuration,
		OvertimeThreshold:       &c.OvertimeThreshold,
		OvertimeMultiplier:      &c.OvertimeMultiplier,
		WeeklyOvertimeThreshold: &c.WeeklyOvertimeThreshold,
		ApplyOvertimeToEntries:  &c.ApplyOvertimeToEntries,
		Notifications: &dto.NotificationsPatch{
			BrowserNotifications:   &c.Notifications.Browser,
			SoundNotifications:     &c.Notifications.Sound,
			DefaultReminderMinutes: &c.Notifications.DefaultReminderMinutes,
			DailySummaryTime:       &c.Notifications.DailySummaryTime,
			WeeklySummaryDay:       &c.Notifications.WeeklySummaryDay,
		},
		Theme:       &c.Theme,
		ColorScheme: c.ColorScheme.Clone(),
		Reporting: &dto.ReportingPatch{
			IncludeBreaks:       &c.Reporting.IncludeBreaks,
			GroupByProject:      &c.Reporting.GroupByProject,
			ShowHourlyBreakdown: &c.Reporting.ShowHourlyBreakdown,
			DefaultExportFormat: &c.Reporting.DefaultExportFormat,
		},
		Profile: &dto.ProfilePatch{
			FirstName: &c.Profile.FirstName,
			LastName:  &c.Profile.LastName,
			Email:     &c.Profile.Email,
			Company:   &c.Profile.Company,
			Position:  &c.Profile.Position,
		},
	}
}
