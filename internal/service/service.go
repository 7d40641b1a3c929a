package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/KhalilA93/TImesheetTracker/config"
	"github.com/KhalilA93/TImesheetTracker/internal/repository"
	"github.com/KhalilA93/TImesheetTracker/pkg/jwt"
	"github.com/KhalilA93/TImesheetTracker/pkg/mail"
)

// TokenBlacklist 已注销 Token 的存储（Redis 实现）
// 未配置 Redis 时传 nil，此时登出与刷新轮换只在客户端生效
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// Service 所有 Service 的聚合入口
type Service struct {
	Auth          AuthService
	PasswordReset PasswordResetService
	Settings      SettingsService
	Timesheet     TimesheetService
	Alarm         AlarmService
	Dashboard     DashboardService
	Export        ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	mailer mail.Sender,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:          NewAuthService(repo, jwtMgr, blacklist, logger),
		PasswordReset: NewPasswordResetService(cfg, repo, mailer, logger),
		Settings:      NewSettingsService(repo, logger),
		Timesheet:     NewTimesheetService(repo, logger),
		Alarm:         NewAlarmService(repo, logger),
		Dashboard:     NewDashboardService(repo, logger),
		Export:        NewExportService(repo, logger),
	}
}
