package handler

import "github.com/KhalilA93/TImesheetTracker/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth          *AuthHandler
	PasswordReset *PasswordResetHandler
	Entry         *EntryHandler
	Export        *ExportHandler
	Alarm         *AlarmHandler
	Settings      *SettingsHandler
	Dashboard     *DashboardHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:          NewAuthHandler(svc.Auth),
		PasswordReset: NewPasswordResetHandler(svc.PasswordReset),
		Entry:         NewEntryHandler(svc.Timesheet),
		Export:        NewExportHandler(svc.Export),
		Alarm:         NewAlarmHandler(svc.Alarm),
		Settings:      NewSettingsHandler(svc.Settings),
		Dashboard:     NewDashboardHandler(svc.Dashboard),
	}
}
