package router

import (
	"net/http"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KhalilA93/TImesheetTracker/config"
	"github.com/KhalilA93/TImesheetTracker/internal/api/handler"
	"github.com/KhalilA93/TImesheetTracker/internal/api/middleware"
	"github.com/KhalilA93/TImesheetTracker/pkg/jwt"
)

// Deps 路由依赖；Redis 未启用时 Limiter 与 Blacklist 传 nil
type Deps struct {
	Config    *config.Config
	Handler   *handler.Handler
	JWT       *jwt.Manager
	Limiter   middleware.Limiter
	Blacklist middleware.Blacklist
	Logger    *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	handler.RegisterValidators()

	cfg := d.Config
	h := d.Handler

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(ginzap.RecoveryWithZap(d.Logger, true))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authLimit := middleware.RateLimit(d.Limiter, cfg.RateLimit.AuthLimit, cfg.RateLimit.Window)
	resetLimit := middleware.RateLimit(d.Limiter, cfg.RateLimit.PasswordResetLimit, cfg.RateLimit.Window)

	api := r.Group("/api")
	{
		// 认证模块（无需认证）
		auth := api.Group("/auth")
		{
			auth.POST("/register", authLimit, h.Auth.Register)
			auth.POST("/login", authLimit, h.Auth.Login)
			auth.POST("/refresh", authLimit, h.Auth.Refresh)
		}

		// 密码重置（无需认证，单独限流）
		reset := api.Group("/password-reset", resetLimit)
		{
			reset.POST("/request", h.PasswordReset.Request)
			reset.GET("/verify/:token", h.PasswordReset.Verify)
			reset.POST("/reset/:token", h.PasswordReset.Reset)
		}

		// 需要认证的路由
		authorized := api.Group("")
		authorized.Use(middleware.JWTAuth(d.JWT, d.Blacklist))
		{
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/logout", h.Auth.Logout)

			// 工时记录模块
			entries := authorized.Group("/timesheet-entries")
			{
				entries.GET("", h.Entry.List)
				entries.GET("/calendar", h.Entry.Calendar)
				entries.GET("/calendar.ics", h.Export.ExportICS)
				entries.GET("/totals", h.Entry.Totals)
				entries.GET("/projects/summary", h.Entry.ProjectSummary)
				entries.GET("/export", h.Export.ExportXLSX)
				entries.POST("/import", h.Entry.ImportICS)
				entries.PATCH("/bulk", h.Entry.BulkUpdate)
				entries.GET("/:id", h.Entry.Get)
				entries.POST("", h.Entry.Create)
				entries.PUT("/:id", h.Entry.Update)
				entries.DELETE("/:id", h.Entry.Delete)
			}

			// 提醒模块
			alarms := authorized.Group("/alarms")
			{
				alarms.GET("", h.Alarm.List)
				alarms.GET("/triggerable", h.Alarm.Triggerable)
				alarms.GET("/upcoming", h.Alarm.Upcoming)
				alarms.GET("/entry/:entryId", h.Alarm.ByEntry)
				alarms.PATCH("/bulk/dismiss", h.Alarm.BulkDismiss)
				alarms.GET("/:id", h.Alarm.Get)
				alarms.POST("", h.Alarm.Create)
				alarms.PUT("/:id", h.Alarm.Update)
				alarms.DELETE("/:id", h.Alarm.Delete)
				alarms.POST("/:id/trigger", h.Alarm.Trigger)
				alarms.POST("/:id/dismiss", h.Alarm.Dismiss)
				alarms.POST("/:id/snooze", h.Alarm.Snooze)
				alarms.POST("/:id/reactivate", h.Alarm.Reactivate)
			}

			// 用户设置模块
			settings := authorized.Group("/settings")
			{
				settings.GET("", h.Settings.Get)
				settings.PUT("", h.Settings.Update)
				settings.GET("/pay-rate", h.Settings.GetPayRate)
				settings.PUT("/pay-rate", h.Settings.UpdatePayRate)
				settings.GET("/notifications", h.Settings.GetNotifications)
				settings.PUT("/notifications", h.Settings.UpdateNotifications)
				settings.GET("/colors", h.Settings.GetColors)
				settings.PUT("/colors", h.Settings.UpdateColors)
				settings.GET("/overtime", h.Settings.GetOvertime)
				settings.PUT("/overtime", h.Settings.UpdateOvertime)
				settings.POST("/calculate-pay", h.Settings.CalculatePay)
				settings.POST("/reset", h.Settings.Reset)
				settings.GET("/export", h.Settings.Export)
				settings.POST("/import", h.Settings.Import)
				settings.PUT("/:key", h.Settings.UpdateKey)
			}

			// 仪表盘模块
			dashboard := authorized.Group("/dashboard")
			{
				dashboard.GET("", h.Dashboard.Overview)
				dashboard.GET("/overview", h.Dashboard.Overview)
				dashboard.GET("/weekly", h.Dashboard.Weekly)
				dashboard.GET("/monthly", h.Dashboard.Monthly)
				dashboard.GET("/insights", h.Dashboard.Insights)
				dashboard.GET("/alarms/stats", h.Dashboard.AlarmStats)
			}
		}
	}

	return r
}
