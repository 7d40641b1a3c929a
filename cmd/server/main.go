package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/KhalilA93/TImesheetTracker/config"
	"github.com/KhalilA93/TImesheetTracker/internal/api/handler"
	"github.com/KhalilA93/TImesheetTracker/internal/api/middleware"
	"github.com/KhalilA93/TImesheetTracker/internal/api/router"
	"github.com/KhalilA93/TImesheetTracker/internal/repository"
	"github.com/KhalilA93/TImesheetTracker/internal/service"
	"github.com/KhalilA93/TImesheetTracker/pkg/database"
	"github.com/KhalilA93/TImesheetTracker/pkg/jwt"
	applogger "github.com/KhalilA93/TImesheetTracker/pkg/logger"
	"github.com/KhalilA93/TImesheetTracker/pkg/mail"
	"github.com/KhalilA93/TImesheetTracker/pkg/redis"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "配置文件路径，默认查找 ./config/config.yaml")
	pflag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("mail_driver", cfg.Mail.Driver),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	// 接口变量保持 nil，避免把 nil 指针包装成非 nil 接口
	var (
		blacklist service.TokenBlacklist
		limiter   middleware.Limiter
		locker    service.SweepLocker
	)
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单与分布式限流将降级为单实例", zap.Error(err))
		rdb = nil
	} else {
		blacklist, limiter, locker = rdb, rdb, rdb
	}

	// 5. 初始化 JWT 管理器与邮件发送器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	mailer, err := mail.NewSender(context.Background(), &cfg.Mail, cfg.Server.FrontendURL, logger)
	if err != nil {
		logger.Fatal("初始化邮件发送失败", zap.Error(err))
	}

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, blacklist, mailer, logger)
	h := handler.NewHandler(svc)

	// 7. 初始化路由
	deps := router.Deps{
		Config:    cfg,
		Handler:   h,
		JWT:       jwtMgr,
		Limiter:   limiter,
		Blacklist: blacklist,
		Logger:    logger,
	}
	engine := router.Setup(deps)

	// 8. 提醒后台扫描
	var scheduler *service.AlarmScheduler
	if cfg.Alarm.SweepEnabled {
		scheduler, err = service.NewAlarmScheduler(&cfg.Alarm, svc.Alarm, locker, logger)
		if err != nil {
			logger.Fatal("初始化提醒扫描失败", zap.Error(err))
		}
		scheduler.Start()
	}

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if scheduler != nil {
		scheduler.Stop(ctx)
	}

	// 关闭数据库连接
	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}

	// 关闭 Redis 连接
	if rdb != nil {
		_ = rdb.Close()
	}

	logger.Info("服务器已关闭")
}
