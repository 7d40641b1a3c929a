package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/KhalilA93/TImesheetTracker/config"
)

const alarmSweepLock = "alarm-sweep"

// SweepLocker 多实例部署时保证同一时刻只有一个实例执行扫描（Redis 实现）
type SweepLocker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// AlarmScheduler 按 cron 表达式周期执行提醒扫描
type AlarmScheduler struct {
	cron    *cron.Cron
	alarms  AlarmService
	locker  SweepLocker
	timeout time.Duration
	logger  *zap.Logger
}

// NewAlarmScheduler 创建调度器；locker 为 nil 时不加分布式锁
func NewAlarmScheduler(cfg *config.AlarmConfig, alarms AlarmService, locker SweepLocker, logger *zap.Logger) (*AlarmScheduler, error) {
	timeout := cfg.SweepTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &AlarmScheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		alarms:  alarms,
		locker:  locker,
		timeout: timeout,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(cfg.SweepSpec, s.run); err != nil {
		return nil, fmt.Errorf("提醒扫描 cron 表达式无效 %q: %w", cfg.SweepSpec, err)
	}
	return s, nil
}

// Start 启动调度（非阻塞）
func (s *AlarmScheduler) Start() {
	s.cron.Start()
	s.logger.Info("提醒扫描已启动")
}

// Stop 停止调度并等待正在执行的扫描结束
func (s *AlarmScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("等待提醒扫描结束超时")
	}
}

// run 单次扫描，带超时
func (s *AlarmScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, alarmSweepLock, s.timeout)
		if err != nil {
			s.logger.Warn("获取提醒扫描锁失败，本次以单实例方式执行", zap.Error(err))
		} else if !ok {
			return
		} else {
			defer release()
		}
	}

	start := time.Now()
	result, err := s.alarms.Sweep(ctx)
	if err != nil {
		s.logger.Error("提醒扫描失败", zap.Error(err))
		return
	}
	if result.Reactivated > 0 || result.Triggered > 0 {
		s.logger.Info("提醒扫描完成",
			zap.Int("reactivated", result.Reactivated),
			zap.Int("triggered", result.Triggered),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
