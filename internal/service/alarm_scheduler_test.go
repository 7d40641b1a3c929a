package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KhalilA93/TImesheetTracker/config"
	"github.com/KhalilA93/TImesheetTracker/internal/dto"
)

// countingAlarmService 只实现 Sweep，其余方法不会被调度器调用
type countingAlarmService struct {
	AlarmService
	sweeps int
	err    error
}

func (c *countingAlarmService) Sweep(context.Context) (*dto.SweepResult, error) {
	c.sweeps++
	if c.err != nil {
		return nil, c.err
	}
	return &dto.SweepResult{Triggered: 1}, nil
}

type mockLocker struct {
	held     bool
	err      error
	released int
}

func (m *mockLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	if m.held {
		return nil, false, nil
	}
	return func() { m.released++ }, true, nil
}

func TestNewAlarmScheduler_InvalidSpec(t *testing.T) {
	_, err := NewAlarmScheduler(&config.AlarmConfig{SweepSpec: "not a cron"}, &countingAlarmService{}, nil, testLogger)
	if err == nil {
		t.Error("非法 cron 表达式应返回错误")
	}
}

func TestAlarmScheduler_Run(t *testing.T) {
	cfg := &config.AlarmConfig{SweepSpec: "@every 1m", SweepTimeout: time.Second}

	t.Run("无锁直接执行", func(t *testing.T) {
		svc := &countingAlarmService{}
		s, err := NewAlarmScheduler(cfg, svc, nil, testLogger)
		if err != nil {
			t.Fatalf("创建调度器失败: %v", err)
		}
		s.run()
		if svc.sweeps != 1 {
			t.Errorf("期望执行 1 次扫描，实际 %d", svc.sweeps)
		}
	})

	t.Run("获得锁后执行并释放", func(t *testing.T) {
		svc := &countingAlarmService{}
		locker := &mockLocker{}
		s, _ := NewAlarmScheduler(cfg, svc, locker, testLogger)
		s.run()
		if svc.sweeps != 1 || locker.released != 1 {
			t.Errorf("期望执行并释放锁，实际 sweeps=%d released=%d", svc.sweeps, locker.released)
		}
	})

	t.Run("锁被其他实例持有时跳过", func(t *testing.T) {
		svc := &countingAlarmService{}
		s, _ := NewAlarmScheduler(cfg, svc, &mockLocker{held: true}, testLogger)
		s.run()
		if svc.sweeps != 0 {
			t.Errorf("期望跳过扫描，实际 %d", svc.sweeps)
		}
	})

	t.Run("锁服务异常时降级执行", func(t *testing.T) {
		svc := &countingAlarmService{err: errors.New("sweep failed")}
		s, _ := NewAlarmScheduler(cfg, svc, &mockLocker{err: errors.New("redis down")}, testLogger)
		s.run()
		if svc.sweeps != 1 {
			t.Errorf("期望降级执行 1 次扫描，实际 %d", svc.sweeps)
		}
	})
}
