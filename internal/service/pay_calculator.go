package service

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KhalilA93/TImesheetTracker/internal/model"
)

// payTolerance 重算时小于该差值的变化视为浮点噪声，不写库
const payTolerance = 0.0001

// HoursBetween 起止时间之间的小时数（可为小数）
func HoursBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours()
}

// EffectiveRate 单条费率存在且大于 0 时优先使用，否则使用默认费率
func EffectiveRate(override *float64, defaultRate float64) float64 {
	if override != nil && *override > 0 {
		return *override
	}
	return defaultRate
}

// mulMoney 以十进制计算乘积，避免 0.1 一类费率的二进制误差累积
func mulMoney(factors ...float64) float64 {
	d := decimal.NewFromInt(1)
	for _, f := range factors {
		d = d.Mul(decimal.NewFromFloat(f))
	}
	return d.InexactFloat64()
}

// BasicPay 工时 × 费率
func BasicPay(hours, rate float64) float64 {
	return mulMoney(hours, rate)
}

// OvertimeBreakdown 加班拆分结果
type OvertimeBreakdown struct {
	RegularHours  float64
	OvertimeHours float64
	RegularPay    float64
	OvertimePay   float64
}

// Total 合计薪资
func (b OvertimeBreakdown) Total() float64 {
	return decimal.NewFromFloat(b.RegularPay).Add(decimal.NewFromFloat(b.OvertimePay)).InexactFloat64()
}

// SplitOvertime 超过 threshold 的部分按 rate × multiplier 计算
func SplitOvertime(hours, rate, threshold, multiplier float64) OvertimeBreakdown {
	if hours <= threshold {
		return OvertimeBreakdown{RegularHours: hours, RegularPay: mulMoney(hours, rate)}
	}
	over := decimal.NewFromFloat(hours).Sub(decimal.NewFromFloat(threshold)).InexactFloat64()
	return OvertimeBreakdown{
		RegularHours:  threshold,
		OvertimeHours: over,
		RegularPay:    mulMoney(threshold, rate),
		OvertimePay:   mulMoney(over, rate, multiplier),
	}
}

// OvertimePay 按日加班阈值计算的薪资
func OvertimePay(hours, rate, threshold, multiplier float64) float64 {
	return SplitOvertime(hours, rate, threshold, multiplier).Total()
}

// PayPolicy 某用户的计薪规则，由其设置构造，不依赖任何全局状态
type PayPolicy struct {
	DefaultRate        float64
	ApplyOvertime      bool
	OvertimeThreshold  float64
	OvertimeMultiplier float64
}

// NewPayPolicy 从用户设置构造计薪规则
func NewPayPolicy(s *model.UserSettings) PayPolicy {
	return PayPolicy{
		DefaultRate:        s.DefaultPayRate,
		ApplyOvertime:      s.ApplyOvertimeToEntries,
		OvertimeThreshold:  s.OvertimeThreshold,
		OvertimeMultiplier: s.OvertimeMultiplier,
	}
}

// Pay 计算单条记录的薪资
func (p PayPolicy) Pay(hours float64, override *float64) float64 {
	rate := EffectiveRate(override, p.DefaultRate)
	if p.ApplyOvertime {
		return OvertimePay(hours, rate, p.OvertimeThreshold, p.OvertimeMultiplier)
	}
	return BasicPay(hours, rate)
}

// payChanged 两个金额之差是否超过容差
func payChanged(oldPay, newPay float64) bool {
	return math.Abs(oldPay-newPay) >= payTolerance
}
