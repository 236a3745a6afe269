// Package risk 实现下单前的风控闸门：额度限制与熔断开关。
// 两个闸门相互独立，按 Limits -> KillSwitch 的顺序检查。
// 拒绝是正常的控制流结果，不是错误。
package risk

import (
	"fmt"

	"arbitrage-sim-lab/internal/config"
	"arbitrage-sim-lab/internal/core/model"
)

// ReasonOK 通过时返回的原因
const ReasonOK = "OK"

// Limits 额度限制闸门（单写者）
// 状态只通过 Update 修改，不从外部状态推断。
type Limits struct {
	// maxExposure 最大敞口（名义价值）
	maxExposure float64
	// maxDrawdownPct 最大回撤比例，如 0.10
	maxDrawdownPct float64
	// maxDailyLoss 最大单日亏损（正数）
	maxDailyLoss float64

	// exposure 当前敞口
	exposure float64
	// peakCapital 资金峰值，只增不减
	peakCapital float64
	// dailyPnL 当日已实现盈亏
	dailyPnL float64
}

// State 风控状态快照
type State struct {
	Exposure    float64 `json:"exposure"`
	PeakCapital float64 `json:"peak_capital"`
	DailyPnL    float64 `json:"daily_pnl"`
}

// NewLimits 创建额度限制
// 参数 cfg: 风控配置；MaxExposure 为 0 时按 MaxExposureRatio × initialCapital 计算
// 参数 initialCapital: 初始资金，同时作为资金峰值的初值
func NewLimits(cfg config.RiskConfig, initialCapital float64) *Limits {
	return &Limits{
		maxExposure:    cfg.MaxExposureFor(initialCapital),
		maxDrawdownPct: cfg.MaxDrawdownPct,
		maxDailyLoss:   cfg.MaxDailyLoss,
		exposure:       0,
		peakCapital:    initialCapital,
		dailyPnL:       0,
	}
}

// Check 检查信号是否允许下单
// 依次检查敞口、回撤、单日亏损；返回第一个失败项的原因，不做聚合。
// 参数 sig: 待检查信号
// 参数 currentCapital: 当前资金
func (l *Limits) Check(sig *model.Signal, currentCapital float64) (bool, string) {
	if sig == nil {
		return false, "No signal"
	}

	// 敞口：当前敞口 + 两条腿名义价值
	prospective := l.exposure + sig.Notional()
	if prospective > l.maxExposure {
		return false, fmt.Sprintf("Exposure %.2f exceeds max %.2f", prospective, l.maxExposure)
	}

	// 回撤：(峰值 - 当前) / 峰值
	if dd := l.Drawdown(currentCapital); dd > l.maxDrawdownPct {
		return false, fmt.Sprintf("Drawdown %.1f%% exceeds max %.1f%%", dd*100, l.maxDrawdownPct*100)
	}

	// 单日亏损
	if l.dailyPnL < -l.maxDailyLoss {
		return false, fmt.Sprintf("Daily loss %.2f exceeds max %.2f", -l.dailyPnL, l.maxDailyLoss)
	}

	return true, ReasonOK
}

// Update 结算后更新风控状态（唯一的修改入口）
// 资金峰值只上调不下调；敞口与当日盈亏直接覆盖为最新值。
func (l *Limits) Update(exposure, capital, dailyPnL float64) {
	l.exposure = exposure
	l.dailyPnL = dailyPnL
	if capital > l.peakCapital {
		l.peakCapital = capital
	}
}

// Drawdown 相对资金峰值的回撤比例
func (l *Limits) Drawdown(currentCapital float64) float64 {
	if l.peakCapital <= 0 {
		return 0
	}
	return (l.peakCapital - currentCapital) / l.peakCapital
}

// State 返回当前状态快照
func (l *Limits) State() State {
	return State{
		Exposure:    l.exposure,
		PeakCapital: l.peakCapital,
		DailyPnL:    l.dailyPnL,
	}
}
