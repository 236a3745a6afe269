// Package risk 风控闸门测试
package risk

import (
	"strings"
	"testing"

	"arbitrage-sim-lab/internal/config"
	"arbitrage-sim-lab/internal/core/model"
)

func testSignal(price, size float64) *model.Signal {
	return &model.Signal{
		ID: "s-1", Symbol: "BTC-USD", Side: model.SideBuy,
		VenueBuy: "v0", VenueSell: "v1",
		PriceBuy: price, PriceSell: price, Size: size,
	}
}

func defaultRisk() config.RiskConfig {
	return config.RiskConfig{MaxExposure: 100000, MaxDrawdownPct: 0.10, MaxDailyLoss: 5000}
}

func TestKillSwitch_Latch(t *testing.T) {
	k := NewKillSwitch(true)
	if ok, reason := k.Check(); !ok || reason != "OK" {
		t.Fatalf("trigger 前: %v %s", ok, reason)
	}
	k.Trigger()
	k.Trigger()
	ok, reason := k.Check()
	if ok || !strings.Contains(reason, "triggered") {
		t.Fatalf("trigger 后: %v %s", ok, reason)
	}
	k.Reset()
	k.Reset()
	if ok, reason := k.Check(); !ok || reason != "OK" {
		t.Fatalf("reset 后: %v %s", ok, reason)
	}
}

func TestKillSwitch_DisabledBypass(t *testing.T) {
	k := NewKillSwitch(false)
	k.Trigger()
	if ok, reason := k.Check(); !ok || reason != "OK" {
		t.Fatalf("禁用时应始终放行: %v %s", ok, reason)
	}
	if !k.IsTriggered() {
		t.Fatalf("锁存状态应保留")
	}
}

func TestLimits_Exposure(t *testing.T) {
	l := NewLimits(defaultRisk(), 100000)

	// 50000×0.5×2 = 50000 <= 100000
	if ok, reason := l.Check(testSignal(50000, 0.5), 100000); !ok || reason != ReasonOK {
		t.Fatalf("应通过: %s", reason)
	}
	// 50000×1.1×2 = 110000 > 100000
	ok, reason := l.Check(testSignal(50000, 1.1), 100000)
	if ok || !strings.Contains(strings.ToLower(reason), "exposure") {
		t.Fatalf("应因敞口拒绝: %v %s", ok, reason)
	}

	l.Update(60000, 100000, 0)
	if ok, _ := l.Check(testSignal(50000, 0.5), 100000); ok {
		t.Fatalf("已有敞口 60000 + 50000 应被拒绝")
	}
}

func TestLimits_DrawdownAndDailyLoss(t *testing.T) {
	l := NewLimits(defaultRisk(), 100000)
	sig := testSignal(100, 0.01)

	ok, reason := l.Check(sig, 85000)
	if ok || !strings.Contains(reason, "Drawdown") {
		t.Fatalf("回撤 15%% 应被拒绝: %v %s", ok, reason)
	}
	if ok, _ := l.Check(sig, 95000); !ok {
		t.Fatalf("回撤 5%% 应通过")
	}

	l.Update(0, 100000, -6000)
	ok, reason = l.Check(sig, 100000)
	if ok || !strings.Contains(reason, "Daily loss") {
		t.Fatalf("单日亏损应被拒绝: %v %s", ok, reason)
	}
}

func TestLimits_ReasonKeepsFractions(t *testing.T) {
	l := NewLimits(config.RiskConfig{MaxExposure: 150.5, MaxDrawdownPct: 0.5, MaxDailyLoss: 0.5}, 1000)

	ok, reason := l.Check(testSignal(100, 1), 1000)
	if ok || reason != "Exposure 200.00 exceeds max 150.50" {
		t.Fatalf("敞口原因=%q", reason)
	}

	l.Update(0, 1000, -1)
	ok, reason = l.Check(testSignal(10, 1), 1000)
	if ok || reason != "Daily loss 1.00 exceeds max 0.50" {
		t.Fatalf("单日亏损原因=%q", reason)
	}
}

func TestLimits_FirstFailureWins(t *testing.T) {
	l := NewLimits(defaultRisk(), 100000)
	l.Update(0, 100000, -9000)
	// 敞口、回撤、单日亏损同时违规时只返回敞口原因
	ok, reason := l.Check(testSignal(50000, 2), 50000)
	if ok || !strings.HasPrefix(reason, "Exposure") {
		t.Fatalf("reason=%s", reason)
	}
}

func TestLimits_ExposureRatio(t *testing.T) {
	l := NewLimits(config.RiskConfig{MaxExposureRatio: 0.5, MaxDrawdownPct: 0.1, MaxDailyLoss: 5000}, 100000)
	if ok, _ := l.Check(testSignal(100, 250), 100000); !ok {
		t.Fatalf("名义价值 50000 恰好等于上限应通过")
	}
	if ok, _ := l.Check(testSignal(100, 250.01), 100000); ok {
		t.Fatalf("名义价值超过 0.5 × 初始资金应被拒绝")
	}
	st := l.State()
	if st.Exposure != 0 || st.PeakCapital != 100000 || st.DailyPnL != 0 {
		t.Fatalf("初始状态=%+v", st)
	}
}
