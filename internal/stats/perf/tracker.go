// Package perf 计算回测绩效：收益、胜率、最大回撤与夏普比率。
package perf

import (
	"math"
)

// Summary 回测摘要
// JSON 字段与报告文件约定一致；没有足够样本时 sharpe_ratio 为 null。
type Summary struct {
	InitialCapital float64  `json:"initial_capital"`
	FinalCapital   float64  `json:"final_capital"`
	TotalReturn    float64  `json:"total_return"`
	TotalReturnPct float64  `json:"total_return_pct"`
	TradeCount     int      `json:"trade_count"`
	WinCount       int      `json:"win_count"`
	MaxDrawdownPct float64  `json:"max_drawdown_pct"`
	SharpeRatio    *float64 `json:"sharpe_ratio"`
}

// TradeStats 逐笔交易统计
type TradeStats struct {
	// Count 交易数
	Count int
	// WinRate 胜率 p
	WinRate float64
	// AvgProfit 平均盈利 R（资金）
	AvgProfit float64
	// AvgLoss 平均亏损 L（资金，绝对值）
	AvgLoss float64
	// Expectancy 期望值 = p × R - (1 - p) × L
	Expectancy float64
}

// Tracker 绩效追踪器（单写者）
type Tracker struct {
	initial float64

	// equity 资金曲线，首个点为初始资金
	equity []float64
	// returns 逐笔收益率（相对交易前资金）
	returns []float64

	trades  int
	wins    int
	sumWin  float64
	sumLoss float64
	lossCnt int
}

// NewTracker 创建绩效追踪器
// 参数 initialCapital: 初始资金
func NewTracker(initialCapital float64) *Tracker {
	return &Tracker{
		initial: initialCapital,
		equity:  []float64{initialCapital},
	}
}

// Mark 记录一个资金曲线点（通常每个窗口一次）
func (t *Tracker) Mark(capital float64) {
	t.equity = append(t.equity, capital)
}

// RecordTrade 记录一笔交易
// 参数 before: 交易前资金
// 参数 after: 交易后资金
// 资金增加计为盈利。
func (t *Tracker) RecordTrade(before, after float64) {
	pnl := after - before
	t.trades++
	if pnl > 0 {
		t.wins++
		t.sumWin += pnl
	} else {
		t.lossCnt++
		t.sumLoss += math.Abs(pnl)
	}
	if before != 0 {
		t.returns = append(t.returns, pnl/before)
	}
}

// Equity 返回资金曲线拷贝
func (t *Tracker) Equity() []float64 {
	out := make([]float64, len(t.equity))
	copy(out, t.equity)
	return out
}

// Summary 计算回测摘要
// 最大回撤基于资金曲线峰值。
func (t *Tracker) Summary() Summary {
	final := t.equity[len(t.equity)-1]
	s := FromResults(t.initial, final, t.trades, t.wins, t.returns)
	if dd := MaxDrawdown(t.equity); dd > s.MaxDrawdownPct {
		s.MaxDrawdownPct = dd
	}
	return s
}

// TradeStats 返回逐笔交易统计
func (t *Tracker) TradeStats() TradeStats {
	out := TradeStats{Count: t.trades}
	if t.trades == 0 {
		return out
	}
	out.WinRate = float64(t.wins) / float64(t.trades)
	if t.wins > 0 {
		out.AvgProfit = t.sumWin / float64(t.wins)
	}
	if t.lossCnt > 0 {
		out.AvgLoss = t.sumLoss / float64(t.lossCnt)
	}
	p := out.WinRate
	out.Expectancy = p*out.AvgProfit - (1-p)*out.AvgLoss
	return out
}

// FromResults 由最终结果计算摘要
// 没有资金曲线时，最大回撤取 |min(0, total_return_pct)|。
// 夏普比率 = mean / std × √252（总体标准差），样本少于 2 个或 std=0 时为 nil。
func FromResults(initial, final float64, trades, wins int, returns []float64) Summary {
	total := final - initial
	var pct float64
	if initial != 0 {
		pct = total / initial
	}
	return Summary{
		InitialCapital: initial,
		FinalCapital:   final,
		TotalReturn:    total,
		TotalReturnPct: pct,
		TradeCount:     trades,
		WinCount:       wins,
		MaxDrawdownPct: math.Abs(math.Min(0, pct)),
		SharpeRatio:    Sharpe(returns),
	}
}

// Sharpe 年化夏普比率
func Sharpe(returns []float64) *float64 {
	n := len(returns)
	if n < 2 {
		return nil
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(n)

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(n))
	if std <= 0 {
		return nil
	}
	v := mean / std * math.Sqrt(252)
	return &v
}

// MaxDrawdown 资金曲线最大回撤比例
// 公式: max((peak - v) / peak)
func MaxDrawdown(equity []float64) float64 {
	var peak, maxDD float64
	for i, v := range equity {
		if i == 0 || v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
