// Package strategy 实现跨场所价差检测。
package strategy

import (
	"fmt"
	"math"

	"arbitrage-sim-lab/internal/config"
	"arbitrage-sim-lab/internal/core/model"
)

// Strategy 策略能力：给定市场快照，产生零个或一个信号
type Strategy interface {
	// ID 策略标识
	ID() string
	// Evaluate 评估快照；无信号时返回 nil
	Evaluate(snap *model.MarketSnapshot) *model.Signal
	// Reset 清除策略内部状态
	Reset()
}

// SpreadObserver 每次评估得到的毛价差回调（基点）
type SpreadObserver func(symbol string, grossBps float64)

// Spread 跨场所价差策略
// 在卖一最低的场所买入，在买一最高的场所卖出；
// 扣除两条腿的手续费与滑点后，净价差达到阈值才产生信号。
// 跨调用无状态。
type Spread struct {
	// cfg 策略配置
	cfg config.StrategyConfig
	// costBps 往返成本（基点）
	costBps float64
	// observer 可选的毛价差观察者
	observer SpreadObserver
}

// NewSpread 创建价差策略
// 参数 cfg: 策略配置（阈值、手续费率、滑点、下单量）
func NewSpread(cfg config.StrategyConfig) *Spread {
	if cfg.ID == "" {
		cfg.ID = "spread"
	}
	return &Spread{
		cfg:     cfg,
		costBps: RoundTripCostBps(cfg.FeeRate, cfg.SlippageBps),
	}
}

// Observe 设置毛价差观察者（用于价差分布统计）
func (s *Spread) Observe(fn SpreadObserver) {
	s.observer = fn
}

// ID 实现 Strategy
func (s *Spread) ID() string { return s.cfg.ID }

// Reset 实现 Strategy；本策略无状态
func (s *Spread) Reset() {}

// CostBps 返回往返成本（基点）
func (s *Spread) CostBps() float64 { return s.costBps }

// Evaluate 实现 Strategy
// 返回值：净价差 >= 阈值时返回 Signal，否则返回 nil。
func (s *Spread) Evaluate(snap *model.MarketSnapshot) *model.Signal {
	if snap == nil || snap.Rows < 2 || len(snap.Quotes) < 2 {
		return nil
	}

	buyVenue, sellVenue, ok := pickVenues(snap)
	if !ok {
		return nil
	}
	buyAsk := snap.Quotes[buyVenue].Ask
	sellBid := snap.Quotes[sellVenue].Bid

	gross, ok := calcGrossSpreadBps(buyAsk, sellBid)
	if !ok {
		return nil
	}
	if s.observer != nil {
		s.observer(snap.Symbol, gross)
	}

	net := gross - s.costBps
	if net < s.cfg.MinSpreadBps {
		return nil
	}

	return &model.Signal{
		ID:                fmt.Sprintf("%s-%s-%d", s.cfg.ID, snap.Symbol, snap.At.UnixNano()),
		StrategyID:        s.cfg.ID,
		Symbol:            snap.Symbol,
		Side:              model.SideBuy,
		VenueBuy:          buyVenue,
		VenueSell:         sellVenue,
		PriceBuy:          buyAsk,
		PriceSell:         sellBid,
		Size:              s.cfg.OrderSize,
		ExpectedProfitBps: net,
		Rationale:         fmt.Sprintf("Spread %.1f bps > min %g bps, net %.1f bps after costs", gross, s.cfg.MinSpreadBps, net),
	}
}

// RoundTripCostBps 往返交易成本（基点）
// 公式: 2 × fee_rate × 10000 + 2 × slippage_bps
func RoundTripCostBps(feeRate, slippageBps float64) float64 {
	return 2*feeRate*10000 + 2*slippageBps
}

// pickVenues 选出卖一最低与买一最高的场所
// 按场所名有序遍历并使用严格比较，价格相同时取名称靠前者，保证结果确定。
func pickVenues(snap *model.MarketSnapshot) (buyVenue, sellVenue string, ok bool) {
	var minAsk, maxBid float64
	for _, v := range snap.Venues() {
		q := snap.Quotes[v]
		if buyVenue == "" || q.Ask < minAsk {
			buyVenue, minAsk = v, q.Ask
		}
		if sellVenue == "" || q.Bid > maxBid {
			sellVenue, maxBid = v, q.Bid
		}
	}
	if buyVenue == sellVenue {
		return "", "", false
	}
	return buyVenue, sellVenue, true
}

// calcGrossSpreadBps 毛价差（基点）
// 价格非正或非有限时不计算。
// 公式: (sell_bid - buy_ask) / buy_ask × 10000
func calcGrossSpreadBps(buyAsk, sellBid float64) (float64, bool) {
	if !(buyAsk > 0) || !(sellBid > 0) || math.IsInf(buyAsk, 0) || math.IsInf(sellBid, 0) {
		return 0, false
	}
	return (sellBid - buyAsk) / buyAsk * 10000, true
}
