// Package strategy 价差策略属性测试
package strategy

import (
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"arbitrage-sim-lab/internal/config"
	"arbitrage-sim-lab/internal/core/model"
)

func TestSpread_Signal_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("净价差达到阈值时买卖场所不同且 expected_profit_bps >= 阈值", prop.ForAll(
		func(buyAsk float64, spreadBps float64, minBps float64, feeRate float64, slipBps float64) bool {
			cost := RoundTripCostBps(feeRate, slipBps)
			sellBid := buyAsk * (1 + spreadBps/10000)
			snap := &model.MarketSnapshot{
				Symbol: "BTC-USD",
				At:     t0,
				Quotes: map[string]model.Quote{
					"venue_0": {Bid: buyAsk * 0.999, Ask: buyAsk},
					"venue_1": {Bid: sellBid, Ask: sellBid * 1.001},
				},
				Rows: 2,
			}
			s := NewSpread(config.StrategyConfig{MinSpreadBps: minBps, FeeRate: feeRate, SlippageBps: slipBps, OrderSize: 0.01})
			sig := s.Evaluate(snap)

			gross := (sellBid - buyAsk) / buyAsk * 10000
			if gross-cost < minBps {
				return sig == nil
			}
			return sig != nil &&
				sig.VenueBuy != sig.VenueSell &&
				sig.ExpectedProfitBps >= minBps &&
				math.Abs(sig.ExpectedProfitBps-(gross-cost)) < 1e-6
		},
		gen.Float64Range(1, 200000),
		gen.Float64Range(0, 500),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 0.002),
		gen.Float64Range(0, 10),
	))

	properties.Property("单场所永不产生信号", prop.ForAll(
		func(bid float64, width float64, rows int) bool {
			snap := &model.MarketSnapshot{
				Symbol: "BTC-USD",
				Quotes: map[string]model.Quote{"venue_0": {Bid: bid, Ask: bid + width}},
				Rows:   rows,
			}
			s := NewSpread(config.StrategyConfig{MinSpreadBps: -1e9, OrderSize: 1})
			return s.Evaluate(snap) == nil
		},
		gen.Float64Range(1, 100000),
		gen.Float64Range(0, 100),
		gen.IntRange(0, 50),
	))

	properties.Property("相同输入产生相同输出", prop.ForAll(
		func(n int, seedPx float64) bool {
			quotes := make(map[string]model.Quote, n)
			for i := 0; i < n; i++ {
				px := seedPx * (1 + float64(i%3)/1000)
				quotes[fmt.Sprintf("venue_%d", i)] = model.Quote{Bid: px, Ask: px * 0.999}
			}
			snap := &model.MarketSnapshot{Symbol: "BTC-USD", At: t0, Quotes: quotes, Rows: n}
			cfg := config.StrategyConfig{MinSpreadBps: 0, OrderSize: 0.5}
			a := NewSpread(cfg).Evaluate(snap)
			b := NewSpread(cfg).Evaluate(snap)
			if a == nil || b == nil {
				return a == nil && b == nil
			}
			return *a == *b
		},
		gen.IntRange(2, 8),
		gen.Float64Range(10, 100000),
	))

	properties.TestingRun(t)
}
