// Package paper 实现模拟成交与模拟经纪商。
// 重要：仅用于研究，严禁真实下单。
package paper

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"arbitrage-sim-lab/internal/config"
	"arbitrage-sim-lab/internal/core/model"
)

// Clock 成交时间来源
type Clock interface {
	Now() time.Time
}

// FillModel 成交模型
// 全成或不成（不支持部分成交）；滑点总是让吃单方价格变差。
// 随机源由调用方注入，相同种子得到相同结果。非并发安全。
type FillModel struct {
	// slippageBps 滑点（基点）
	slippageBps float64
	// feeRate 手续费率
	feeRate float64
	// fillProbability 成交概率 [0,1]
	fillProbability float64
	// rng 注入的随机源，同时用于生成成交 ID
	rng *rand.Rand
}

// NewFillModel 创建成交模型
// 参数 cfg: 模拟成交配置（滑点、手续费率、成交概率）
// 参数 rng: 随机源；为 nil 时使用 cfg.Seed 创建
func NewFillModel(cfg config.PaperConfig, rng *rand.Rand) *FillModel {
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	return &FillModel{
		slippageBps:     cfg.SlippageBps,
		feeRate:         cfg.FeeRate,
		fillProbability: cfg.FillProbability,
		rng:             rng,
	}
}

// Simulate 模拟一次下单尝试
// 参数 o: 订单
// 参数 clk: 成交时间取 clk.Now()，不是墙钟时间
// 参数 probOverride: 可选的成交概率覆盖值
// 返回值：未成交时 fill 为 nil；at 总是模拟时间。
func (m *FillModel) Simulate(o model.Order, clk Clock, probOverride ...float64) (fill *model.Fill, at time.Time) {
	at = clk.Now()

	prob := m.fillProbability
	if len(probOverride) > 0 {
		prob = probOverride[0]
	}

	// 每次尝试只抽取一次均匀随机数
	if m.rng.Float64() > prob {
		return nil, at
	}

	// 滑点：买入加价，卖出减价
	slip := o.Price * m.slippageBps / 10000
	px := o.Price + slip
	if o.Side == model.SideSell {
		px = o.Price - slip
	}
	fee := px * o.Size * m.feeRate

	return &model.Fill{
		ID:      m.fillID(o.ID),
		OrderID: o.ID,
		Symbol:  o.Symbol,
		Side:    o.Side,
		Venue:   o.Venue,
		Price:   px,
		Size:    o.Size,
		Fee:     fee,
	}, at
}

// fillID 从注入的随机源生成 UUID，保证可复现
func (m *FillModel) fillID(orderID model.OrderID) string {
	id, err := uuid.NewRandomFromReader(m.rng)
	if err != nil {
		return fmt.Sprintf("fill-%d", orderID)
	}
	return id.String()
}
