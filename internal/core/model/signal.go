// Package model 定义模拟器中使用的核心数据结构。
package model

// Signal 跨场所套利信号
// 由一次策略评估产生；风控与模拟经纪商最多各消费一次。
type Signal struct {
	// ID 信号唯一标识
	ID string `json:"id"`
	// StrategyID 产生信号的策略
	StrategyID string `json:"strategy_id,omitempty"`
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// Side 方向（价差套利固定以买入腿为主方向）
	Side Side `json:"side"`
	// VenueBuy 买入场所（卖一最低）
	VenueBuy string `json:"venue_buy"`
	// VenueSell 卖出场所（买一最高）
	VenueSell string `json:"venue_sell"`
	// PriceBuy 买入价
	PriceBuy float64 `json:"price_buy"`
	// PriceSell 卖出价
	PriceSell float64 `json:"price_sell"`
	// Size 下单数量
	Size float64 `json:"size"`
	// ExpectedProfitBps 扣除成本后的净价差（基点）
	ExpectedProfitBps float64 `json:"expected_profit_bps"`
	// Rationale 文字说明
	Rationale string `json:"rationale,omitempty"`
}

// Kind 实现 Payload
func (Signal) Kind() Kind { return KindSignal }

// Validate 实现 Payload
func (s Signal) Validate() error {
	switch {
	case s.Symbol == "":
		return invalid(KindSignal, "symbol 不能为空")
	case !s.Side.Valid():
		return invalid(KindSignal, "未知 side '%s'", s.Side)
	case s.VenueBuy == "" || s.VenueSell == "":
		return invalid(KindSignal, "买卖场所不能为空")
	case s.VenueBuy == s.VenueSell:
		return invalid(KindSignal, "买卖场所相同: %s", s.VenueBuy)
	case !finite(s.PriceBuy, s.PriceSell, s.Size, s.ExpectedProfitBps):
		return invalid(KindSignal, "数值非法")
	case s.PriceBuy <= 0 || s.PriceSell <= 0:
		return invalid(KindSignal, "价格必须为正数")
	case s.Size <= 0:
		return invalid(KindSignal, "size 必须为正数，当前值: %f", s.Size)
	}
	return nil
}

func (Signal) sealed() {}

// Notional 两条腿的名义价值之和
// 公式: price_buy × size + price_sell × size
func (s Signal) Notional() float64 {
	return s.PriceBuy*s.Size + s.PriceSell*s.Size
}
