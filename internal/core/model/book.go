// Package model 定义模拟器中使用的核心数据结构。
package model

import (
	"sort"
	"time"
)

// Side 交易方向
type Side string

const (
	// SideBuy 买入（吃卖一）
	SideBuy Side = "buy"
	// SideSell 卖出（吃买一）
	SideSell Side = "sell"
)

// Valid 判断方向是否合法
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Level 订单簿深度档位
type Level struct {
	// Price 价格
	Price float64 `json:"price"`
	// Qty 数量
	Qty float64 `json:"qty"`
}

// Trade 某场所的一笔市场成交
type Trade struct {
	// Venue 场所
	Venue string `json:"venue"`
	// Symbol 交易对，如 BTC-USD
	Symbol string `json:"symbol"`
	// Price 成交价
	Price float64 `json:"price"`
	// Size 成交量
	Size float64 `json:"size"`
	// Side 主动方向
	Side Side `json:"side"`
}

// Kind 实现 Payload
func (Trade) Kind() Kind { return KindTrade }

// Validate 实现 Payload
func (t Trade) Validate() error {
	switch {
	case t.Venue == "":
		return invalid(KindTrade, "venue 不能为空")
	case t.Symbol == "":
		return invalid(KindTrade, "symbol 不能为空")
	case !finite(t.Price, t.Size):
		return invalid(KindTrade, "数值非法，price=%v size=%v", t.Price, t.Size)
	case t.Price <= 0:
		return invalid(KindTrade, "price 必须为正数，当前值: %f", t.Price)
	case t.Size <= 0:
		return invalid(KindTrade, "size 必须为正数，当前值: %f", t.Size)
	case !t.Side.Valid():
		return invalid(KindTrade, "未知 side '%s'", t.Side)
	}
	return nil
}

func (Trade) sealed() {}

// OrderbookSnapshot 单个场所的订单簿快照（一行原始数据）
type OrderbookSnapshot struct {
	// Venue 场所
	Venue string `json:"venue"`
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// BidPrice 最优买价（买一价）
	BidPrice float64 `json:"bid_price"`
	// AskPrice 最优卖价（卖一价）
	AskPrice float64 `json:"ask_price"`
	// BidSize 最优买量
	BidSize float64 `json:"bid_size"`
	// AskSize 最优卖量
	AskSize float64 `json:"ask_size"`
	// Depth 可选的深度档位
	Depth []Level `json:"depth,omitempty"`
}

// Kind 实现 Payload
func (OrderbookSnapshot) Kind() Kind { return KindOrderbook }

// Validate 实现 Payload
// 有效条件: 数值有限，买卖价格都大于 0，且卖价 >= 买价
func (b OrderbookSnapshot) Validate() error {
	switch {
	case b.Venue == "":
		return invalid(KindOrderbook, "venue 不能为空")
	case b.Symbol == "":
		return invalid(KindOrderbook, "symbol 不能为空")
	case !finite(b.BidPrice, b.AskPrice, b.BidSize, b.AskSize):
		return invalid(KindOrderbook, "数值非法，bid=%v ask=%v bid_size=%v ask_size=%v", b.BidPrice, b.AskPrice, b.BidSize, b.AskSize)
	case b.BidPrice <= 0 || b.AskPrice <= 0:
		return invalid(KindOrderbook, "买卖价必须为正数，bid=%f ask=%f", b.BidPrice, b.AskPrice)
	case b.AskPrice < b.BidPrice:
		return invalid(KindOrderbook, "卖价 %f 低于买价 %f", b.AskPrice, b.BidPrice)
	case b.BidSize < 0 || b.AskSize < 0:
		return invalid(KindOrderbook, "挂单量不能为负数")
	}
	return nil
}

func (OrderbookSnapshot) sealed() {}

// MidPrice 计算中间价
// 公式: (BidPrice + AskPrice) / 2
func (b OrderbookSnapshot) MidPrice() float64 {
	return (b.BidPrice + b.AskPrice) / 2
}

// SpreadBps 计算买卖价差（基点）
// 公式: (AskPrice - BidPrice) / MidPrice * 10000
func (b OrderbookSnapshot) SpreadBps() float64 {
	mid := b.MidPrice()
	if mid == 0 {
		return 0
	}
	return (b.AskPrice - b.BidPrice) / mid * 10000
}

func (b OrderbookSnapshot) clone() OrderbookSnapshot {
	if b.Depth != nil {
		depth := make([]Level, len(b.Depth))
		copy(depth, b.Depth)
		b.Depth = depth
	}
	return b
}

// Quote 单个场所在一个时间窗口内的最优可成交价格
type Quote struct {
	// Bid 窗口内最高买价
	Bid float64
	// Ask 窗口内最低卖价
	Ask float64
}

// MarketSnapshot 策略输入：某交易对在一个时间窗口内各场所的最优报价
type MarketSnapshot struct {
	// Symbol 交易对
	Symbol string
	// At 窗口起始时间
	At time.Time
	// Quotes 按场所索引的最优报价
	Quotes map[string]Quote
	// Rows 构成快照的原始订单簿行数
	Rows int
}

// Venues 返回按名称排序的场所列表
func (s *MarketSnapshot) Venues() []string {
	venues := make([]string, 0, len(s.Quotes))
	for v := range s.Quotes {
		venues = append(venues, v)
	}
	sort.Strings(venues)
	return venues
}
