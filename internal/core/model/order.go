// Package model 定义模拟器中使用的核心数据结构。
package model

import (
	"strconv"
)

// OrderID 订单号，在同一个经纪商实例内严格递增
type OrderID uint64

// String 返回 "ord-N" 形式
func (id OrderID) String() string {
	return "ord-" + strconv.FormatUint(uint64(id), 10)
}

// Order 一条执行腿
// 由模拟经纪商创建，创建后不再修改。
type Order struct {
	// ID 订单号
	ID OrderID `json:"order_id"`
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// Side 方向
	Side Side `json:"side"`
	// Venue 场所
	Venue string `json:"venue"`
	// Price 委托价
	Price float64 `json:"price"`
	// Size 委托量
	Size float64 `json:"size"`
	// SignalID 来源信号，可为空
	SignalID string `json:"signal_id,omitempty"`
}

// Kind 实现 Payload
func (Order) Kind() Kind { return KindOrder }

// Validate 实现 Payload
func (o Order) Validate() error {
	switch {
	case o.ID == 0:
		return invalid(KindOrder, "order_id 不能为空")
	case o.Symbol == "":
		return invalid(KindOrder, "symbol 不能为空")
	case !o.Side.Valid():
		return invalid(KindOrder, "未知 side '%s'", o.Side)
	case o.Venue == "":
		return invalid(KindOrder, "venue 不能为空")
	case !finite(o.Price, o.Size):
		return invalid(KindOrder, "数值非法，price=%v size=%v", o.Price, o.Size)
	case o.Price <= 0:
		return invalid(KindOrder, "price 必须为正数，当前值: %f", o.Price)
	case o.Size <= 0:
		return invalid(KindOrder, "size 必须为正数，当前值: %f", o.Size)
	}
	return nil
}

func (Order) sealed() {}

// Notional 名义价值
func (o Order) Notional() float64 {
	return o.Price * o.Size
}

// Fill 一次下单尝试的成交结果
// OrderID 只是回指，不持有订单；成交记录独立追加保存。
type Fill struct {
	// ID 成交唯一标识
	ID string `json:"fill_id"`
	// OrderID 对应订单
	OrderID OrderID `json:"order_id"`
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// Side 方向
	Side Side `json:"side"`
	// Venue 场所
	Venue string `json:"venue"`
	// Price 含滑点的成交价
	Price float64 `json:"price"`
	// Size 成交量
	Size float64 `json:"size"`
	// Fee 手续费
	Fee float64 `json:"fee"`
}

// Kind 实现 Payload
func (Fill) Kind() Kind { return KindFill }

// Validate 实现 Payload
func (f Fill) Validate() error {
	switch {
	case f.ID == "":
		return invalid(KindFill, "fill_id 不能为空")
	case f.OrderID == 0:
		return invalid(KindFill, "order_id 不能为空")
	case f.Symbol == "":
		return invalid(KindFill, "symbol 不能为空")
	case !f.Side.Valid():
		return invalid(KindFill, "未知 side '%s'", f.Side)
	case f.Venue == "":
		return invalid(KindFill, "venue 不能为空")
	case !finite(f.Price, f.Size, f.Fee):
		return invalid(KindFill, "数值非法，price=%v size=%v fee=%v", f.Price, f.Size, f.Fee)
	case f.Price <= 0:
		return invalid(KindFill, "price 必须为正数，当前值: %f", f.Price)
	case f.Size <= 0:
		return invalid(KindFill, "size 必须为正数，当前值: %f", f.Size)
	case f.Fee < 0:
		return invalid(KindFill, "fee 不能为负数，当前值: %f", f.Fee)
	}
	return nil
}

func (Fill) sealed() {}

// Notional 成交名义价值
func (f Fill) Notional() float64 {
	return f.Price * f.Size
}

// CashFlow 成交对资金的影响
// 买入: -(price × size + fee)；卖出: +(price × size − fee)
func (f Fill) CashFlow() float64 {
	if f.Side == SideBuy {
		return -(f.Notional() + f.Fee)
	}
	return f.Notional() - f.Fee
}
