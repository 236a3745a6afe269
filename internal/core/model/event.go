// Package model 定义模拟器中使用的核心数据结构。
// 包含事件（封闭的标签联合）、订单簿快照、信号、订单与成交等类型。
package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidEvent 事件构造校验失败
// 所有字段缺失/非法的错误都包装此哨兵错误，调用方可用 errors.Is 判断。
var ErrInvalidEvent = errors.New("invalid event")

// Kind 事件种类标签
// 事件总线按此标签路由，而不是按运行时类型反射。
type Kind uint8

const (
	// KindTrade 成交行情
	KindTrade Kind = iota + 1
	// KindOrderbook 订单簿快照
	KindOrderbook
	// KindSignal 策略信号
	KindSignal
	// KindOrder 模拟订单
	KindOrder
	// KindFill 模拟成交回报
	KindFill
)

// Kinds 全部事件种类（按声明顺序）
var Kinds = []Kind{KindTrade, KindOrderbook, KindSignal, KindOrder, KindFill}

var kindNames = map[Kind]string{
	KindTrade:     "trade",
	KindOrderbook: "orderbook",
	KindSignal:    "signal",
	KindOrder:     "order",
	KindFill:      "fill",
}

// String 返回事件种类名称，如 "fill"
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid 判断是否为已知事件种类
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind 将名称解析为事件种类
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: 未知事件种类 '%s'", ErrInvalidEvent, s)
}

// Payload 事件载荷
// 接口包含未导出方法，只有本包内的五种载荷可以实现，保证联合是封闭的。
type Payload interface {
	// Kind 返回载荷对应的事件种类
	Kind() Kind
	// Validate 校验字段合法性
	Validate() error

	sealed()
}

// Event 不可变事件
// 只能通过 NewEvent 构造；载荷以值的形式保存，访问器返回拷贝。
type Event struct {
	timestamp     time.Time
	correlationID string
	payload       Payload
}

// NewEvent 构造并校验事件
// 参数 ts: 事件时间（模拟时钟时间）
// 参数 correlationID: 关联 ID，可为空
// 参数 p: 载荷
// 返回: 校验失败时返回包装 ErrInvalidEvent 的错误
func NewEvent(ts time.Time, correlationID string, p Payload) (Event, error) {
	if p == nil {
		return Event{}, fmt.Errorf("%w: 载荷为空", ErrInvalidEvent)
	}
	if ts.IsZero() {
		return Event{}, fmt.Errorf("%w: %s 事件缺少时间戳", ErrInvalidEvent, p.Kind())
	}
	if err := p.Validate(); err != nil {
		return Event{}, err
	}
	if ob, ok := p.(OrderbookSnapshot); ok {
		p = ob.clone()
	}
	return Event{timestamp: ts, correlationID: correlationID, payload: p}, nil
}

// Kind 返回事件种类；零值事件返回 0
func (e Event) Kind() Kind {
	if e.payload == nil {
		return 0
	}
	return e.payload.Kind()
}

// Timestamp 事件时间
func (e Event) Timestamp() time.Time { return e.timestamp }

// CorrelationID 关联 ID
func (e Event) CorrelationID() string { return e.correlationID }

// Payload 返回载荷
func (e Event) Payload() Payload {
	if ob, ok := e.payload.(OrderbookSnapshot); ok {
		return ob.clone()
	}
	return e.payload
}

// Trade 若为成交行情事件则返回载荷
func (e Event) Trade() (Trade, bool) {
	t, ok := e.payload.(Trade)
	return t, ok
}

// Orderbook 若为订单簿事件则返回载荷拷贝
func (e Event) Orderbook() (OrderbookSnapshot, bool) {
	ob, ok := e.payload.(OrderbookSnapshot)
	if !ok {
		return OrderbookSnapshot{}, false
	}
	return ob.clone(), true
}

// Signal 若为信号事件则返回载荷
func (e Event) Signal() (Signal, bool) {
	s, ok := e.payload.(Signal)
	return s, ok
}

// Order 若为订单事件则返回载荷
func (e Event) Order() (Order, bool) {
	o, ok := e.payload.(Order)
	return o, ok
}

// Fill 若为成交回报事件则返回载荷
func (e Event) Fill() (Fill, bool) {
	f, ok := e.payload.(Fill)
	return f, ok
}

// finite 所有数值都不是 NaN/Inf
// NaN 与任何值比较都为 false，必须在范围检查之前单独拦截。
func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// invalid 构造字段校验错误
func invalid(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidEvent, kind, fmt.Sprintf(format, args...))
}
