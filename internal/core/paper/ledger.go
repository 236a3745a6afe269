package paper

import (
	"sync"
)

// Ledger 只追加的执行记录
// 订单与成交分开保存；成交只通过 OrderID 回指订单。
type Ledger struct {
	mu    sync.Mutex
	legs  []Leg
	fills int
}

// NewLedger 创建空账本
// 参数 capacity: 预分配容量，<0 时按 0 处理
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{legs: make([]Leg, 0, capacity)}
}

// Record 追加一条执行腿
// 成交按值保存，之后修改传入的 Fill 不影响账本。
func (l *Ledger) Record(leg Leg) {
	if leg.Fill != nil {
		f := *leg.Fill
		leg.Fill = &f
	}
	l.mu.Lock()
	l.legs = append(l.legs, leg)
	if leg.Fill != nil {
		l.fills++
	}
	l.mu.Unlock()
}

// Snapshot 返回全部执行腿的深拷贝
// 成交也一并复制，调用方修改结果不会影响账本。
func (l *Ledger) Snapshot() []Leg {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Leg, len(l.legs))
	for i, leg := range l.legs {
		if leg.Fill != nil {
			f := *leg.Fill
			leg.Fill = &f
		}
		out[i] = leg
	}
	return out
}

// Len 返回执行腿数量与成交数量
func (l *Ledger) Len() (legs, fills int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.legs), l.fills
}
