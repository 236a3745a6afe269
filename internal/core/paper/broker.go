package paper

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"arbitrage-sim-lab/internal/core/model"
)

// Leg 一条执行腿：订单与可选的成交
type Leg struct {
	// Order 订单
	Order model.Order
	// Fill 成交；未成交时为 nil
	Fill *model.Fill
	// At 模拟时间
	At time.Time
}

// Filled 是否成交
func (l Leg) Filled() bool { return l.Fill != nil }

// Broker 模拟经纪商（单写者）
// 每个信号拆成买、卖两条腿依次执行，两条腿各自独立成交，不保证原子性；
// 资金只反映实际成交的腿。
type Broker struct {
	logger *zap.Logger
	model  *FillModel
	ledger *Ledger

	// capital 当前资金
	capital float64
	// lastID 私有订单号计数器，严格递增
	lastID model.OrderID
}

// NewBroker 创建模拟经纪商
// 参数 initialCapital: 初始资金
// 参数 fm: 成交模型
func NewBroker(initialCapital float64, fm *FillModel, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		logger:  logger.Named("paper"),
		model:   fm,
		ledger:  NewLedger(256),
		capital: initialCapital,
	}
}

// SubmitOrder 提交信号，只返回买入腿
// 卖出腿同样执行并影响资金，但不单独返回；需要两条腿时使用 SubmitLegs。
func (b *Broker) SubmitOrder(sig *model.Signal, clk Clock) (model.Order, *model.Fill, error) {
	legs, err := b.SubmitLegs(sig, clk)
	if err != nil {
		return model.Order{}, nil, err
	}
	return legs[0].Order, legs[0].Fill, nil
}

// SubmitLegs 提交信号并按 [买入腿, 卖出腿] 顺序返回两条腿
// 买入腿: (venue_buy, price_buy)；卖出腿: (venue_sell, price_sell)。
func (b *Broker) SubmitLegs(sig *model.Signal, clk Clock) ([]Leg, error) {
	if sig == nil {
		return nil, fmt.Errorf("信号为空")
	}
	if err := sig.Validate(); err != nil {
		return nil, fmt.Errorf("信号无效: %w", err)
	}

	legs := make([]Leg, 0, 2)
	legs = append(legs, b.execute(sig, model.SideBuy, sig.VenueBuy, sig.PriceBuy, clk))
	legs = append(legs, b.execute(sig, model.SideSell, sig.VenueSell, sig.PriceSell, clk))
	return legs, nil
}

func (b *Broker) execute(sig *model.Signal, side model.Side, venue string, price float64, clk Clock) Leg {
	b.lastID++
	o := model.Order{
		ID:       b.lastID,
		Symbol:   sig.Symbol,
		Side:     side,
		Venue:    venue,
		Price:    price,
		Size:     sig.Size,
		SignalID: sig.ID,
	}

	fill, at := b.model.Simulate(o, clk)
	leg := Leg{Order: o, Fill: fill, At: at}
	b.ledger.Record(leg)

	if fill == nil {
		b.logger.Debug("paper no fill",
			zap.String("order_id", o.ID.String()),
			zap.String("side", string(side)),
			zap.String("venue", venue),
		)
		return leg
	}

	// 买入: capital -= price × size + fee；卖出: capital += price × size - fee
	b.capital += fill.CashFlow()

	b.logger.Info("paper fill",
		zap.String("order_id", o.ID.String()),
		zap.String("side", string(side)),
		zap.String("venue", venue),
		zap.Float64("size", fill.Size),
		zap.Float64("price", fill.Price),
		zap.Float64("fee", fill.Fee),
		zap.Float64("capital", b.capital),
	)
	return leg
}

// Capital 返回当前资金
func (b *Broker) Capital() float64 { return b.capital }

// Ledger 返回执行账本
func (b *Broker) Ledger() *Ledger { return b.ledger }
