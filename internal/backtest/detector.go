package backtest

import (
	"time"

	"go.uber.org/zap"

	"arbitrage-sim-lab/internal/core/bus"
	"arbitrage-sim-lab/internal/core/model"
	"arbitrage-sim-lab/internal/core/store"
	"arbitrage-sim-lab/internal/core/strategy"
)

// Detector 只检测信号、不下单的流式评估器
// 订阅总线上的订单簿事件，按窗口聚合；窗口切换时评估上一个窗口并把信号发布回总线。
// 同时维护各场所最新一行订单簿，供观察当前报价。
// 事件需按时间顺序到达，迟到的行并入当前窗口。
type Detector struct {
	logger *zap.Logger
	bus    *bus.Bus
	strat  strategy.Strategy
	symbol string
	window time.Duration
	prefix string

	current *store.Window
	latest  *store.Store
	signals int
}

// NewDetector 创建信号检测器并订阅订单簿事件
// 参数 symbol: 只处理该交易对；为空时处理全部
// 参数 window: 窗口长度，<=0 时为 1 分钟
func NewDetector(b *bus.Bus, strat strategy.Strategy, symbol string, window time.Duration, corrPrefix string, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = time.Minute
	}
	d := &Detector{
		logger: logger.Named("detector"),
		bus:    b,
		strat:  strat,
		symbol: symbol,
		window: window,
		prefix: corrPrefix,
		latest: store.New(),
	}
	b.Subscribe(model.KindOrderbook, d.onBook)
	return d
}

func (d *Detector) onBook(ev model.Event) error {
	book, _ := ev.Orderbook()
	if d.symbol != "" && book.Symbol != d.symbol {
		return nil
	}
	d.latest.Update(ev)

	start := ev.Timestamp().Truncate(d.window)
	if d.current != nil && start.After(d.current.Start) {
		d.evaluate()
	}
	if d.current == nil {
		d.current = &store.Window{Start: start, Symbol: book.Symbol}
	}
	d.current.Add(book)
	return nil
}

// Flush 评估最后一个未关闭的窗口
func (d *Detector) Flush() {
	if d.current != nil {
		d.evaluate()
	}
}

// Signals 已检测到的信号数
func (d *Detector) Signals() int { return d.signals }

// Latest 由各场所最新一行订单簿组成的快照
func (d *Detector) Latest(symbol string) *model.MarketSnapshot {
	return d.latest.Snapshot(symbol)
}

// LatestBook 指定场所最新的订单簿行
func (d *Detector) LatestBook(symbol, venue string) (model.OrderbookSnapshot, bool) {
	return d.latest.Get(symbol, venue)
}

func (d *Detector) evaluate() {
	w := d.current
	d.current = nil

	sig := d.strat.Evaluate(w.Snapshot())
	if sig == nil {
		return
	}
	d.signals++

	ev, err := model.NewEvent(w.Start, d.prefix+sig.ID, *sig)
	if err != nil {
		d.logger.Error("构造信号事件失败", zap.Error(err))
		return
	}
	d.logger.Debug("检测到信号",
		zap.String("signal_id", sig.ID),
		zap.String("venue_buy", sig.VenueBuy),
		zap.String("venue_sell", sig.VenueSell),
		zap.Float64("net_bps", sig.ExpectedProfitBps))
	d.bus.Publish(ev)
}
