// Package backtest 在历史订单簿数据上按时间窗口回放策略。
// 每个窗口依次经过: 快照提取 -> 策略评估 -> 额度检查 -> 熔断检查 -> 模拟下单 -> 资金与指标累计。
// 窗口严格按时间顺序处理；资金、风控状态、订单号都只有一个写者。
package backtest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"arbitrage-sim-lab/internal/config"
	"arbitrage-sim-lab/internal/core/bus"
	"arbitrage-sim-lab/internal/core/clock"
	"arbitrage-sim-lab/internal/core/model"
	"arbitrage-sim-lab/internal/core/paper"
	"arbitrage-sim-lab/internal/core/risk"
	"arbitrage-sim-lab/internal/core/store"
	"arbitrage-sim-lab/internal/core/strategy"
	"arbitrage-sim-lab/internal/data/loader"
	"arbitrage-sim-lab/internal/stats/perf"
	"arbitrage-sim-lab/internal/stats/spread"
)

// 风控闸门名称
const (
	GateLimits     = "limits"
	GateKillSwitch = "kill_switch"
)

// RejectHook 风控拒绝回调
type RejectHook func(gate, reason string)

// Option 驱动器选项
type Option func(*Driver)

// WithBus 把信号、订单、成交事件发布到总线
func WithBus(b *bus.Bus) Option {
	return func(d *Driver) { d.bus = b }
}

// WithStrategy 替换默认的价差策略
func WithStrategy(s strategy.Strategy) Option {
	return func(d *Driver) { d.strat = s }
}

// WithSpreadTracker 收集每个窗口的毛价差（仅对价差策略生效）
func WithSpreadTracker(t *spread.Tracker) Option {
	return func(d *Driver) { d.spreads = t }
}

// WithRand 注入成交随机源
func WithRand(rng *rand.Rand) Option {
	return func(d *Driver) { d.rng = rng }
}

// WithRejectHook 设置风控拒绝回调
func WithRejectHook(fn RejectHook) Option {
	return func(d *Driver) { d.onReject = fn }
}

// Result 一次回测的结果
type Result struct {
	// Summary 绩效摘要
	Summary perf.Summary
	// Trades 逐笔交易统计
	Trades perf.TradeStats
	// Windows 处理的窗口数
	Windows int
	// Signals 策略产生的信号数
	Signals int
	// Rejections 按闸门统计的拒绝数
	Rejections map[string]int
	// Legs 全部执行腿
	Legs []paper.Leg
	// Equity 资金曲线
	Equity []float64
	// Risk 结束时的风控状态
	Risk risk.State
	// KillSwitchTriggered 结束时熔断是否处于触发状态
	KillSwitchTriggered bool
}

// Driver 回测驱动器
// 一个 Driver 可以多次 Run，每次 Run 使用全新的时钟、经纪商与风控状态。
type Driver struct {
	cfg    *config.Config
	logger *zap.Logger

	bus      *bus.Bus
	strat    strategy.Strategy
	spreads  *spread.Tracker
	rng      *rand.Rand
	onReject RejectHook
}

// New 创建回测驱动器
// 参数 cfg: 完整配置（策略、风控、模拟成交、回测）
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		cfg:    cfg,
		logger: logger.Named("backtest"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.strat == nil {
		d.strat = strategy.NewSpread(cfg.Strategy)
	}
	if s, ok := d.strat.(*strategy.Spread); ok && d.spreads != nil {
		s.Observe(d.spreads.Add)
	}
	return d
}

// run 单次回测的可变状态
type run struct {
	clk     *clock.SimClock
	broker  *paper.Broker
	limits  *risk.Limits
	kill    *risk.KillSwitch
	tracker *perf.Tracker

	exposure    float64
	day         time.Time
	dayStartCap float64
	result      *Result
}

// Run 在数据集上执行回测
// 没有订单簿数据时在开始前返回 loader.ErrNoOrderbook。
// ctx 取消时返回已处理部分的结果与 ctx.Err()。
func (d *Driver) Run(ctx context.Context, ds *loader.Dataset) (*Result, error) {
	if err := ds.RequireOrderbook(); err != nil {
		return nil, fmt.Errorf("回测无法开始: %w", err)
	}

	windows := store.GroupByWindow(ds.Orderbook, d.cfg.Strategy.Symbol,
		time.Duration(d.cfg.Backtest.WindowMs)*time.Millisecond)
	if len(windows) == 0 {
		return nil, fmt.Errorf("回测无法开始: %w (symbol=%s)", loader.ErrNoOrderbook, d.cfg.Strategy.Symbol)
	}
	if limit := d.cfg.Backtest.MaxWindows; limit > 0 && len(windows) > limit {
		windows = windows[:limit]
	}

	initial := d.cfg.Backtest.InitialCapital
	r := d.newRun(initial, windows[0].Start)
	d.strat.Reset()

	d.logger.Info("回测开始",
		zap.String("strategy", d.strat.ID()),
		zap.Int("windows", len(windows)),
		zap.Time("from", windows[0].Start),
		zap.Float64("initial_capital", initial))

	var runErr error
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := d.step(r, w); err != nil {
			runErr = err
			break
		}
		r.result.Windows++
	}

	res := d.finish(r)
	d.logger.Info("回测结束",
		zap.Int("windows", res.Windows),
		zap.Int("signals", res.Signals),
		zap.Int("trades", res.Summary.TradeCount),
		zap.Float64("final_capital", res.Summary.FinalCapital),
		zap.Float64("return_pct", res.Summary.TotalReturnPct))
	return res, runErr
}

func (d *Driver) newRun(initial float64, anchor time.Time) *run {
	clk := clock.New(1)
	clk.Start(anchor)

	// 回测手续费使用回测配置的费率
	pcfg := d.cfg.Paper
	pcfg.FeeRate = d.cfg.Backtest.CommissionRate

	return &run{
		clk:         clk,
		broker:      paper.NewBroker(initial, paper.NewFillModel(pcfg, d.rng), d.logger),
		limits:      risk.NewLimits(d.cfg.Risk, initial),
		kill:        risk.NewKillSwitch(d.cfg.Risk.KillSwitchEnabled),
		tracker:     perf.NewTracker(initial),
		day:         utcDay(anchor),
		dayStartCap: initial,
		result:      &Result{Rejections: map[string]int{GateLimits: 0, GateKillSwitch: 0}},
	}
}

// step 处理一个窗口
func (d *Driver) step(r *run, w *store.Window) error {
	if delta := w.Start.Sub(r.clk.Now()); delta > 0 {
		r.clk.Advance(delta)
	}
	// 跨 UTC 日时当日盈亏清零，必须同步到额度闸门
	if day := utcDay(w.Start); !day.Equal(r.day) {
		r.day = day
		r.dayStartCap = r.broker.Capital()
		r.limits.Update(r.exposure, r.dayStartCap, 0)
	}
	defer func() { r.tracker.Mark(r.broker.Capital()) }()

	sig := d.strat.Evaluate(w.Snapshot())
	if sig == nil {
		return nil
	}
	r.result.Signals++
	corrID := d.cfg.App.CorrelationIDPrefix + sig.ID
	d.publish(r.clk.Now(), corrID, *sig)

	capital := r.broker.Capital()
	if ok, reason := r.limits.Check(sig, capital); !ok {
		d.reject(r, GateLimits, reason, sig)
		return nil
	}
	if ok, reason := r.kill.Check(); !ok {
		d.reject(r, GateKillSwitch, reason, sig)
		return nil
	}

	legs, err := r.broker.SubmitLegs(sig, r.clk)
	if err != nil {
		return fmt.Errorf("窗口 %s 下单失败: %w", w.Start.Format(time.RFC3339), err)
	}

	filled := 0
	for _, leg := range legs {
		d.publish(leg.At, corrID, leg.Order)
		if leg.Filled() {
			filled++
			d.publish(leg.At, corrID, *leg.Fill)
		}
	}

	after := r.broker.Capital()
	if filled > 0 {
		r.tracker.RecordTrade(capital, after)
	}
	r.exposure += openExposure(legs)

	r.limits.Update(r.exposure, after, after-r.dayStartCap)
	if pct := d.cfg.Risk.KillSwitchDrawdownPct; pct > 0 && r.kill.Enabled() && !r.kill.IsTriggered() {
		if dd := r.limits.Drawdown(after); dd >= pct {
			r.kill.Trigger()
			d.logger.Warn("回撤触发熔断",
				zap.Float64("drawdown", dd),
				zap.Float64("threshold", pct),
				zap.Float64("capital", after))
		}
	}
	return nil
}

// openExposure 单边成交留下的敞口（名义价值）
// 两条腿都成交时互相对冲，敞口为 0。
func openExposure(legs []paper.Leg) float64 {
	var filled []paper.Leg
	for _, leg := range legs {
		if leg.Filled() {
			filled = append(filled, leg)
		}
	}
	if len(filled) != 1 {
		return 0
	}
	return filled[0].Fill.Notional()
}

func (d *Driver) reject(r *run, gate, reason string, sig *model.Signal) {
	r.result.Rejections[gate]++
	d.logger.Debug("信号被风控拒绝",
		zap.String("gate", gate),
		zap.String("reason", reason),
		zap.String("signal_id", sig.ID))
	if d.onReject != nil {
		d.onReject(gate, reason)
	}
}

func (d *Driver) publish(ts time.Time, corrID string, p model.Payload) {
	if d.bus == nil {
		return
	}
	ev, err := model.NewEvent(ts, corrID, p)
	if err != nil {
		d.logger.Error("构造事件失败", zap.String("kind", p.Kind().String()), zap.Error(err))
		return
	}
	d.bus.Publish(ev)
}

func (d *Driver) finish(r *run) *Result {
	res := r.result
	res.Summary = r.tracker.Summary()
	res.Trades = r.tracker.TradeStats()
	res.Legs = r.broker.Ledger().Snapshot()
	res.Equity = r.tracker.Equity()
	res.Risk = r.limits.State()
	res.KillSwitchTriggered = r.kill.IsTriggered()
	return res
}

func utcDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
