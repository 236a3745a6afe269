// Package telemetry 通过订阅事件总线维护 Prometheus 指标。
// 指标注册在调用方提供的 Registry 上，不使用全局默认注册表。
package telemetry

import (
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"arbitrage-sim-lab/internal/core/bus"
	"arbitrage-sim-lab/internal/core/model"
)

const namespace = "arblab"

// Collector 模拟器指标
type Collector struct {
	reg *prometheus.Registry

	events       *prometheus.CounterVec
	signals      prometheus.Counter
	rejections   *prometheus.CounterVec
	fills        *prometheus.CounterVec
	capital      prometheus.Gauge
	decodeErrors prometheus.Counter
}

// New 创建并注册指标
// 参数 reg: 注册表；为 nil 时新建一个
func New(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		reg: reg,
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "events_total", Help: "Events published on the bus"},
			[]string{"kind"},
		),
		signals: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "signals_total", Help: "Signals emitted by the strategy"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "risk_rejections_total", Help: "Signals vetoed by a risk gate"},
			[]string{"gate"},
		),
		fills: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "fills_total", Help: "Simulated fills"},
			[]string{"side"},
		),
		capital: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "capital", Help: "Simulated capital after the latest fill"},
		),
		decodeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "feed_decode_errors_total", Help: "Replay frames that failed strict decoding"},
		),
	}
	for _, m := range []prometheus.Collector{c.events, c.signals, c.rejections, c.fills, c.capital, c.decodeErrors} {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("注册指标失败: %w", err)
		}
	}
	return c, nil
}

// Attach 订阅总线上的全部事件
func (c *Collector) Attach(b *bus.Bus) {
	b.SubscribeAll(c.observe)
}

func (c *Collector) observe(ev model.Event) error {
	c.events.WithLabelValues(ev.Kind().String()).Inc()
	switch ev.Kind() {
	case model.KindSignal:
		c.signals.Inc()
	case model.KindFill:
		f, _ := ev.Fill()
		c.fills.WithLabelValues(string(f.Side)).Inc()
		c.capital.Add(f.CashFlow())
	}
	return nil
}

// SetCapital 设置资金基准（通常为初始资金），之后每笔成交按现金流累加
func (c *Collector) SetCapital(v float64) { c.capital.Set(v) }

// RecordRejection 记录一次风控拒绝，签名与回测驱动器的拒绝回调一致
func (c *Collector) RecordRejection(gate, _ string) {
	c.rejections.WithLabelValues(gate).Inc()
}

// RecordDecodeError 记录一次回放帧解码失败
func (c *Collector) RecordDecodeError() { c.decodeErrors.Inc() }

// Registry 返回注册表
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// WriteText 以 Prometheus 文本格式输出全部指标
func (c *Collector) WriteText(w io.Writer) error {
	mfs, err := c.reg.Gather()
	if err != nil {
		return fmt.Errorf("采集指标失败: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("输出指标失败: %w", err)
		}
	}
	return nil
}
