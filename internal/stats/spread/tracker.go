// Package spread 统计策略观察到的跨场所毛价差分布。
// 为每个交易对维护独立的滚动窗口，供参数建议模块使用。
package spread

import (
	"sort"
	"sync"
)

// Stats 价差分布快照（滚动窗口，单位：基点）
type Stats struct {
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// Count 样本总数（累计）
	Count int64 `json:"count"`
	// Window 当前窗口内样本数
	Window int `json:"window"`
	// Mean 窗口内均值
	Mean float64 `json:"mean_bps"`
	// P50Bps 中位数
	P50Bps float64 `json:"p50_bps"`
	// P75Bps 75 分位
	P75Bps float64 `json:"p75_bps"`
	// P90Bps 90 分位
	P90Bps float64 `json:"p90_bps"`
	// MaxBps 最大值
	MaxBps float64 `json:"max_bps"`
}

type rollingWindow struct {
	size  int
	buf   []float64
	pos   int
	count int64
	full  bool
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size, buf: make([]float64, 0, size)}
}

func (w *rollingWindow) add(v float64) {
	w.count++
	if w.size <= 0 {
		return
	}

	if !w.full {
		w.buf = append(w.buf, v)
		if len(w.buf) == w.size {
			w.full = true
			w.pos = 0
		}
		return
	}

	w.buf[w.pos] = v
	w.pos++
	if w.pos >= w.size {
		w.pos = 0
	}
}

// samples 按写入顺序返回窗口内样本的拷贝
func (w *rollingWindow) samples() []float64 {
	out := make([]float64, 0, len(w.buf))
	if !w.full {
		return append(out, w.buf...)
	}
	out = append(out, w.buf[w.pos:]...)
	return append(out, w.buf[:w.pos]...)
}

// Tracker 价差追踪器（并发安全）
type Tracker struct {
	windowSize int

	mu      sync.Mutex
	windows map[string]*rollingWindow
}

// NewTracker 创建价差追踪器
// 参数 windowSize: 每个交易对的滚动窗口大小（建议 10000）
func NewTracker(windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = 10000
	}
	return &Tracker{
		windowSize: windowSize,
		windows:    make(map[string]*rollingWindow),
	}
}

// Add 记录一个毛价差样本
// 签名与 strategy.SpreadObserver 一致，可直接注册为观察者。
func (t *Tracker) Add(symbol string, grossBps float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[symbol]
	if !ok {
		w = newRollingWindow(t.windowSize)
		t.windows[symbol] = w
	}
	w.add(grossBps)
}

// Samples 返回窗口内样本（写入顺序）
func (t *Tracker) Samples(symbol string) []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[symbol]
	if !ok {
		return nil
	}
	return w.samples()
}

// Stats 获取指定交易对的分布快照
func (t *Tracker) Stats(symbol string) Stats {
	t.mu.Lock()
	w, ok := t.windows[symbol]
	var count int64
	var tmp []float64
	if ok {
		count = w.count
		tmp = w.samples()
	}
	t.mu.Unlock()

	out := Stats{Symbol: symbol, Count: count, Window: len(tmp)}
	if len(tmp) == 0 {
		return out
	}

	sort.Float64s(tmp)
	var sum float64
	for _, v := range tmp {
		sum += v
	}
	out.Mean = sum / float64(len(tmp))
	out.P50Bps = Quantile(tmp, 0.50)
	out.P75Bps = Quantile(tmp, 0.75)
	out.P90Bps = Quantile(tmp, 0.90)
	out.MaxBps = tmp[len(tmp)-1]
	return out
}

// Quantile 有序样本的分位数（不插值）
// 参数 sorted: 升序样本，不能为空
// 下标取 int((n-1) × q)，q 被截断到 [0,1]。
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	idx := int(float64(n-1) * q)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
