// Package synthetic 生成可复现的多场所合成行情（成交、订单簿、K 线）。
// 同一个种子总是得到完全相同的数据，不连接任何真实交易所。
package synthetic

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"arbitrage-sim-lab/internal/config"
	"arbitrage-sim-lab/internal/core/model"
)

const minutesPerDay = 24 * 60

// 输出文件名
const (
	TradesFile    = "trades.csv"
	OrderbookFile = "orderbook.csv"
	CandlesFile   = "candles.csv"
)

// 列顺序
var (
	TradesHeader    = []string{"timestamp", "venue", "symbol", "price", "size", "side"}
	OrderbookHeader = []string{"timestamp", "venue", "symbol", "bid_price", "ask_price", "bid_size", "ask_size"}
	CandlesHeader   = []string{"timestamp", "venue", "symbol", "open", "high", "low", "close", "volume"}
)

// Generator 合成行情生成器（非并发安全）
type Generator struct {
	basePrice  float64
	volatility float64
	// spread 买卖价差比例（bps / 10000）
	spread float64
	venues int

	rng    *rand.Rand
	logger *zap.Logger
}

// New 创建生成器
// 参数 cfg: 合成数据配置，零值字段使用默认值
func New(cfg config.SyntheticConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		basePrice:  cfg.BasePrice,
		volatility: cfg.Volatility,
		spread:     cfg.SpreadBps / 10000,
		venues:     cfg.Venues,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		logger:     logger.Named("synthetic"),
	}
	if g.basePrice <= 0 {
		g.basePrice = 50000
	}
	if g.volatility <= 0 {
		g.volatility = 0.02
	}
	if g.spread <= 0 {
		g.spread = 10.0 / 10000
	}
	if g.venues <= 0 {
		g.venues = 2
	}
	return g
}

// Venues 场所数
func (g *Generator) Venues() int { return g.venues }

func (g *Generator) venue(i int) string {
	return fmt.Sprintf("venue_%d", i%g.venues)
}

func step(start time.Time, i, perMinute int) time.Time {
	return start.Add(time.Duration(i) * time.Minute / time.Duration(perMinute))
}

// randomWalk 价格随机游走
// 公式: p_i = base × Π_{k<=i}(1 + N(0, vol))
func (g *Generator) randomWalk(n int) []float64 {
	prices := make([]float64, n)
	p := g.basePrice
	for i := range prices {
		p *= 1 + g.rng.NormFloat64()*g.volatility
		prices[i] = p
	}
	return prices
}

// Trades 生成成交数据
// 参数 perMinute: 每分钟成交笔数，<=0 时为 5
func (g *Generator) Trades(start time.Time, days int, symbol string, perMinute int) ([]model.Event, error) {
	if perMinute <= 0 {
		perMinute = 5
	}
	n := days * minutesPerDay * perMinute
	prices := g.randomWalk(n)

	out := make([]model.Event, 0, n)
	for i := 0; i < n; i++ {
		size := math.Min(math.Max(math.Exp(g.rng.NormFloat64()), 0.001), 10)
		side := model.SideBuy
		if g.rng.Intn(2) == 1 {
			side = model.SideSell
		}
		ev, err := model.NewEvent(step(start, i, perMinute), "", model.Trade{
			Venue:  g.venue(i),
			Symbol: symbol,
			Price:  prices[i],
			Size:   size,
			Side:   side,
		})
		if err != nil {
			return nil, fmt.Errorf("生成第 %d 笔成交失败: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Orderbook 生成订单簿快照
// 参数 perMinute: 每分钟快照数，<=0 时等于场所数（每个一分钟窗口里每个场所各一行）
// bid = p - p×spread/2，ask = p + p×spread/2，挂单量 U(1, 100)
func (g *Generator) Orderbook(start time.Time, days int, symbol string, perMinute int) ([]model.Event, error) {
	if perMinute <= 0 {
		perMinute = g.venues
	}
	n := days * minutesPerDay * perMinute
	prices := g.randomWalk(n)

	out := make([]model.Event, 0, n)
	for i := 0; i < n; i++ {
		half := prices[i] * g.spread / 2
		ev, err := model.NewEvent(step(start, i, perMinute), "", model.OrderbookSnapshot{
			Venue:    g.venue(i),
			Symbol:   symbol,
			BidPrice: prices[i] - half,
			AskPrice: prices[i] + half,
			BidSize:  1 + g.rng.Float64()*99,
			AskSize:  1 + g.rng.Float64()*99,
		})
		if err != nil {
			return nil, fmt.Errorf("生成第 %d 个订单簿快照失败: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Candles 生成 K 线
// 参数 intervalMinutes: K 线周期，<=0 时为 15
// open = close = p，high = p×(1+U(0,vol))，low = p×(1-U(0,vol))，volume ~ lognormal(5, 2)
func (g *Generator) Candles(start time.Time, days int, symbol string, intervalMinutes int) []model.Candle {
	if intervalMinutes <= 0 {
		intervalMinutes = 15
	}
	n := days * minutesPerDay / intervalMinutes
	prices := g.randomWalk(n)

	out := make([]model.Candle, 0, n)
	for i := 0; i < n; i++ {
		p := prices[i]
		out = append(out, model.Candle{
			Timestamp: start.Add(time.Duration(i*intervalMinutes) * time.Minute),
			Venue:     g.venue(i),
			Symbol:    symbol,
			Open:      p,
			High:      p * (1 + g.rng.Float64()*g.volatility),
			Low:       p * (1 - g.rng.Float64()*g.volatility),
			Close:     p,
			Volume:    math.Exp(5 + 2*g.rng.NormFloat64()),
		})
	}
	return out
}

// Paths 生成的文件路径
type Paths struct {
	Trades    string
	Orderbook string
	Candles   string
}

// WriteAll 生成全部数据并写入目录
// 参数 start: 起始时间，零值时取当天 UTC 零点
func (g *Generator) WriteAll(dir string, start time.Time, days int, symbol string) (Paths, error) {
	if start.IsZero() {
		start = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if days <= 0 {
		days = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("创建数据目录失败: %w", err)
	}

	paths := Paths{
		Trades:    filepath.Join(dir, TradesFile),
		Orderbook: filepath.Join(dir, OrderbookFile),
		Candles:   filepath.Join(dir, CandlesFile),
	}

	trades, err := g.Trades(start, days, symbol, 0)
	if err != nil {
		return paths, err
	}
	if err := writeCSV(paths.Trades, TradesHeader, len(trades), func(i int) []string {
		t, _ := trades[i].Trade()
		return []string{stamp(trades[i].Timestamp()), t.Venue, t.Symbol, num(t.Price), num(t.Size), string(t.Side)}
	}); err != nil {
		return paths, err
	}

	books, err := g.Orderbook(start, days, symbol, 0)
	if err != nil {
		return paths, err
	}
	if err := writeCSV(paths.Orderbook, OrderbookHeader, len(books), func(i int) []string {
		b, _ := books[i].Orderbook()
		return []string{stamp(books[i].Timestamp()), b.Venue, b.Symbol, num(b.BidPrice), num(b.AskPrice), num(b.BidSize), num(b.AskSize)}
	}); err != nil {
		return paths, err
	}

	candles := g.Candles(start, days, symbol, 0)
	if err := writeCSV(paths.Candles, CandlesHeader, len(candles), func(i int) []string {
		c := candles[i]
		return []string{stamp(c.Timestamp), c.Venue, c.Symbol, num(c.Open), num(c.High), num(c.Low), num(c.Close), num(c.Volume)}
	}); err != nil {
		return paths, err
	}

	g.logger.Info("合成数据已生成",
		zap.String("dir", dir),
		zap.Int("trades", len(trades)),
		zap.Int("orderbook", len(books)),
		zap.Int("candles", len(candles)))
	return paths, nil
}

func writeCSV(path string, header []string, n int, row func(int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建 %s 失败: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return fmt.Errorf("写入 %s 失败: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return f.Close()
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
