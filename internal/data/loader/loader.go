// Package loader 从 CSV 文件加载行情数据（成交、订单簿、K 线）。
// 列按表头名称定位，列顺序不限；任何一行校验失败都会返回带行号的错误。
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"arbitrage-sim-lab/internal/core/model"
	"arbitrage-sim-lab/internal/data/synthetic"
)

// ErrNoOrderbook 数据集中没有订单簿数据
var ErrNoOrderbook = errors.New("no orderbook data")

// Dataset 一个数据目录中的全部行情
type Dataset struct {
	// Trades 成交事件（按时间升序）
	Trades []model.Event
	// Orderbook 订单簿事件（按时间升序）
	Orderbook []model.Event
	// Candles K 线（按时间升序）
	Candles []model.Candle
}

// RequireOrderbook 没有订单簿数据时返回 ErrNoOrderbook
func (d *Dataset) RequireOrderbook() error {
	if d == nil || len(d.Orderbook) == 0 {
		return ErrNoOrderbook
	}
	return nil
}

// LoadDir 加载目录下存在的 trades.csv / orderbook.csv / candles.csv
// 不存在的文件直接跳过。
func LoadDir(dir string) (*Dataset, error) {
	ds := &Dataset{}

	if p := filepath.Join(dir, synthetic.TradesFile); exists(p) {
		evs, err := LoadTrades(p)
		if err != nil {
			return nil, err
		}
		ds.Trades = evs
	}
	if p := filepath.Join(dir, synthetic.OrderbookFile); exists(p) {
		evs, err := LoadOrderbook(p)
		if err != nil {
			return nil, err
		}
		ds.Orderbook = evs
	}
	if p := filepath.Join(dir, synthetic.CandlesFile); exists(p) {
		candles, err := LoadCandles(p)
		if err != nil {
			return nil, err
		}
		ds.Candles = candles
	}
	return ds, nil
}

func exists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// LoadTrades 加载成交 CSV
// 必需列: timestamp, venue, symbol, price, size, side
func LoadTrades(path string) ([]model.Event, error) {
	var out []model.Event
	err := readCSV(path, synthetic.TradesHeader, func(r row) error {
		ts, err := r.timestamp("timestamp")
		if err != nil {
			return err
		}
		price, err := r.float("price")
		if err != nil {
			return err
		}
		size, err := r.float("size")
		if err != nil {
			return err
		}
		ev, err := model.NewEvent(ts, "", model.Trade{
			Venue:  r.str("venue"),
			Symbol: r.str("symbol"),
			Price:  price,
			Size:   size,
			Side:   model.Side(r.str("side")),
		})
		if err != nil {
			return err
		}
		out = append(out, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortEvents(out)
	return out, nil
}

// LoadOrderbook 加载订单簿 CSV
// 必需列: timestamp, venue, symbol, bid_price, ask_price, bid_size, ask_size
func LoadOrderbook(path string) ([]model.Event, error) {
	var out []model.Event
	err := readCSV(path, synthetic.OrderbookHeader, func(r row) error {
		ts, err := r.timestamp("timestamp")
		if err != nil {
			return err
		}
		var vals [4]float64
		for i, col := range []string{"bid_price", "ask_price", "bid_size", "ask_size"} {
			if vals[i], err = r.float(col); err != nil {
				return err
			}
		}
		ev, err := model.NewEvent(ts, "", model.OrderbookSnapshot{
			Venue:    r.str("venue"),
			Symbol:   r.str("symbol"),
			BidPrice: vals[0],
			AskPrice: vals[1],
			BidSize:  vals[2],
			AskSize:  vals[3],
		})
		if err != nil {
			return err
		}
		out = append(out, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortEvents(out)
	return out, nil
}

// LoadCandles 加载 K 线 CSV
func LoadCandles(path string) ([]model.Candle, error) {
	var out []model.Candle
	err := readCSV(path, synthetic.CandlesHeader, func(r row) error {
		ts, err := r.timestamp("timestamp")
		if err != nil {
			return err
		}
		c := model.Candle{Timestamp: ts, Venue: r.str("venue"), Symbol: r.str("symbol")}
		fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		for i, col := range []string{"open", "high", "low", "close", "volume"} {
			if *fields[i], err = r.float(col); err != nil {
				return err
			}
		}
		if err := c.Validate(); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func sortEvents(evs []model.Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		return evs[i].Timestamp().Before(evs[j].Timestamp())
	})
}

// row 一行 CSV 记录及其列索引
type row struct {
	cols   map[string]int
	record []string
}

func (r row) str(col string) string {
	return r.record[r.cols[col]]
}

func (r row) float(col string) (float64, error) {
	v, err := strconv.ParseFloat(r.str(col), 64)
	if err != nil {
		return 0, fmt.Errorf("列 %s 不是数字: %q", col, r.str(col))
	}
	return v, nil
}

// timestamp 解析时间，接受 RFC3339Nano 与 "2006-01-02 15:04:05" 两种格式（均视为 UTC）
func (r row) timestamp(col string) (time.Time, error) {
	s := r.str(col)
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04:05.999999999", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("列 %s 不是合法时间: %q", col, s)
	}
	return ts, nil
}

func readCSV(path string, required []string, fn func(row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开 %s 失败: %w", path, err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.ReuseRecord = true

	header, err := rd.Read()
	if err != nil {
		return fmt.Errorf("读取 %s 表头失败: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return fmt.Errorf("%s 缺少列 %q", path, name)
		}
	}

	for line := 2; ; line++ {
		record, err := rd.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s 第 %d 行: %w", path, line, err)
		}
		if err := fn(row{cols: cols, record: record}); err != nil {
			return fmt.Errorf("%s 第 %d 行: %w", path, line, err)
		}
	}
}
