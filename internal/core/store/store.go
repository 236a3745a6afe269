// Package store 把订单簿行聚合为策略使用的市场快照。
// 使用单写者模式避免锁和竞态条件。
package store

import (
	"slices"
	"time"

	"arbitrage-sim-lab/internal/core/model"
)

// Store 最新订单簿缓存（单写者）
// 注意：本结构体默认由单个 goroutine 写入；若要跨 goroutine 读，请通过消息或拷贝传递快照。
type Store struct {
	// books 按交易对、场所缓存最新订单簿
	// 第一层 key: Symbol（如 BTC-USD）
	// 第二层 key: Venue（如 venue_0）
	books map[string]map[string]model.OrderbookSnapshot
	// updated 每个交易对最后一次更新时间
	updated map[string]time.Time
}

// New 创建新的订单簿缓存
func New() *Store {
	return &Store{
		books:   make(map[string]map[string]model.OrderbookSnapshot, 1),
		updated: make(map[string]time.Time, 1),
	}
}

// Update 更新缓存
// 参数 ev: 订单簿事件；其他种类的事件被忽略
func (s *Store) Update(ev model.Event) {
	book, ok := ev.Orderbook()
	if !ok {
		return
	}

	symBooks, ok := s.books[book.Symbol]
	if !ok {
		symBooks = make(map[string]model.OrderbookSnapshot)
		s.books[book.Symbol] = symBooks
	}
	symBooks[book.Venue] = book
	s.updated[book.Symbol] = ev.Timestamp()
}

// Get 获取指定交易对与场所的最新订单簿
func (s *Store) Get(symbol, venue string) (model.OrderbookSnapshot, bool) {
	book, ok := s.books[symbol][venue]
	return book, ok
}

// Snapshot 用各场所最新订单簿构造市场快照
// 每个场所只有一行，所以 Rows 等于场所数。
func (s *Store) Snapshot(symbol string) *model.MarketSnapshot {
	symBooks := s.books[symbol]
	snap := &model.MarketSnapshot{
		Symbol: symbol,
		At:     s.updated[symbol],
		Quotes: make(map[string]model.Quote, len(symBooks)),
		Rows:   len(symBooks),
	}
	for venue, book := range symBooks {
		snap.Quotes[venue] = model.Quote{Bid: book.BidPrice, Ask: book.AskPrice}
	}
	return snap
}

// Window 一个时间窗口内同一交易对的订单簿行
type Window struct {
	// Start 窗口起始时间（已按窗口长度截断）
	Start time.Time
	// Symbol 交易对
	Symbol string
	// Rows 窗口内的订单簿行，保持输入顺序
	Rows []model.OrderbookSnapshot
}

// Add 追加一行
func (w *Window) Add(book model.OrderbookSnapshot) {
	w.Rows = append(w.Rows, book)
}

// Snapshot 把窗口内的行聚合为市场快照
// 每个场所取最高买价与最低卖价，即该窗口内最优的可成交价格。
func (w *Window) Snapshot() *model.MarketSnapshot {
	snap := &model.MarketSnapshot{
		Symbol: w.Symbol,
		At:     w.Start,
		Quotes: make(map[string]model.Quote),
		Rows:   len(w.Rows),
	}
	for _, row := range w.Rows {
		q, ok := snap.Quotes[row.Venue]
		if !ok {
			snap.Quotes[row.Venue] = model.Quote{Bid: row.BidPrice, Ask: row.AskPrice}
			continue
		}
		if row.BidPrice > q.Bid {
			q.Bid = row.BidPrice
		}
		if row.AskPrice < q.Ask {
			q.Ask = row.AskPrice
		}
		snap.Quotes[row.Venue] = q
	}
	return snap
}

// GroupByWindow 按时间窗口切分订单簿事件
// 参数 events: 订单簿事件（其他种类被忽略）
// 参数 symbol: 只保留该交易对；为空时保留全部
// 参数 window: 窗口长度，<=0 时按 1 分钟处理
// 返回值按窗口起始时间升序排列；输入无需有序。
func GroupByWindow(events []model.Event, symbol string, window time.Duration) []*Window {
	if window <= 0 {
		window = time.Minute
	}

	byStart := make(map[int64]*Window)
	starts := make([]int64, 0)
	for _, ev := range events {
		book, ok := ev.Orderbook()
		if !ok {
			continue
		}
		if symbol != "" && book.Symbol != symbol {
			continue
		}
		start := ev.Timestamp().Truncate(window)
		key := start.UnixNano()
		w, ok := byStart[key]
		if !ok {
			w = &Window{Start: start, Symbol: book.Symbol}
			byStart[key] = w
			starts = append(starts, key)
		}
		w.Add(book)
	}

	slices.Sort(starts)
	out := make([]*Window, 0, len(starts))
	for _, key := range starts {
		out = append(out, byStart[key])
	}
	return out
}
