package wsreplay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbitrage-sim-lab/internal/config"
	"arbitrage-sim-lab/internal/core/bus"
	"arbitrage-sim-lab/internal/core/model"
	"arbitrage-sim-lab/internal/util/backoff"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func books(t *testing.T, n int) []model.Event {
	t.Helper()
	out := make([]model.Event, 0, n)
	for i := 0; i < n; i++ {
		ev, err := model.NewEvent(t0.Add(time.Duration(i)*time.Second), "", model.OrderbookSnapshot{
			Venue: "venue_0", Symbol: "BTC-USD", BidPrice: 100 + float64(i), AskPrice: 101 + float64(i),
		})
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

type collector struct {
	mu   sync.Mutex
	bids []float64
}

func (c *collector) attach(b *bus.Bus) {
	b.Subscribe(model.KindOrderbook, func(ev model.Event) error {
		ob, _ := ev.Orderbook()
		c.mu.Lock()
		c.bids = append(c.bids, ob.BidPrice)
		c.mu.Unlock()
		return nil
	})
}

func fastBackoff(n int) ClientOption {
	return WithBackoff(backoff.New(time.Millisecond, 5*time.Millisecond, 0, backoff.WithMaxAttempts(n)))
}

func TestReplay_RoundTripInOrder(t *testing.T) {
	srv := NewServer(books(t, 5), config.ReplayConfig{}, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	b := bus.New(nil)
	var got collector
	got.attach(b)

	cli := NewClient(wsURL(ts), config.ReplayConfig{ReadTimeoutMs: 5000}, nil)
	require.NoError(t, cli.Run(context.Background(), b))

	assert.Equal(t, []float64{100, 101, 102, 103, 104}, got.bids)
	received, decodeErrs, _ := cli.Stats()
	assert.Equal(t, uint64(5), received)
	assert.Zero(t, decodeErrs)
	assert.Equal(t, uint64(5), srv.Sent())
}

func TestReplay_ResumeFromOffset(t *testing.T) {
	srv := NewServer(books(t, 5), config.ReplayConfig{}, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	b := bus.New(nil)
	var got collector
	got.attach(b)

	cli := NewClient(wsURL(ts)+"?from=3", config.ReplayConfig{}, nil)
	require.NoError(t, cli.Run(context.Background(), b))
	assert.Equal(t, []float64{103, 104}, got.bids)

	resp, err := http.Get(ts.URL + "?from=-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReplay_DecodeErrorsAreNotFatal(t *testing.T) {
	good, err := books(t, 1)[0].MarshalJSON()
	require.NoError(t, err)

	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"orderbook","timestamp":"2024-01-01T00:00:00Z","data":{"venue":"x","bogus":1}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, good)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, CloseReason), time.Now().Add(time.Second))
		_, _, _ = conn.ReadMessage()
	}))
	defer ts.Close()

	hookCalls := 0
	b := bus.New(nil)
	var got collector
	got.attach(b)

	cli := NewClient(wsURL(ts), config.ReplayConfig{}, nil, WithDecodeErrorHook(func() { hookCalls++ }))
	require.NoError(t, cli.Run(context.Background(), b))

	received, decodeErrs, _ := cli.Stats()
	assert.Equal(t, uint64(1), received)
	assert.Equal(t, uint64(2), decodeErrs)
	assert.Equal(t, 2, hookCalls)
	assert.Equal(t, []float64{100}, got.bids)
}

func TestReplay_ReconnectResumes(t *testing.T) {
	events := books(t, 4)
	var mu sync.Mutex
	var froms []string

	srv := NewServer(events, config.ReplayConfig{}, nil)
	upgrader := websocket.Upgrader{}
	first := true
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		froms = append(froms, r.URL.Query().Get("from"))
		isFirst := first
		first = false
		mu.Unlock()

		if !isFirst {
			srv.ServeHTTP(w, r)
			return
		}
		// 第一次连接推送两帧后异常断开
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for _, ev := range events[:2] {
			b, _ := ev.MarshalJSON()
			_ = conn.WriteMessage(websocket.TextMessage, b)
		}
		conn.Close()
	}))
	defer ts.Close()

	b := bus.New(nil)
	var got collector
	got.attach(b)

	cli := NewClient(wsURL(ts), config.ReplayConfig{}, nil, fastBackoff(3))
	require.NoError(t, cli.Run(context.Background(), b))

	assert.Equal(t, []float64{100, 101, 102, 103}, got.bids)
	assert.Equal(t, []string{"", "2"}, froms)
	_, _, reconnects := cli.Stats()
	assert.Equal(t, uint64(1), reconnects)
}

func TestReplay_CancelAndDialFailure(t *testing.T) {
	srv := NewServer(books(t, 100), config.ReplayConfig{IntervalMs: 50}, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	b := bus.New(nil)
	b.Subscribe(model.KindOrderbook, func(model.Event) error {
		cancel()
		return nil
	})
	err := NewClient(wsURL(ts), config.ReplayConfig{}, nil).Run(ctx, b)
	assert.ErrorIs(t, err, context.Canceled)

	dead := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(dead)
	dead.Close()
	err = NewClient(url, config.ReplayConfig{}, nil, fastBackoff(2)).Run(context.Background(), bus.New(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "回放重连失败")
}
