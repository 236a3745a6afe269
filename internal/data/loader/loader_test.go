package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbitrage-sim-lab/internal/config"
	"arbitrage-sim-lab/internal/core/model"
	"arbitrage-sim-lab/internal/data/synthetic"
)

func TestLoadDir_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	g := synthetic.New(config.SyntheticConfig{Seed: 42, Venues: 3}, nil)
	_, err := g.WriteAll(dir, start, 1, "BTC-USD")
	require.NoError(t, err)

	ds, err := LoadDir(dir)
	require.NoError(t, err)
	require.NoError(t, ds.RequireOrderbook())
	assert.Len(t, ds.Trades, 1440*5)
	assert.Len(t, ds.Orderbook, 1440*3)
	assert.Len(t, ds.Candles, 96)

	first, ok := ds.Orderbook[0].Orderbook()
	require.True(t, ok)
	assert.Equal(t, "venue_0", first.Venue)
	assert.True(t, ds.Orderbook[0].Timestamp().Equal(start))
	assert.Equal(t, model.KindTrade, ds.Trades[0].Kind())
}

func TestLoadDir_MissingFiles(t *testing.T) {
	ds, err := LoadDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, ds.Trades)
	assert.True(t, errors.Is(ds.RequireOrderbook(), ErrNoOrderbook))
}

func TestLoadOrderbook_Errors(t *testing.T) {
	dir := t.TempDir()

	crossed := filepath.Join(dir, "crossed.csv")
	require.NoError(t, os.WriteFile(crossed, []byte(
		"timestamp,venue,symbol,bid_price,ask_price,bid_size,ask_size\n"+
			"2024-01-01T00:00:00Z,a,BTC-USD,100,101,1,1\n"+
			"2024-01-01T00:00:00Z,b,BTC-USD,102,101,1,1\n"), 0o644))
	_, err := LoadOrderbook(crossed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidEvent))
	assert.Contains(t, err.Error(), "第 3 行")

	missing := filepath.Join(dir, "missing.csv")
	require.NoError(t, os.WriteFile(missing, []byte("timestamp,venue,symbol,bid_price\n"), 0o644))
	_, err = LoadOrderbook(missing)
	assert.ErrorContains(t, err, "ask_price")
}

func TestLoadOrderbook_RejectsNonFinite(t *testing.T) {
	dir := t.TempDir()
	for name, row := range map[string]string{
		"nan_ask.csv":  "2024-01-01T00:00:00Z,v0,BTC-USD,99,NaN,1,1",
		"inf_bid.csv":  "2024-01-01T00:00:00Z,v0,BTC-USD,+Inf,102,1,1",
		"nan_size.csv": "2024-01-01T00:00:00Z,v0,BTC-USD,99,100,nan,1",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(
			"timestamp,venue,symbol,bid_price,ask_price,bid_size,ask_size\n"+
				"2024-01-01T00:00:00Z,v1,BTC-USD,101,102,1,1\n"+row+"\n"), 0o644))
		_, err := LoadOrderbook(path)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, model.ErrInvalidEvent), name)
		assert.Contains(t, err.Error(), "第 3 行", name)
	}

	// 整个目录加载同样在回测开始前失败
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orderbook.csv"), []byte(
		"timestamp,venue,symbol,bid_price,ask_price,bid_size,ask_size\n"+
			"2024-01-01T00:00:00Z,v0,BTC-USD,99,NaN,1,1\n"+
			"2024-01-01T00:00:00Z,v1,BTC-USD,101,102,1,1\n"), 0o644))
	_, err := LoadDir(dir)
	assert.ErrorIs(t, err, model.ErrInvalidEvent)
}

func TestLoadOrderbook_ColumnOrderAndSorting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ob.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"ask_price,bid_price,venue,symbol,timestamp,ask_size,bid_size\n"+
			"101,100,b,BTC-USD,2024-01-01 00:00:30,2,3\n"+
			"201,200,a,BTC-USD,2024-01-01T00:00:00Z,4,5\n"), 0o644))

	evs, err := LoadOrderbook(path)
	require.NoError(t, err)
	require.Len(t, evs, 2)

	b, _ := evs[0].Orderbook()
	assert.Equal(t, "a", b.Venue)
	assert.Equal(t, 200.0, b.BidPrice)
	assert.Equal(t, 4.0, b.AskSize)
}
