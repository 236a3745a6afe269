package telemetry

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbitrage-sim-lab/internal/core/bus"
	"arbitrage-sim-lab/internal/core/model"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func mustEvent(t *testing.T, p model.Payload) model.Event {
	t.Helper()
	ev, err := model.NewEvent(t0, "", p)
	require.NoError(t, err)
	return ev
}

func TestCollector_CountsBusEvents(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	c.SetCapital(1000)

	b := bus.New(nil)
	c.Attach(b)

	b.Publish(mustEvent(t, model.Signal{
		ID: "s", Symbol: "BTC-USD", Side: model.SideBuy, VenueBuy: "a", VenueSell: "b",
		PriceBuy: 100, PriceSell: 101, Size: 1,
	}))
	b.Publish(mustEvent(t, model.Fill{ID: "f1", OrderID: 1, Symbol: "BTC-USD", Side: model.SideBuy, Venue: "a", Price: 100, Size: 1, Fee: 0}))
	b.Publish(mustEvent(t, model.Fill{ID: "f2", OrderID: 2, Symbol: "BTC-USD", Side: model.SideSell, Venue: "b", Price: 101, Size: 1, Fee: 0}))
	c.RecordRejection("limits", "Exposure 1 exceeds max 0")
	c.RecordDecodeError()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.signals))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.events.WithLabelValues("fill")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fills.WithLabelValues("sell")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejections.WithLabelValues("limits")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.decodeErrors))
	assert.InDelta(t, 1001, testutil.ToFloat64(c.capital), 1e-9)
}

func TestCollector_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)
	c.RecordRejection("kill_switch", "")

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))
	assert.Contains(t, buf.String(), `arblab_risk_rejections_total{gate="kill_switch"} 1`)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "arblab_capital")

	_, err = New(reg)
	assert.Error(t, err, "重复注册应失败")
}
