package pricefeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	prices map[string]Price
	err    error
	calls  int
}

func (s *stubSource) Fetch(_ context.Context, _ []string) (map[string]Price, error) {
	s.calls++
	return s.prices, s.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestStaticTable(t *testing.T) {
	table := DefaultTable()

	p, ok := table.USDPrice("wflr")
	require.True(t, ok)
	assert.True(t, p.Equal(decimal.RequireFromString("0.02")))

	p, ok = table.USDPrice("USDC.e")
	require.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromInt(1)))

	_, ok = table.USDPrice("DOGE")
	assert.False(t, ok)
	assert.Len(t, table.Symbols(), len(table))
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	src := &stubSource{prices: map[string]Price{"wflr": {USD: decimal.RequireFromString("0.03")}}}

	c, err := NewCache(CacheConfig{Source: src, TTL: time.Minute, Now: clk.now})
	require.NoError(t, err)

	t.Run("falls back to the static table before the first refresh", func(t *testing.T) {
		p, ok := c.USDPrice("WFLR")
		require.True(t, ok)
		assert.Equal(t, "0.02", p.String())
		assert.True(t, c.Stale())
	})

	t.Run("refresh overlays remote prices", func(t *testing.T) {
		require.NoError(t, c.Refresh(ctx))
		p, _ := c.USDPrice("wflr")
		assert.Equal(t, "0.03", p.String())
		usdc, _ := c.USDPrice("USDC")
		assert.Equal(t, "1", usdc.String(), "symbols missing remotely keep the static price")
	})

	t.Run("fresh cache does not refetch", func(t *testing.T) {
		clk.t = clk.t.Add(30 * time.Second)
		require.NoError(t, c.Refresh(ctx))
		assert.Equal(t, 1, src.calls)
	})

	t.Run("failed refresh keeps stale prices", func(t *testing.T) {
		clk.t = clk.t.Add(time.Minute)
		src.err = errors.New("503")
		assert.Error(t, c.Refresh(ctx))
		p, _ := c.USDPrice("WFLR")
		assert.Equal(t, "0.03", p.String())
		src.err = nil
	})

	t.Run("change is derived from the daily snapshot", func(t *testing.T) {
		_, ok := c.Change24h("WFLR")
		assert.False(t, ok, "a single observation has no change")

		clk.t = clk.t.Add(2 * time.Hour)
		src.prices = map[string]Price{"WFLR": {USD: decimal.RequireFromString("0.033")}}
		require.NoError(t, c.Refresh(ctx))

		ch, ok := c.Change24h("WFLR")
		require.True(t, ok)
		assert.Equal(t, "10", ch.String())
	})

	t.Run("source supplied change wins", func(t *testing.T) {
		clk.t = clk.t.Add(time.Hour)
		src.prices = map[string]Price{"WFLR": {USD: decimal.RequireFromString("0.033"), Change24h: decimal.NewFromFloat(-2.5)}}
		require.NoError(t, c.Refresh(ctx))
		ch, ok := c.Change24h("wflr")
		require.True(t, ok)
		assert.Equal(t, "-2.5", ch.String())
	})

	_, err = NewCache(CacheConfig{TTL: time.Minute})
	assert.Error(t, err)
	_, err = NewCache(CacheConfig{Source: src})
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	var gotIDs string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIDs = r.URL.Query().Get("ids")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"flare-networks":{"usd":0.0215,"usd_24h_change":1.25},"weth":{"usd":2650}}`))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, map[string]string{
		"FLR":  "flare-networks",
		"WFLR": "flare-networks",
		"WETH": "weth",
		"HLS":  "helios",
	}, 0, time.Second)
	require.NoError(t, err)

	prices, err := src.Fetch(context.Background(), []string{"FLR", "WFLR", "WETH", "HLS", "UNKNOWN"})
	require.NoError(t, err)

	assert.Equal(t, "flare-networks,weth,helios", gotIDs)
	require.Contains(t, prices, "FLR")
	require.Contains(t, prices, "WFLR")
	assert.Equal(t, "0.0215", prices["WFLR"].USD.String())
	assert.Equal(t, "1.25", prices["FLR"].Change24h.String())
	assert.Equal(t, "2650", prices["WETH"].USD.String())
	assert.True(t, prices["WETH"].Change24h.IsZero())
	assert.NotContains(t, prices, "HLS", "ids absent from the response are skipped")
}

func TestHTTPSource_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") == "bad" {
			_, _ = w.Write([]byte(`not json`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, map[string]string{"A": "a", "B": "bad"}, 0, time.Second)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), []string{"A"})
	assert.ErrorContains(t, err, "unexpected status 400")

	_, err = src.Fetch(context.Background(), []string{"B"})
	assert.ErrorContains(t, err, "not valid JSON")

	empty, err := src.Fetch(context.Background(), []string{"Z"})
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = NewHTTPSource("::", map[string]string{"A": "a"}, 0, time.Second)
	assert.Error(t, err)
	_, err = NewHTTPSource(srv.URL, nil, 0, time.Second)
	assert.Error(t, err)
}
