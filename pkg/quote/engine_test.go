package quote

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HeliosFLR/helios-ui-sub000/contracts/lbpair"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/pricefeed"
	"github.com/HeliosFLR/helios-ui-sub000/protocols/poolregistry"
	"github.com/HeliosFLR/helios-ui-sub000/protocols/token"
)

var (
	wflr = token.TokenView{ID: 1, Address: common.HexToAddress("0x0a"), Symbol: "WFLR", Decimals: 18}
	usdt = token.TokenView{ID: 2, Address: common.HexToAddress("0x0b"), Symbol: "USDT0", Decimals: 6}
	weth = token.TokenView{ID: 3, Address: common.HexToAddress("0x0c"), Symbol: "WETH", Decimals: 18}
	zzz  = token.TokenView{ID: 4, Address: common.HexToAddress("0x0d"), Symbol: "ZZZ", Decimals: 18}

	directPool = poolregistry.PoolView{ID: 1, Address: common.HexToAddress("0x1001"), TokenX: wflr.Address, TokenY: usdt.Address, BinStep: 15, Version: poolregistry.VersionV2_2}
	flrEthPool = poolregistry.PoolView{ID: 2, Address: common.HexToAddress("0x1002"), TokenX: wflr.Address, TokenY: weth.Address, BinStep: 25, Version: poolregistry.VersionV2_2}
	ethUsdPool = poolregistry.PoolView{ID: 3, Address: common.HexToAddress("0x1003"), TokenX: weth.Address, TokenY: usdt.Address, BinStep: 10, Version: poolregistry.VersionV2_2}
	zzzPool    = poolregistry.PoolView{ID: 4, Address: common.HexToAddress("0x1004"), TokenX: zzz.Address, TokenY: usdt.Address, BinStep: 20, Version: poolregistry.VersionV2_2}
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// fakeSimulator replays scripted answers per pool; the last answer repeats.
type fakeSimulator struct {
	answers map[common.Address][]simAnswer
	calls   map[common.Address]int
	lastDir map[common.Address]bool
}

type simAnswer struct {
	out lbpair.SwapOut
	err error
}

func newFakeSimulator() *fakeSimulator {
	return &fakeSimulator{
		answers: map[common.Address][]simAnswer{},
		calls:   map[common.Address]int{},
		lastDir: map[common.Address]bool{},
	}
}

func (f *fakeSimulator) script(pool common.Address, answers ...simAnswer) {
	f.answers[pool] = answers
}

func (f *fakeSimulator) GetSwapOut(_ context.Context, pair common.Address, _ *big.Int, swapForY bool) (lbpair.SwapOut, error) {
	n := f.calls[pair]
	f.calls[pair]++
	f.lastDir[pair] = swapForY
	answers := f.answers[pair]
	if len(answers) == 0 {
		return lbpair.SwapOut{}, errors.New("execution reverted")
	}
	if n >= len(answers) {
		n = len(answers) - 1
	}
	return answers[n].out, answers[n].err
}

func answer(out, left, fee int64) simAnswer {
	return simAnswer{out: lbpair.SwapOut{AmountInLeft: big.NewInt(left), AmountOut: big.NewInt(out), Fee: big.NewInt(fee)}}
}

func okBig(out, left, fee *big.Int) simAnswer {
	return simAnswer{out: lbpair.SwapOut{AmountInLeft: left, AmountOut: out, Fee: fee}}
}

func fail(msg string) simAnswer {
	return simAnswer{err: errors.New(msg)}
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

type fixture struct {
	engine *Engine
	sim    *fakeSimulator
	clock  *testClock
	cache  *Cache
}

func newFixture(t *testing.T, withCache bool, pools ...poolregistry.PoolView) fixture {
	t.Helper()
	sim := newFakeSimulator()
	clock := &testClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	var cache *Cache
	if withCache {
		cache = NewCache(15*time.Second, clock.now)
	}
	cfg := DefaultConfig()
	cfg.Simulator = sim
	cfg.Prices = pricefeed.DefaultTable()
	cfg.Tokens = token.NewIndexableTokenSystem([]token.TokenView{wflr, usdt, weth, zzz})
	cfg.Pools = poolregistry.NewIndexablePoolRegistry(pools)
	cfg.Logger = slog.New(slog.DiscardHandler)
	cfg.Cache = cache
	cfg.Registry = prometheus.NewRegistry()
	cfg.RetryInterval = 0
	cfg.Now = clock.now

	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return fixture{engine: e, sim: sim, clock: clock, cache: cache}
}

func TestQuote_LiveDirect(t *testing.T) {
	f := newFixture(t, false, directPool)
	f.sim.script(directPool.Address, okBig(big.NewInt(19_900_000), big.NewInt(0), big.NewInt(3e15)))

	q, err := f.engine.Quote(context.Background(), wflr.Address, usdt.Address, ether(1000))
	require.NoError(t, err)

	assert.Equal(t, SourceLive, q.Source)
	assert.False(t, q.IsEstimate)
	assert.Equal(t, "19900000", q.AmountOut.String())
	assert.Equal(t, "3000000000000000", q.Fee.String())
	assert.Equal(t, "0.15", q.FeePercent.String())
	assert.True(t, q.PriceImpact.IsZero())
	require.NotNil(t, q.Route)
	assert.True(t, q.Route.IsDirect())
	assert.True(t, f.sim.lastDir[directPool.Address], "WFLR is tokenX so the swap is for Y")
	assert.Equal(t, f.clock.t, q.QuotedAt)
}

func TestQuote_ReverseDirection(t *testing.T) {
	f := newFixture(t, false, directPool)
	f.sim.script(directPool.Address, answer(1000, 0, 0))

	_, err := f.engine.Quote(context.Background(), usdt.Address, wflr.Address, big.NewInt(20_000_000))
	require.NoError(t, err)
	assert.False(t, f.sim.lastDir[directPool.Address])
}

func TestQuote_LiveImpactClamp(t *testing.T) {
	tests := []struct {
		name string
		left *big.Int
		want string
	}{
		{"fully absorbed", big.NewInt(0), "0"},
		{"small remainder", new(big.Int).Div(ether(1000), big.NewInt(1000)), "0.1"},
		{"large remainder is capped", new(big.Int).Div(ether(1000), big.NewInt(10)), "0.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false, directPool)
			f.sim.script(directPool.Address, okBig(big.NewInt(1), tt.left, big.NewInt(0)))

			q, err := f.engine.Quote(context.Background(), wflr.Address, usdt.Address, ether(1000))
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.PriceImpact.String())
		})
	}
}

func TestQuote_RetriesThenSucceeds(t *testing.T) {
	f := newFixture(t, false, directPool)
	f.sim.script(directPool.Address, fail("timeout"), fail("timeout"), answer(500, 0, 0))

	q, err := f.engine.Quote(context.Background(), wflr.Address, usdt.Address, ether(1))
	require.NoError(t, err)

	assert.Equal(t, SourceLive, q.Source)
	assert.Equal(t, int64(500), q.AmountOut.Int64())
	assert.Equal(t, 3, f.sim.calls[directPool.Address])
	assert.Equal(t, 2.0, testutil.ToFloat64(f.engine.metrics.rpcRetries))
}

func TestQuote_FallbackOnPersistentError(t *testing.T) {
	f := newFixture(t, false, directPool)
	f.sim.script(directPool.Address, fail("connection refused"))

	q, err := f.engine.Quote(context.Background(), wflr.Address, usdt.Address, ether(1000))
	require.NoError(t, err)

	assert.Equal(t, SourceEstimate, q.Source)
	assert.True(t, q.IsEstimate)
	assert.Equal(t, 3, f.sim.calls[directPool.Address], "bounded to three attempts")
	require.NotNil(t, q.Route, "the route is kept for display")
	// 1000 WFLR at $0.02 = $20, converted at $1 then less 0.3% fee and 0.1% impact
	assert.Equal(t, "19920060", q.AmountOut.String())
	assert.Equal(t, "0.1", q.PriceImpact.String())
	assert.Equal(t, "0.3", q.FeePercent.String())
	assert.Equal(t, "3000000000000000000", q.Fee.String())
}

func TestQuote_FallbackOnZeroOutput(t *testing.T) {
	f := newFixture(t, false, directPool)
	f.sim.script(directPool.Address, answer(0, 0, 0))

	q, err := f.engine.Quote(context.Background(), wflr.Address, usdt.Address, ether(1000))
	require.NoError(t, err)

	assert.Equal(t, SourceEstimate, q.Source)
	assert.Equal(t, 1, f.sim.calls[directPool.Address], "a zero answer is not retried")
	assert.Equal(t, "19920060", q.AmountOut.String())
}

func TestQuote_FallbackWithoutRoute(t *testing.T) {
	f := newFixture(t, false)

	q, err := f.engine.Quote(context.Background(), wflr.Address, usdt.Address, ether(1000))
	require.NoError(t, err)

	assert.True(t, q.IsEstimate)
	assert.Nil(t, q.Route)
	assert.Equal(t, "19920060", q.AmountOut.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.engine.metrics.quotesTotal.WithLabelValues("estimate", "ok")))
}

func TestQuote_FallbackUnknownPrice(t *testing.T) {
	f := newFixture(t, false, zzzPool)

	q, err := f.engine.Quote(context.Background(), zzz.Address, usdt.Address, ether(5))
	require.NoError(t, err)

	assert.True(t, q.IsEstimate)
	assert.Equal(t, int64(0), q.AmountOut.Int64())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.engine.metrics.quotesTotal.WithLabelValues("estimate", "empty")))
}

func TestQuote_MultiHopIsPartial(t *testing.T) {
	f := newFixture(t, false, flrEthPool, ethUsdPool)
	// 1000 WFLR -> 0.008 WETH on the live first hop
	f.sim.script(flrEthPool.Address, okBig(big.NewInt(8e15), big.NewInt(0), big.NewInt(0)))

	q, err := f.engine.Quote(context.Background(), wflr.Address, usdt.Address, ether(1000))
	require.NoError(t, err)

	assert.Equal(t, SourcePartial, q.Source)
	assert.True(t, q.IsEstimate)
	require.NotNil(t, q.Route)
	assert.Equal(t, 2, q.Route.HopCount())
	// 0.008 WETH at $2500 = 20 USDT0, less the 0.1% second-hop bin step fee
	assert.Equal(t, "19980000", q.AmountOut.String())
	assert.Equal(t, "0.35", q.FeePercent.String())
	assert.Zero(t, f.sim.calls[ethUsdPool.Address], "only the first hop is simulated")
}

func TestQuote_Cache(t *testing.T) {
	f := newFixture(t, true, directPool)
	f.sim.script(directPool.Address, answer(700, 0, 0))
	ctx := context.Background()

	first, err := f.engine.Quote(ctx, wflr.Address, usdt.Address, ether(1))
	require.NoError(t, err)
	first.AmountOut.SetInt64(1)
	require.NotNil(t, first.Route)
	first.Route.Path[1] = common.HexToAddress("0xdead")
	first.Route.BinSteps[0] = 1
	first.Route.Hops[0].Pool.ID = 99

	second, err := f.engine.Quote(ctx, wflr.Address, usdt.Address, ether(1))
	require.NoError(t, err)
	assert.Equal(t, int64(700), second.AmountOut.Int64(), "cached quotes are copies")
	require.NotNil(t, second.Route)
	assert.Equal(t, usdt.Address, second.Route.Path[1], "route slices are copied too")
	assert.Equal(t, directPool.BinStep, second.Route.BinSteps[0])
	assert.Equal(t, directPool.ID, second.Route.Hops[0].Pool.ID)
	assert.Equal(t, 1, f.sim.calls[directPool.Address])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.engine.metrics.cacheHits))

	_, err = f.engine.Quote(ctx, wflr.Address, usdt.Address, ether(2))
	require.NoError(t, err)
	assert.Equal(t, 2, f.sim.calls[directPool.Address], "different amount misses")

	f.clock.t = f.clock.t.Add(15 * time.Second)
	_, err = f.engine.Quote(ctx, wflr.Address, usdt.Address, ether(1))
	require.NoError(t, err)
	assert.Equal(t, 3, f.sim.calls[directPool.Address], "expired entry misses")

	f.cache.Purge()
	assert.Zero(t, f.cache.Len())
}

func TestQuote_InvalidInput(t *testing.T) {
	f := newFixture(t, false, directPool)
	ctx := context.Background()

	_, err := f.engine.Quote(ctx, wflr.Address, usdt.Address, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.engine.Quote(ctx, wflr.Address, usdt.Address, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.engine.Quote(ctx, wflr.Address, wflr.Address, big.NewInt(1))
	assert.ErrorIs(t, err, ErrSameToken)
	_, err = f.engine.Quote(ctx, common.HexToAddress("0xdead"), usdt.Address, big.NewInt(1))
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestFallbackImpact(t *testing.T) {
	tests := []struct {
		notional string
		want     string
	}{
		{"0", "0.1"},
		{"10000", "0.1"},
		{"20000", "0.6"},
		{"15000", "0.35"},
		{"100000", "4.6"},
		{"1000000", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.notional, func(t *testing.T) {
			got := FallbackImpact(decimal.RequireFromString(tt.notional))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestMinAmountOut(t *testing.T) {
	live := &Quote{AmountOut: big.NewInt(10_000)}
	got, err := MinAmountOut(live, 50, false)
	require.NoError(t, err)
	assert.Equal(t, int64(9950), got.Int64())

	estimate := &Quote{AmountOut: big.NewInt(10_000), IsEstimate: true}
	_, err = MinAmountOut(estimate, 50, false)
	assert.ErrorIs(t, err, ErrEstimateQuote)

	got, err = MinAmountOut(estimate, 100, true)
	require.NoError(t, err)
	assert.Equal(t, int64(9900), got.Int64())

	_, err = MinAmountOut(live, 10_001, false)
	assert.Error(t, err)
	_, err = MinAmountOut(nil, 0, false)
	assert.Error(t, err)
}

func TestNewEngine_Validation(t *testing.T) {
	cfg := DefaultConfig()
	_, err := NewEngine(cfg)
	assert.ErrorContains(t, err, "simulator is required")

	cfg.Simulator = newFakeSimulator()
	cfg.Prices = pricefeed.DefaultTable()
	cfg.Tokens = token.NewIndexableTokenSystem(nil)
	cfg.Pools = poolregistry.NewIndexablePoolRegistry(nil)
	cfg.Logger = slog.New(slog.DiscardHandler)
	cfg.RetryAttempts = 0
	_, err = NewEngine(cfg)
	assert.ErrorContains(t, err, "retry attempts")
}
