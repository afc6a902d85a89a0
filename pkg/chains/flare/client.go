// Package flare wires the liquidity-book client together for Flare networks.
//
// Client is the one place where configuration turns into collaborators:
// registries, the pair reader, the quote engine, the price cache and the XP
// engine. Commands use it instead of assembling the pieces themselves.
package flare

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/HeliosFLR/helios-ui-sub000/cmd/client/config"
	"github.com/HeliosFLR/helios-ui-sub000/contracts/lbpair"
	"github.com/HeliosFLR/helios-ui-sub000/contracts/lbrouter"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/binmath"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/chains"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/distribution"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/pricefeed"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/quote"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/txflow"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/xp"
	"github.com/HeliosFLR/helios-ui-sub000/protocols/poolregistry"
	"github.com/HeliosFLR/helios-ui-sub000/protocols/token"
	"github.com/HeliosFLR/helios-ui-sub000/storage/kv"
	"github.com/HeliosFLR/helios-ui-sub000/streams/activebin"
)

var ErrUnsupportedChain = errors.New("flare: unsupported chain")

// rebalanceIDSlippage is the active-bin drift tolerated between planning a
// rebalance and mining its deposit.
const rebalanceIDSlippage = 5

// Backend is the node surface the client needs. *ethclient.Client
// satisfies it.
type Backend interface {
	lbpair.Caller
	activebin.BlockNumberer
	txflow.ReceiptFetcher
	txflow.Backend
}

// Client bundles the configured components.
type Client struct {
	Tokens *token.IndexableTokenSystem
	Pools  *poolregistry.IndexablePoolRegistry
	Reader *lbpair.Reader
	Packer *lbrouter.Packer
	Quotes *quote.Engine
	XP     *xp.Engine
	// Prices is the remote-backed cache, or the static table when no price
	// feed is configured.
	Prices pricefeed.PriceSource

	cfg        *config.ClientConfig
	backend    Backend
	priceCache *pricefeed.Cache
	logger     *slog.Logger
	now        func() time.Time
}

// New builds a Client. store holds XP profiles; reg may be nil.
func New(cfg *config.ClientConfig, backend Backend, store kv.Store, logger *slog.Logger, reg prometheus.Registerer) (*Client, error) {
	if cfg == nil || backend == nil || store == nil || logger == nil {
		return nil, errors.New("flare: config, backend, store and logger are required")
	}
	if !chains.Supported(cfg.ChainID.Uint64()) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, chains.Name(cfg.ChainID.Uint64()))
	}

	c := &Client{
		Tokens:  token.New().Index(cfg.TokenViews()),
		Pools:   poolregistry.New().Index(cfg.PoolViews()),
		cfg:     cfg,
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}

	var limiter *rate.Limiter
	if cfg.RPCRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPCRateLimit), max(1, int(cfg.RPCRateLimit)))
	}
	reader, err := lbpair.NewReader(backend, limiter)
	if err != nil {
		return nil, err
	}
	c.Reader = reader

	if c.Packer, err = lbrouter.NewPacker(); err != nil {
		return nil, err
	}

	c.Prices = pricefeed.DefaultTable()
	if cfg.PriceFeed.URL != "" {
		src, err := pricefeed.NewHTTPSource(cfg.PriceFeed.URL, cfg.PriceFeed.IDs, cfg.PriceFeed.RetryMax, cfg.PriceFeed.Timeout)
		if err != nil {
			return nil, err
		}
		c.priceCache, err = pricefeed.NewCache(pricefeed.CacheConfig{
			Source: src,
			TTL:    cfg.PriceFeed.TTL,
			Logger: logger.With("component", "price-cache"),
		})
		if err != nil {
			return nil, err
		}
		c.Prices = c.priceCache
	}

	qcfg := quote.DefaultConfig()
	qcfg.Simulator = reader
	qcfg.Prices = c.Prices
	qcfg.Tokens = c.Tokens
	qcfg.Pools = c.Pools
	qcfg.Logger = logger.With("component", "quote-engine")
	qcfg.Cache = quote.NewCache(cfg.Quote.CacheTTL, nil)
	qcfg.Registry = reg
	qcfg.RetryAttempts = cfg.Quote.RetryAttempts
	qcfg.RetryInterval = cfg.Quote.RetryInterval
	if c.Quotes, err = quote.NewEngine(qcfg); err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if c.XP, err = xp.NewEngine(xp.Config{
		Store:      store,
		Logger:     logger.With("component", "xp-engine"),
		Location:   loc,
		HistoryCap: cfg.XP.HistoryCap,
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenStore returns the Redis store when one is configured and an in-memory
// store otherwise, with a function releasing the connection.
func OpenStore(cfg *config.ClientConfig) (kv.Store, func() error, error) {
	if cfg.Redis == nil {
		return kv.NewMemoryStore(), func() error { return nil }, nil
	}
	client := kv.NewRedisClient(kv.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	rs, err := kv.NewRedisStore(client, cfg.Redis.Prefix)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return rs, client.Close, nil
}

// Router returns the configured router address.
func (c *Client) Router() common.Address {
	return c.cfg.Router
}

// RefreshPrices pulls remote prices when the cache is stale.
func (c *Client) RefreshPrices(ctx context.Context) {
	if c.priceCache == nil || !c.priceCache.Stale() {
		return
	}
	// failures are logged by the cache and stale prices keep being served
	_ = c.priceCache.Refresh(ctx)
}

// Change24h returns symbol's 24h price change in percent. It is only known
// when a remote price feed is configured.
func (c *Client) Change24h(symbol string) (decimal.Decimal, bool) {
	if c.priceCache == nil {
		return decimal.Zero, false
	}
	return c.priceCache.Change24h(symbol)
}

// --- Bins ---

// BinTarget is a bin picked relative to the pool's current active bin.
type BinTarget struct {
	ActiveID uint32
	BinID    uint32
	Price    decimal.Decimal
}

// TargetBin reads pool's active bin and estimates the bin reached after
// moving the price by deltaPercent (e.g. -5 for 5% lower).
func (c *Client) TargetBin(ctx context.Context, pool poolregistry.PoolView, deltaPercent float64) (BinTarget, error) {
	x, y, err := c.poolDecimals(pool)
	if err != nil {
		return BinTarget{}, err
	}
	active, err := c.Reader.ActiveID(ctx, pool.Address)
	if err != nil {
		return BinTarget{}, err
	}
	id := binmath.BinFromPriceDelta(active, pool.BinStep, deltaPercent/100)
	return BinTarget{
		ActiveID: active,
		BinID:    id,
		Price:    binmath.PriceDecimal(id, pool.BinStep, x, y, 8),
	}, nil
}

// BinForPrice returns the bin of pool whose price (tokenY per tokenX) is
// nearest to price.
func (c *Client) BinForPrice(pool poolregistry.PoolView, price float64) (uint32, error) {
	x, y, err := c.poolDecimals(pool)
	if err != nil {
		return 0, err
	}
	return binmath.BinFromPrice(price, pool.BinStep, x, y)
}

func (c *Client) poolDecimals(pool poolregistry.PoolView) (uint8, uint8, error) {
	x, ok := c.Tokens.GetByAddress(pool.TokenX)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", quote.ErrUnknownToken, pool.TokenX.Hex())
	}
	y, ok := c.Tokens.GetByAddress(pool.TokenY)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", quote.ErrUnknownToken, pool.TokenY.Hex())
	}
	return x.Decimals, y.Decimals, nil
}

// --- Quotes ---

// QuoteAmount quotes amount whole units of the token referenced by in
// (symbol or address) for out.
func (c *Client) QuoteAmount(ctx context.Context, in, out string, amount decimal.Decimal) (*quote.Quote, error) {
	tokenIn, ok := c.Tokens.Resolve(in)
	if !ok {
		return nil, fmt.Errorf("%w: %s", quote.ErrUnknownToken, in)
	}
	tokenOut, ok := c.Tokens.Resolve(out)
	if !ok {
		return nil, fmt.Errorf("%w: %s", quote.ErrUnknownToken, out)
	}
	c.RefreshPrices(ctx)
	return c.Quotes.Quote(ctx, tokenIn.Address, tokenOut.Address, ToRaw(amount, tokenIn.Decimals))
}

// ToRaw scales whole units to base units, truncating.
func ToRaw(amount decimal.Decimal, decimals uint8) *big.Int {
	if !amount.IsPositive() {
		return big.NewInt(0)
	}
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromRaw scales base units to whole units.
func FromRaw(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// VolumeUSD values a quote's input at reference prices, zero when the price
// is unknown.
func (c *Client) VolumeUSD(q *quote.Quote) decimal.Decimal {
	in, ok := c.Tokens.GetByAddress(q.TokenIn)
	if !ok {
		return decimal.Zero
	}
	price, ok := c.Prices.USDPrice(in.Symbol)
	if !ok {
		return decimal.Zero
	}
	return FromRaw(q.AmountIn, in.Decimals).Mul(price)
}

// --- Transactions ---

func (c *Client) deadline() time.Time {
	return c.now().Add(c.cfg.Tx.Deadline)
}

// NewRunner returns a transaction runner sending through sender.
func (c *Client) NewRunner(sender txflow.Sender) (*txflow.Runner, error) {
	return txflow.NewRunner(txflow.RunnerConfig{
		Sender:       sender,
		Receipts:     c.backend,
		PollInterval: c.cfg.Tx.PollInterval,
		Logger:       c.logger.With("component", "tx-runner"),
	})
}

// NewKeySender signs with a local key for the configured chain.
func (c *Client) NewKeySender(key *ecdsa.PrivateKey) *txflow.KeySender {
	return txflow.NewKeySender(c.backend, key, c.cfg.ChainID)
}

// approvalIfNeeded returns an ERC-20 approve request when spender may not
// yet move amount of tokenAddr.
func (c *Client) approvalIfNeeded(ctx context.Context, tokenAddr, owner common.Address, amount *big.Int) (*txflow.TxRequest, error) {
	err := txflow.CheckAllowance(ctx, c.Reader, tokenAddr, owner, c.cfg.Router, amount)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, txflow.ErrInsufficientAllowance) {
		return nil, err
	}
	data, err := c.Packer.Approve(c.cfg.Router, amount)
	if err != nil {
		return nil, err
	}
	return &txflow.TxRequest{Step: txflow.StepApprove, Label: "approve", To: tokenAddr, Data: data}, nil
}

// SwapRequests turns a live quote into an optional approval followed by
// the swap. Estimate quotes are refused.
func (c *Client) SwapRequests(ctx context.Context, q *quote.Quote, owner common.Address) ([]txflow.TxRequest, error) {
	if q.Route == nil {
		return nil, errors.New("flare: quote has no route")
	}
	minOut, err := quote.MinAmountOut(q, c.cfg.Tx.SlippageBps, false)
	if err != nil {
		return nil, err
	}
	if err := txflow.CheckBalance(ctx, c.Reader, q.TokenIn, owner, q.AmountIn); err != nil {
		return nil, err
	}

	var reqs []txflow.TxRequest
	approve, err := c.approvalIfNeeded(ctx, q.TokenIn, owner, q.AmountIn)
	if err != nil {
		return nil, err
	}
	if approve != nil {
		reqs = append(reqs, *approve)
	}
	data, err := c.Packer.SwapExactTokensForTokens(q.AmountIn, minOut, *q.Route, owner, c.deadline())
	if err != nil {
		return nil, err
	}
	return append(reqs, txflow.TxRequest{Label: "swap", To: c.cfg.Router, Data: data}), nil
}

// Deposit describes liquidity to add around the active bin.
type Deposit struct {
	Pool    poolregistry.PoolView
	AmountX *big.Int
	AmountY *big.Int
	Range   int
	Mode    distribution.Mode
	// IDSlippage is the tolerated active-bin drift in bins.
	IDSlippage uint32
}

func (d Deposit) side() distribution.Side {
	hasX := d.AmountX != nil && d.AmountX.Sign() > 0
	hasY := d.AmountY != nil && d.AmountY.Sign() > 0
	switch {
	case hasX && !hasY:
		return distribution.XOnly
	case hasY && !hasX:
		return distribution.YOnly
	default:
		return distribution.Both
	}
}

func (c *Client) addLiquidityData(ctx context.Context, owner common.Address, d Deposit) ([]byte, error) {
	active, err := c.Reader.ActiveID(ctx, d.Pool.Address)
	if err != nil {
		return nil, err
	}
	weights, err := distribution.Build(d.Range, d.Mode, d.side())
	if err != nil {
		return nil, err
	}
	params, err := lbrouter.NewLiquidityParameters(lbrouter.AddLiquidityRequest{
		TokenX:      d.Pool.TokenX,
		TokenY:      d.Pool.TokenY,
		BinStep:     d.Pool.BinStep,
		AmountX:     d.AmountX,
		AmountY:     d.AmountY,
		SlippageBps: c.cfg.Tx.SlippageBps,
		ActiveID:    active,
		IDSlippage:  d.IDSlippage,
		Weights:     weights,
		Recipient:   owner,
		Deadline:    c.deadline(),
	})
	if err != nil {
		return nil, err
	}
	return c.Packer.AddLiquidity(params)
}

// AddLiquidityRequests returns token approvals as needed followed by the
// deposit.
func (c *Client) AddLiquidityRequests(ctx context.Context, owner common.Address, d Deposit) ([]txflow.TxRequest, error) {
	var reqs []txflow.TxRequest
	for _, leg := range []struct {
		token  common.Address
		amount *big.Int
	}{{d.Pool.TokenX, d.AmountX}, {d.Pool.TokenY, d.AmountY}} {
		if leg.amount == nil || leg.amount.Sign() == 0 {
			continue
		}
		if err := txflow.CheckBalance(ctx, c.Reader, leg.token, owner, leg.amount); err != nil {
			return nil, err
		}
		approve, err := c.approvalIfNeeded(ctx, leg.token, owner, leg.amount)
		if err != nil {
			return nil, err
		}
		if approve != nil {
			reqs = append(reqs, *approve)
		}
	}
	data, err := c.addLiquidityData(ctx, owner, d)
	if err != nil {
		return nil, err
	}
	return append(reqs, txflow.TxRequest{Step: txflow.StepAdd, Label: "add liquidity", To: c.cfg.Router, Data: data}), nil
}

// RebalancePlan withdraws owner's shares in ids and redeposits the
// withdrawn amounts around the current active bin. Approvals cover the
// position and any token the router may not yet pull for the deposit.
func (c *Client) RebalancePlan(ctx context.Context, owner common.Address, pool poolregistry.PoolView, ids []uint32, binRange int, mode distribution.Mode) (txflow.RebalancePlan, error) {
	if len(ids) == 0 {
		return txflow.RebalancePlan{}, errors.New("flare: no bins to rebalance")
	}
	shares := make([]*big.Int, 0, len(ids))
	held := make([]uint32, 0, len(ids))
	totalX, totalY := new(big.Int), new(big.Int)
	for _, id := range ids {
		s, err := c.Reader.SharesOf(ctx, pool.Address, owner, id)
		if err != nil {
			return txflow.RebalancePlan{}, err
		}
		if s.Sign() == 0 {
			continue
		}
		x, y, err := c.Reader.BinAmounts(ctx, pool.Address, owner, id)
		if err != nil {
			return txflow.RebalancePlan{}, err
		}
		held = append(held, id)
		shares = append(shares, s)
		totalX.Add(totalX, x)
		totalY.Add(totalY, y)
	}
	if len(held) == 0 {
		return txflow.RebalancePlan{}, errors.New("flare: no position in the given bins")
	}

	minX := lbrouter.ApplySlippage(totalX, c.cfg.Tx.SlippageBps)
	minY := lbrouter.ApplySlippage(totalY, c.cfg.Tx.SlippageBps)
	removeData, err := c.Packer.RemoveLiquidity(pool.TokenX, pool.TokenY, pool.BinStep, minX, minY, held, shares, owner, c.deadline())
	if err != nil {
		return txflow.RebalancePlan{}, err
	}
	// redeposit what the removal is guaranteed to return
	addData, err := c.addLiquidityData(ctx, owner, Deposit{Pool: pool, AmountX: minX, AmountY: minY, Range: binRange, Mode: mode, IDSlippage: rebalanceIDSlippage})
	if err != nil {
		return txflow.RebalancePlan{}, err
	}

	plan := txflow.RebalancePlan{
		Remove: txflow.TxRequest{Label: "remove liquidity", To: c.cfg.Router, Data: removeData},
		Add:    txflow.TxRequest{Label: "add liquidity", To: c.cfg.Router, Data: addData},
	}
	approved, err := c.Reader.IsApprovedForAll(ctx, pool.Address, owner, c.cfg.Router)
	if err != nil {
		return txflow.RebalancePlan{}, err
	}
	if !approved {
		data, err := c.Packer.ApproveForAll(c.cfg.Router, true)
		if err != nil {
			return txflow.RebalancePlan{}, err
		}
		plan.Approvals = append(plan.Approvals, txflow.TxRequest{Label: "approve position", To: pool.Address, Data: data})
	}
	// the deposit pulls the withdrawn tokens back through the router
	for _, leg := range []struct {
		token  common.Address
		amount *big.Int
	}{{pool.TokenX, minX}, {pool.TokenY, minY}} {
		if leg.amount.Sign() == 0 {
			continue
		}
		approve, err := c.approvalIfNeeded(ctx, leg.token, owner, leg.amount)
		if err != nil {
			return txflow.RebalancePlan{}, err
		}
		if approve != nil {
			plan.Approvals = append(plan.Approvals, *approve)
		}
	}
	return plan, nil
}

// --- Streams ---

// NewWatcher streams active-bin changes for every configured pool.
func (c *Client) NewWatcher(ctx context.Context, bufferSize uint) (*activebin.Watcher, error) {
	return activebin.NewWatcher(ctx, activebin.Config{
		Reader:     c.Reader,
		Head:       c.backend,
		Pools:      c.Pools.All(),
		Interval:   c.cfg.Watch.Interval,
		Logger:     c.logger.With("component", "active-bin-watcher"),
		BufferSize: bufferSize,
	})
}
