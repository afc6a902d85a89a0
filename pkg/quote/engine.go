// Package quote produces swap quotes for the liquidity-book router.
//
// A quote is live when the first pool of the chosen route answers a swap
// simulation. When the simulation fails, returns nothing useful, or no route
// exists, the engine falls back to a price-table estimate. Estimates are
// flagged and must not be used as a transaction's minimum output unless the
// caller opts in explicitly.
package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/HeliosFLR/helios-ui-sub000/contracts/lbpair"
	"github.com/HeliosFLR/helios-ui-sub000/contracts/lbrouter"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/pricefeed"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/route"
	"github.com/HeliosFLR/helios-ui-sub000/protocols/poolregistry"
	"github.com/HeliosFLR/helios-ui-sub000/protocols/token"
)

var (
	ErrInvalidAmount  = errors.New("quote: amount must be positive")
	ErrUnknownToken   = errors.New("quote: unknown token")
	ErrSameToken      = errors.New("quote: input and output token are the same")
	ErrEstimateQuote  = errors.New("quote: refusing to derive a minimum output from an estimate")
	errEmptySwapOut   = errors.New("swap simulation returned zero output")
	errMissingPricing = errors.New("no reference price for token")
)

var (
	// MaxLiveImpact caps the live price impact, in percent. The live call
	// only reflects the active bin's depth.
	MaxLiveImpact = decimal.RequireFromString("0.3")
	// FallbackFee is the flat fee applied to estimates, in percent.
	FallbackFee = decimal.RequireFromString("0.3")
	// FallbackBaseImpact is the estimate's impact floor, in percent.
	FallbackBaseImpact = decimal.RequireFromString("0.1")
	// FallbackImpactStep is added per FallbackImpactNotional of USD value
	// above FallbackImpactNotional, in percent.
	FallbackImpactStep     = decimal.RequireFromString("0.5")
	FallbackImpactNotional = decimal.NewFromInt(10_000)
	// FallbackMaxImpact caps the estimate's impact, in percent.
	FallbackMaxImpact = decimal.NewFromInt(5)

	hundred = decimal.NewFromInt(100)
)

// Source says where a quote's output figure came from.
type Source string

const (
	// SourceLive is a single-hop quote answered entirely by the pool.
	SourceLive Source = "live"
	// SourcePartial is a multi-hop quote whose first hop is live and whose
	// remaining hops were converted with reference prices.
	SourcePartial Source = "partial"
	// SourceEstimate is a price-table estimate.
	SourceEstimate Source = "estimate"
)

// Quote is the engine's answer for one swap request.
type Quote struct {
	TokenIn   common.Address `json:"tokenIn"`
	TokenOut  common.Address `json:"tokenOut"`
	AmountIn  *big.Int       `json:"amountIn"`
	AmountOut *big.Int       `json:"amountOut"`
	// Fee is denominated in TokenIn.
	Fee *big.Int `json:"fee"`
	// FeePercent and PriceImpact are percentages (0.3 means 0.3%).
	FeePercent  decimal.Decimal `json:"feePercent"`
	PriceImpact decimal.Decimal `json:"priceImpact"`
	IsEstimate  bool            `json:"isEstimate"`
	Source      Source          `json:"source"`
	// Route is nil when no route exists.
	Route    *route.Route `json:"route,omitempty"`
	QuotedAt time.Time    `json:"quotedAt"`
}

func (q Quote) clone() Quote {
	out := q
	out.AmountIn = cloneBig(q.AmountIn)
	out.AmountOut = cloneBig(q.AmountOut)
	out.Fee = cloneBig(q.Fee)
	if q.Route != nil {
		r := q.Route.Clone()
		out.Route = &r
	}
	return out
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// SwapSimulator runs the pair's read-only swap simulation.
// *lbpair.Reader satisfies it.
type SwapSimulator interface {
	GetSwapOut(ctx context.Context, pair common.Address, amountIn *big.Int, swapForY bool) (lbpair.SwapOut, error)
}

// Logger is the logging surface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config configures an Engine.
type Config struct {
	Simulator SwapSimulator
	Prices    pricefeed.PriceSource
	Tokens    *token.IndexableTokenSystem
	Pools     *poolregistry.IndexablePoolRegistry
	Logger    Logger
	// Cache may be nil to disable caching.
	Cache *Cache
	// Registry may be nil; metrics are then kept on a private registry.
	Registry prometheus.Registerer
	// RetryAttempts is the total number of simulation attempts per quote.
	RetryAttempts int
	RetryInterval time.Duration
	Now           func() time.Time
}

func (c *Config) validate() error {
	if c.Simulator == nil {
		return errors.New("simulator is required")
	}
	if c.Prices == nil {
		return errors.New("price source is required")
	}
	if c.Tokens == nil {
		return errors.New("token registry is required")
	}
	if c.Pools == nil {
		return errors.New("pool registry is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.RetryAttempts < 1 {
		return errors.New("retry attempts must be at least 1")
	}
	if c.RetryInterval < 0 {
		return errors.New("retry interval must not be negative")
	}
	return nil
}

// DefaultConfig returns the production retry settings; the caller fills in
// the collaborators.
func DefaultConfig() Config {
	return Config{
		RetryAttempts: 3,
		RetryInterval: 500 * time.Millisecond,
	}
}

// Engine produces quotes.
type Engine struct {
	sim      SwapSimulator
	prices   pricefeed.PriceSource
	tokens   *token.IndexableTokenSystem
	pools    *poolregistry.IndexablePoolRegistry
	logger   Logger
	cache    *Cache
	metrics  *Metrics
	attempts int
	interval time.Duration
	now      func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid quote engine config: %w", err)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		sim:      cfg.Simulator,
		prices:   cfg.Prices,
		tokens:   cfg.Tokens,
		pools:    cfg.Pools,
		logger:   cfg.Logger,
		cache:    cfg.Cache,
		metrics:  NewMetrics(cfg.Registry),
		attempts: cfg.RetryAttempts,
		interval: cfg.RetryInterval,
		now:      cfg.Now,
	}, nil
}

// Quote quotes an exact-in swap of amountIn tokenIn for tokenOut.
//
// Only invalid input is reported as an error. A missing route or a failing
// simulation yields an estimate quote instead.
func (e *Engine) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*Quote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if tokenIn == tokenOut {
		return nil, ErrSameToken
	}
	in, ok := e.tokens.GetByAddress(tokenIn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, tokenIn.Hex())
	}
	out, ok := e.tokens.GetByAddress(tokenOut)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, tokenOut.Hex())
	}

	key := cacheKey(tokenIn, tokenOut, amountIn)
	if e.cache != nil {
		if q, ok := e.cache.Get(key); ok {
			e.metrics.cacheHits.Inc()
			return &q, nil
		}
	}

	start := e.now()
	q := e.quote(ctx, in, out, amountIn)
	q.QuotedAt = e.now()

	e.metrics.quoteDuration.WithLabelValues(string(q.Source)).Observe(q.QuotedAt.Sub(start).Seconds())
	result := "ok"
	if q.AmountOut.Sign() == 0 {
		result = "empty"
	}
	e.metrics.quotesTotal.WithLabelValues(string(q.Source), result).Inc()

	if e.cache != nil {
		e.cache.Set(key, q)
	}
	return &q, nil
}

func (e *Engine) quote(ctx context.Context, in, out token.TokenView, amountIn *big.Int) Quote {
	r, ok := route.FindBestRoute(in.Address, out.Address, e.pools, e.tokens.All())
	if !ok {
		e.logger.Debug("No route, using estimate", "tokenIn", in.Symbol, "tokenOut", out.Symbol)
		return e.Estimate(in, out, amountIn, nil)
	}

	first := r.Hops[0]
	res, err := e.simulate(ctx, first, amountIn)
	if err != nil {
		e.logger.Warn("Live quote failed, using estimate",
			"tokenIn", in.Symbol, "tokenOut", out.Symbol, "pool", first.Pool.Address.Hex(), "error", err)
		return e.Estimate(in, out, amountIn, &r)
	}

	q := Quote{
		TokenIn:     in.Address,
		TokenOut:    out.Address,
		AmountIn:    new(big.Int).Set(amountIn),
		AmountOut:   res.AmountOut,
		Fee:         res.Fee,
		FeePercent:  decimal.NewFromInt(int64(r.TotalBinStep())).Div(hundred),
		PriceImpact: LiveImpact(amountIn, res.AmountInLeft),
		Source:      SourceLive,
		Route:       &r,
	}
	if r.IsDirect() {
		return q
	}

	// Remaining hops are converted with reference prices.
	amount := res.AmountOut
	for _, hop := range r.Hops[1:] {
		amount, err = e.convertHop(hop, amount)
		if err != nil {
			e.logger.Warn("Partial quote failed, using estimate",
				"tokenIn", in.Symbol, "tokenOut", out.Symbol, "error", err)
			return e.Estimate(in, out, amountIn, &r)
		}
	}
	q.AmountOut = amount
	q.Source = SourcePartial
	q.IsEstimate = true
	return q
}

func (e *Engine) simulate(ctx context.Context, hop route.Hop, amountIn *big.Int) (lbpair.SwapOut, error) {
	var res lbpair.SwapOut
	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			e.metrics.rpcRetries.Inc()
		}
		out, err := e.sim.GetSwapOut(ctx, hop.Pool.Address, amountIn, hop.SwapForY)
		if err != nil {
			return err
		}
		if out.AmountOut == nil || out.AmountOut.Sign() == 0 {
			// a zero answer will not improve on retry
			return backoff.Permanent(errEmptySwapOut)
		}
		res = out
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.interval), uint64(e.attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return lbpair.SwapOut{}, err
	}
	if res.AmountInLeft == nil {
		res.AmountInLeft = big.NewInt(0)
	}
	if res.Fee == nil {
		res.Fee = big.NewInt(0)
	}
	return res, nil
}

func (e *Engine) convertHop(hop route.Hop, amount *big.Int) (*big.Int, error) {
	in, ok := e.tokens.GetByAddress(hop.TokenIn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, hop.TokenIn.Hex())
	}
	out, ok := e.tokens.GetByAddress(hop.TokenOut)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, hop.TokenOut.Hex())
	}
	converted, ok := e.convert(in, out, decimal.NewFromBigInt(amount, -int32(in.Decimals)))
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", errMissingPricing, in.Symbol, out.Symbol)
	}
	fee := decimal.NewFromInt(int64(hop.Pool.BinStep)).Div(decimal.NewFromInt(10_000))
	converted = converted.Mul(decimal.NewFromInt(1).Sub(fee))
	return toRaw(converted, out.Decimals), nil
}

// convert turns a human amount of in into a human amount of out at reference
// prices, without fees.
func (e *Engine) convert(in, out token.TokenView, amount decimal.Decimal) (decimal.Decimal, bool) {
	priceIn, okIn := e.prices.USDPrice(in.Symbol)
	priceOut, okOut := e.prices.USDPrice(out.Symbol)
	if !okIn || !okOut || !priceIn.IsPositive() || !priceOut.IsPositive() {
		return decimal.Zero, false
	}
	return amount.Mul(priceIn).Div(priceOut), true
}

// Estimate produces a price-table quote. r may be nil. Unknown prices give a
// zero output.
func (e *Engine) Estimate(in, out token.TokenView, amountIn *big.Int, r *route.Route) Quote {
	q := Quote{
		TokenIn:    in.Address,
		TokenOut:   out.Address,
		AmountIn:   new(big.Int).Set(amountIn),
		AmountOut:  big.NewInt(0),
		Fee:        toRaw(decimal.NewFromBigInt(amountIn, 0).Mul(FallbackFee).Div(hundred), 0),
		FeePercent: FallbackFee,
		IsEstimate: true,
		Source:     SourceEstimate,
		Route:      r,
	}

	human := decimal.NewFromBigInt(amountIn, -int32(in.Decimals))
	converted, ok := e.convert(in, out, human)
	if !ok {
		e.logger.Debug("No reference price for estimate", "tokenIn", in.Symbol, "tokenOut", out.Symbol)
		return q
	}
	priceIn, _ := e.prices.USDPrice(in.Symbol)
	impact := FallbackImpact(human.Mul(priceIn))

	one := decimal.NewFromInt(1)
	converted = converted.
		Mul(one.Sub(FallbackFee.Div(hundred))).
		Mul(one.Sub(impact.Div(hundred)))

	q.AmountOut = toRaw(converted, out.Decimals)
	q.PriceImpact = impact
	return q
}

// LiveImpact is the share of the input the pool could not absorb, in
// percent, capped at MaxLiveImpact.
func LiveImpact(amountIn, amountInLeft *big.Int) decimal.Decimal {
	if amountIn == nil || amountIn.Sign() <= 0 || amountInLeft == nil || amountInLeft.Sign() <= 0 {
		return decimal.Zero
	}
	impact := decimal.NewFromBigInt(amountInLeft, 0).Div(decimal.NewFromBigInt(amountIn, 0)).Mul(hundred)
	return decimal.Min(impact, MaxLiveImpact)
}

// FallbackImpact is the estimate's impact surcharge for a USD notional, in
// percent.
func FallbackImpact(notionalUSD decimal.Decimal) decimal.Decimal {
	impact := FallbackBaseImpact
	if excess := notionalUSD.Sub(FallbackImpactNotional); excess.IsPositive() {
		impact = impact.Add(excess.Div(FallbackImpactNotional).Mul(FallbackImpactStep))
	}
	return decimal.Min(impact, FallbackMaxImpact)
}

// MinAmountOut applies slippage to a quote's output. Estimate quotes are
// refused unless allowEstimate is set.
func MinAmountOut(q *Quote, slippageBps uint32, allowEstimate bool) (*big.Int, error) {
	if q == nil || q.AmountOut == nil {
		return nil, errors.New("quote: nil quote")
	}
	if q.IsEstimate && !allowEstimate {
		return nil, ErrEstimateQuote
	}
	if slippageBps > 10_000 {
		return nil, fmt.Errorf("quote: slippage %d bps exceeds 100%%", slippageBps)
	}
	return lbrouter.ApplySlippage(q.AmountOut, slippageBps), nil
}

func toRaw(amount decimal.Decimal, decimals uint8) *big.Int {
	if !amount.IsPositive() {
		return big.NewInt(0)
	}
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}
