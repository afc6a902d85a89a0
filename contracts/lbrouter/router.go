// Package lbrouter assembles calldata for the liquidity-book router and the
// token approvals that precede router calls. Argument order and types follow
// the deployed router interface exactly.
package lbrouter

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/HeliosFLR/helios-ui-sub000/pkg/distribution"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/route"
)

const routerABI = `[
  {"type":"function","name":"addLiquidity","stateMutability":"nonpayable","inputs":[{"name":"liquidityParameters","type":"tuple","components":[
    {"name":"tokenX","type":"address"},{"name":"tokenY","type":"address"},{"name":"binStep","type":"uint256"},
    {"name":"amountX","type":"uint256"},{"name":"amountY","type":"uint256"},{"name":"amountXMin","type":"uint256"},{"name":"amountYMin","type":"uint256"},
    {"name":"activeIdDesired","type":"uint256"},{"name":"idSlippage","type":"uint256"},
    {"name":"deltaIds","type":"int256[]"},{"name":"distributionX","type":"uint256[]"},{"name":"distributionY","type":"uint256[]"},
    {"name":"to","type":"address"},{"name":"refundTo","type":"address"},{"name":"deadline","type":"uint256"}]}],
   "outputs":[{"name":"amountXAdded","type":"uint256"},{"name":"amountYAdded","type":"uint256"},{"name":"amountXLeft","type":"uint256"},{"name":"amountYLeft","type":"uint256"},{"name":"depositIds","type":"uint256[]"},{"name":"liquidityMinted","type":"uint256[]"}]},
  {"type":"function","name":"removeLiquidity","stateMutability":"nonpayable","inputs":[
    {"name":"tokenX","type":"address"},{"name":"tokenY","type":"address"},{"name":"binStep","type":"uint16"},
    {"name":"amountXMin","type":"uint256"},{"name":"amountYMin","type":"uint256"},
    {"name":"ids","type":"uint256[]"},{"name":"amounts","type":"uint256[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
   "outputs":[{"name":"amountX","type":"uint256"},{"name":"amountY","type":"uint256"}]},
  {"type":"function","name":"swapExactTokensForTokens","stateMutability":"nonpayable","inputs":[
    {"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},
    {"name":"path","type":"tuple","components":[{"name":"pairBinSteps","type":"uint256[]"},{"name":"versions","type":"uint8[]"},{"name":"tokenPath","type":"address[]"}]},
    {"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
   "outputs":[{"name":"amountOut","type":"uint256"}]},
  {"type":"function","name":"swapTokensForExactTokens","stateMutability":"nonpayable","inputs":[
    {"name":"amountOut","type":"uint256"},{"name":"amountInMax","type":"uint256"},
    {"name":"path","type":"tuple","components":[{"name":"pairBinSteps","type":"uint256[]"},{"name":"versions","type":"uint8[]"},{"name":"tokenPath","type":"address[]"}]},
    {"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
   "outputs":[{"name":"amountsIn","type":"uint256[]"}]}
]`

const tokenABI = `[
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"approveForAll","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]}
]`

var (
	ErrLengthMismatch = errors.New("lbrouter: ids and amounts length mismatch")
	ErrEmptyPath      = errors.New("lbrouter: swap path is empty")
)

// LiquidityParameters mirrors the router's addLiquidity tuple.
// Field names are the ABI component names in Go case.
type LiquidityParameters struct {
	TokenX          common.Address
	TokenY          common.Address
	BinStep         *big.Int
	AmountX         *big.Int
	AmountY         *big.Int
	AmountXMin      *big.Int
	AmountYMin      *big.Int
	ActiveIdDesired *big.Int
	IdSlippage      *big.Int
	DeltaIds        []*big.Int
	DistributionX   []*big.Int
	DistributionY   []*big.Int
	To              common.Address
	RefundTo        common.Address
	Deadline        *big.Int
}

// AddLiquidityRequest is the caller-facing description of a deposit.
type AddLiquidityRequest struct {
	TokenX, TokenY common.Address
	BinStep        uint16
	AmountX        *big.Int
	AmountY        *big.Int
	// SlippageBps sets the min amounts. Active-bin drift is IDSlippage.
	SlippageBps uint32
	ActiveID    uint32
	IDSlippage  uint32
	Weights     *distribution.Weights
	Recipient   common.Address
	Deadline    time.Time
}

// NewLiquidityParameters converts a request into the router tuple.
// The recipient also receives refunds of unused amounts.
func NewLiquidityParameters(req AddLiquidityRequest) (LiquidityParameters, error) {
	if req.Weights == nil || req.Weights.Len() == 0 {
		return LiquidityParameters{}, errors.New("lbrouter: distribution is required")
	}
	if req.SlippageBps > 10_000 {
		return LiquidityParameters{}, fmt.Errorf("lbrouter: slippage %d bps exceeds 100%%", req.SlippageBps)
	}
	amountX := orZero(req.AmountX)
	amountY := orZero(req.AmountY)
	return LiquidityParameters{
		TokenX:          req.TokenX,
		TokenY:          req.TokenY,
		BinStep:         new(big.Int).SetUint64(uint64(req.BinStep)),
		AmountX:         amountX,
		AmountY:         amountY,
		AmountXMin:      ApplySlippage(amountX, req.SlippageBps),
		AmountYMin:      ApplySlippage(amountY, req.SlippageBps),
		ActiveIdDesired: new(big.Int).SetUint64(uint64(req.ActiveID)),
		IdSlippage:      new(big.Int).SetUint64(uint64(req.IDSlippage)),
		DeltaIds:        req.Weights.DeltaIDsBig(),
		DistributionX:   req.Weights.DistributionX,
		DistributionY:   req.Weights.DistributionY,
		To:              req.Recipient,
		RefundTo:        req.Recipient,
		Deadline:        big.NewInt(req.Deadline.Unix()),
	}, nil
}

// ApplySlippage returns amount * (10000 - bps) / 10000.
func ApplySlippage(amount *big.Int, bps uint32) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	if bps >= 10_000 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(10_000-bps)))
	return out.Quo(out, big.NewInt(10_000))
}

// Packer builds router and token calldata.
type Packer struct {
	router abi.ABI
	token  abi.ABI
}

// NewPacker parses the embedded ABIs.
func NewPacker() (*Packer, error) {
	r, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, fmt.Errorf("lbrouter: parse router abi: %w", err)
	}
	t, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		return nil, fmt.Errorf("lbrouter: parse token abi: %w", err)
	}
	return &Packer{router: r, token: t}, nil
}

// AddLiquidity packs addLiquidity(LiquidityParameters).
func (p *Packer) AddLiquidity(params LiquidityParameters) ([]byte, error) {
	return p.router.Pack("addLiquidity", params)
}

// RemoveLiquidity packs removeLiquidity for the given bins and share amounts.
func (p *Packer) RemoveLiquidity(tokenX, tokenY common.Address, binStep uint16, amountXMin, amountYMin *big.Int, ids []uint32, amounts []*big.Int, to common.Address, deadline time.Time) ([]byte, error) {
	if len(ids) != len(amounts) {
		return nil, ErrLengthMismatch
	}
	bigIDs := make([]*big.Int, len(ids))
	for i, id := range ids {
		bigIDs[i] = new(big.Int).SetUint64(uint64(id))
	}
	return p.router.Pack("removeLiquidity",
		tokenX, tokenY, binStep,
		orZero(amountXMin), orZero(amountYMin),
		bigIDs, amounts, to, big.NewInt(deadline.Unix()),
	)
}

// SwapExactTokensForTokens packs an exact-in swap along r.
func (p *Packer) SwapExactTokensForTokens(amountIn, amountOutMin *big.Int, r route.Route, to common.Address, deadline time.Time) ([]byte, error) {
	if r.HopCount() == 0 {
		return nil, ErrEmptyPath
	}
	return p.router.Pack("swapExactTokensForTokens", amountIn, orZero(amountOutMin), r.RouterPath(), to, big.NewInt(deadline.Unix()))
}

// SwapTokensForExactTokens packs an exact-out swap along r.
func (p *Packer) SwapTokensForExactTokens(amountOut, amountInMax *big.Int, r route.Route, to common.Address, deadline time.Time) ([]byte, error) {
	if r.HopCount() == 0 {
		return nil, ErrEmptyPath
	}
	return p.router.Pack("swapTokensForExactTokens", amountOut, amountInMax, r.RouterPath(), to, big.NewInt(deadline.Unix()))
}

// Approve packs an ERC-20 approve.
func (p *Packer) Approve(spender common.Address, amount *big.Int) ([]byte, error) {
	return p.token.Pack("approve", spender, amount)
}

// ApproveForAll packs the pair's liquidity-token operator approval, needed
// before the router can burn the caller's bin shares.
func (p *Packer) ApproveForAll(spender common.Address, approved bool) ([]byte, error) {
	return p.token.Pack("approveForAll", spender, approved)
}

// Method exposes a parsed router or token method, e.g. for decoding.
func (p *Packer) Method(name string) (abi.Method, bool) {
	if m, ok := p.router.Methods[name]; ok {
		return m, true
	}
	m, ok := p.token.Methods[name]
	return m, ok
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
