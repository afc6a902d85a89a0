// Package lbpair reads liquidity-book pair and ERC-20 state through eth_call.
package lbpair

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	pairstate "github.com/HeliosFLR/helios-ui-sub000/protocols/lbpair"
)

// ErrEmptyResult is returned when a call returns no data, which is what an
// eth_call against an address without code looks like.
var ErrEmptyResult = errors.New("lbpair: empty call result")

// Caller executes read-only contract calls. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// SwapOut is the pair's simulation of an exact-in swap.
type SwapOut struct {
	AmountInLeft *big.Int
	AmountOut    *big.Int
	Fee          *big.Int
}

// Reader performs typed reads against pair and token contracts.
type Reader struct {
	caller  Caller
	pair    abi.ABI
	erc20   abi.ABI
	limiter *rate.Limiter
}

// NewReader creates a Reader. limiter may be nil for unthrottled calls.
func NewReader(caller Caller, limiter *rate.Limiter) (*Reader, error) {
	if caller == nil {
		return nil, errors.New("lbpair: caller is required")
	}
	pairABI, err := abi.JSON(strings.NewReader(PairABI))
	if err != nil {
		return nil, fmt.Errorf("lbpair: parse pair abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("lbpair: parse erc20 abi: %w", err)
	}
	return &Reader{caller: caller, pair: pairABI, erc20: erc20ABI, limiter: limiter}, nil
}

func (r *Reader) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), ErrEmptyResult)
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// ActiveID returns the pair's active bin id.
func (r *Reader) ActiveID(ctx context.Context, pair common.Address) (uint32, error) {
	out, err := r.call(ctx, r.pair, pair, "getActiveId")
	if err != nil {
		return 0, err
	}
	id, err := bigAt(out, 0)
	if err != nil {
		return 0, err
	}
	return uint32(id.Uint64()), nil
}

// BinStep returns the pair's bin step.
func (r *Reader) BinStep(ctx context.Context, pair common.Address) (uint16, error) {
	out, err := r.call(ctx, r.pair, pair, "getBinStep")
	if err != nil {
		return 0, err
	}
	step, ok := out[0].(uint16)
	if !ok {
		return 0, fmt.Errorf("getBinStep: unexpected type %T", out[0])
	}
	return step, nil
}

// Tokens returns the pair's tokenX and tokenY.
func (r *Reader) Tokens(ctx context.Context, pair common.Address) (common.Address, common.Address, error) {
	outX, err := r.call(ctx, r.pair, pair, "getTokenX")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	outY, err := r.call(ctx, r.pair, pair, "getTokenY")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	x, okX := outX[0].(common.Address)
	y, okY := outY[0].(common.Address)
	if !okX || !okY {
		return common.Address{}, common.Address{}, errors.New("getTokenX/getTokenY: unexpected result type")
	}
	return x, y, nil
}

// Reserves returns the pair's total reserves.
func (r *Reader) Reserves(ctx context.Context, pair common.Address) (*big.Int, *big.Int, error) {
	return r.twoBig(ctx, r.pair, pair, "getReserves")
}

// Bin returns the reserves held by one bin.
func (r *Reader) Bin(ctx context.Context, pair common.Address, id uint32) (*big.Int, *big.Int, error) {
	return r.twoBig(ctx, r.pair, pair, "getBin", new(big.Int).SetUint64(uint64(id)))
}

// TotalSupply returns the total liquidity shares of one bin.
func (r *Reader) TotalSupply(ctx context.Context, pair common.Address, id uint32) (*big.Int, error) {
	out, err := r.call(ctx, r.pair, pair, "totalSupply", new(big.Int).SetUint64(uint64(id)))
	if err != nil {
		return nil, err
	}
	return bigAt(out, 0)
}

// SharesOf returns account's liquidity shares in one bin.
func (r *Reader) SharesOf(ctx context.Context, pair, account common.Address, id uint32) (*big.Int, error) {
	out, err := r.call(ctx, r.pair, pair, "balanceOf", account, new(big.Int).SetUint64(uint64(id)))
	if err != nil {
		return nil, err
	}
	return bigAt(out, 0)
}

// IsApprovedForAll reports whether spender may move all of owner's
// liquidity shares in pair.
func (r *Reader) IsApprovedForAll(ctx context.Context, pair, owner, spender common.Address) (bool, error) {
	out, err := r.call(ctx, r.pair, pair, "isApprovedForAll", owner, spender)
	if err != nil {
		return false, err
	}
	if len(out) == 0 {
		return false, ErrEmptyResult
	}
	approved, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("lbpair: unexpected isApprovedForAll output %T", out[0])
	}
	return approved, nil
}

// GetSwapOut simulates an exact-in swap on the pair.
func (r *Reader) GetSwapOut(ctx context.Context, pair common.Address, amountIn *big.Int, swapForY bool) (SwapOut, error) {
	out, err := r.call(ctx, r.pair, pair, "getSwapOut", amountIn, swapForY)
	if err != nil {
		return SwapOut{}, err
	}
	var res SwapOut
	if res.AmountInLeft, err = bigAt(out, 0); err != nil {
		return SwapOut{}, err
	}
	if res.AmountOut, err = bigAt(out, 1); err != nil {
		return SwapOut{}, err
	}
	if res.Fee, err = bigAt(out, 2); err != nil {
		return SwapOut{}, err
	}
	return res, nil
}

// Snapshot reads the active bin and reserves of a pool.
func (r *Reader) Snapshot(ctx context.Context, poolID uint64, pair common.Address) (pairstate.PoolState, error) {
	active, err := r.ActiveID(ctx, pair)
	if err != nil {
		return pairstate.PoolState{}, err
	}
	x, y, err := r.Reserves(ctx, pair)
	if err != nil {
		return pairstate.PoolState{}, err
	}
	return pairstate.PoolState{PoolID: poolID, ActiveID: active, ReserveX: x, ReserveY: y}, nil
}

// BinAmounts converts a holder's shares in a bin into token amounts:
// amount = binReserve * shares / totalSupply.
func (r *Reader) BinAmounts(ctx context.Context, pair, account common.Address, id uint32) (*big.Int, *big.Int, error) {
	shares, err := r.SharesOf(ctx, pair, account, id)
	if err != nil {
		return nil, nil, err
	}
	supply, err := r.TotalSupply(ctx, pair, id)
	if err != nil {
		return nil, nil, err
	}
	if shares.Sign() == 0 || supply.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0), nil
	}
	binX, binY, err := r.Bin(ctx, pair, id)
	if err != nil {
		return nil, nil, err
	}
	x := new(big.Int).Mul(binX, shares)
	x.Quo(x, supply)
	y := new(big.Int).Mul(binY, shares)
	y.Quo(y, supply)
	return x, y, nil
}

// TokenBalance returns an ERC-20 balance.
func (r *Reader) TokenBalance(ctx context.Context, tokenAddr, owner common.Address) (*big.Int, error) {
	out, err := r.call(ctx, r.erc20, tokenAddr, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return bigAt(out, 0)
}

// Allowance returns the ERC-20 allowance granted by owner to spender.
func (r *Reader) Allowance(ctx context.Context, tokenAddr, owner, spender common.Address) (*big.Int, error) {
	out, err := r.call(ctx, r.erc20, tokenAddr, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return bigAt(out, 0)
}

func (r *Reader) twoBig(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (*big.Int, *big.Int, error) {
	out, err := r.call(ctx, contract, to, method, args...)
	if err != nil {
		return nil, nil, err
	}
	a, err := bigAt(out, 0)
	if err != nil {
		return nil, nil, err
	}
	b, err := bigAt(out, 1)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func bigAt(values []any, i int) (*big.Int, error) {
	if i >= len(values) {
		return nil, fmt.Errorf("missing return value %d", i)
	}
	v, ok := values[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("return value %d: unexpected type %T", i, values[i])
	}
	return v, nil
}
