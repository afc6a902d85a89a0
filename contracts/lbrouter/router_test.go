package lbrouter

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HeliosFLR/helios-ui-sub000/pkg/distribution"
	"github.com/HeliosFLR/helios-ui-sub000/pkg/route"
	"github.com/HeliosFLR/helios-ui-sub000/protocols/poolregistry"
)

var (
	tokenX    = common.HexToAddress("0x0a")
	tokenY    = common.HexToAddress("0x0b")
	tokenZ    = common.HexToAddress("0x0c")
	recipient = common.HexToAddress("0xbeef")
	deadline  = time.Unix(1_700_000_000, 0)
)

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

func newPacker(t *testing.T) *Packer {
	t.Helper()
	p, err := NewPacker()
	require.NoError(t, err)
	return p
}

func TestSelectors(t *testing.T) {
	p := newPacker(t)

	cases := map[string]string{
		"addLiquidity":             "addLiquidity((address,address,uint256,uint256,uint256,uint256,uint256,uint256,uint256,int256[],uint256[],uint256[],address,address,uint256))",
		"removeLiquidity":          "removeLiquidity(address,address,uint16,uint256,uint256,uint256[],uint256[],address,uint256)",
		"swapExactTokensForTokens": "swapExactTokensForTokens(uint256,uint256,(uint256[],uint8[],address[]),address,uint256)",
		"swapTokensForExactTokens": "swapTokensForExactTokens(uint256,uint256,(uint256[],uint8[],address[]),address,uint256)",
		"approve":                  "approve(address,uint256)",
		"approveForAll":            "approveForAll(address,bool)",
	}
	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			m, ok := p.Method(name)
			require.True(t, ok)
			assert.Equal(t, selector(sig), m.ID)
		})
	}
}

func TestNewLiquidityParameters(t *testing.T) {
	w, err := distribution.Build(2, distribution.Uniform, distribution.Both)
	require.NoError(t, err)

	params, err := NewLiquidityParameters(AddLiquidityRequest{
		TokenX:      tokenX,
		TokenY:      tokenY,
		BinStep:     25,
		AmountX:     big.NewInt(1_000_000),
		AmountY:     big.NewInt(2_000_000),
		SlippageBps: 50,
		ActiveID:    8388608,
		IDSlippage:  5,
		Weights:     w,
		Recipient:   recipient,
		Deadline:    deadline,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(25), params.BinStep.Int64())
	assert.Equal(t, int64(995_000), params.AmountXMin.Int64())
	assert.Equal(t, int64(1_990_000), params.AmountYMin.Int64())
	assert.Equal(t, int64(8388608), params.ActiveIdDesired.Int64())
	assert.Equal(t, int64(5), params.IdSlippage.Int64())
	assert.Len(t, params.DeltaIds, 5)
	assert.Equal(t, int64(-2), params.DeltaIds[0].Int64())
	assert.Equal(t, recipient, params.To)
	assert.Equal(t, recipient, params.RefundTo)
	assert.Equal(t, deadline.Unix(), params.Deadline.Int64())

	t.Run("rejects missing distribution", func(t *testing.T) {
		_, err := NewLiquidityParameters(AddLiquidityRequest{})
		assert.Error(t, err)
	})

	t.Run("rejects slippage above 100%", func(t *testing.T) {
		_, err := NewLiquidityParameters(AddLiquidityRequest{Weights: w, SlippageBps: 10_001})
		assert.Error(t, err)
	})
}

func TestAddLiquidity_RoundTrip(t *testing.T) {
	p := newPacker(t)
	w, err := distribution.Build(1, distribution.Curve, distribution.Both)
	require.NoError(t, err)

	params, err := NewLiquidityParameters(AddLiquidityRequest{
		TokenX: tokenX, TokenY: tokenY, BinStep: 15,
		AmountX: big.NewInt(10), AmountY: big.NewInt(20),
		ActiveID: 8388610, Weights: w, Recipient: recipient, Deadline: deadline,
	})
	require.NoError(t, err)

	data, err := p.AddLiquidity(params)
	require.NoError(t, err)

	m, _ := p.Method("addLiquidity")
	require.True(t, bytes.Equal(m.ID, data[:4]))
	args, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 1)

	decoded := *abi.ConvertType(args[0], new(LiquidityParameters)).(*LiquidityParameters)
	assert.Equal(t, tokenX, decoded.TokenX)
	assert.Equal(t, int64(8388610), decoded.ActiveIdDesired.Int64())
	require.Len(t, decoded.DistributionX, 3)
	assert.Equal(t, w.SumX().String(), sum(decoded.DistributionX).String())
	assert.Equal(t, w.SumY().String(), sum(decoded.DistributionY).String())
}

func TestRemoveLiquidity(t *testing.T) {
	p := newPacker(t)

	data, err := p.RemoveLiquidity(tokenX, tokenY, 25, nil, big.NewInt(9),
		[]uint32{8388607, 8388608}, []*big.Int{big.NewInt(100), big.NewInt(200)},
		recipient, deadline)
	require.NoError(t, err)

	m, _ := p.Method("removeLiquidity")
	args, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 9)
	assert.Equal(t, uint16(25), args[2])
	assert.Equal(t, int64(0), args[3].(*big.Int).Int64(), "nil min amount packs as zero")
	ids := args[5].([]*big.Int)
	assert.Equal(t, int64(8388607), ids[0].Int64())
	assert.Equal(t, recipient, args[7])

	_, err = p.RemoveLiquidity(tokenX, tokenY, 25, nil, nil, []uint32{1}, nil, recipient, deadline)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func twoHopRoute() route.Route {
	p1 := poolregistry.PoolView{ID: 1, TokenX: tokenX, TokenY: tokenZ, BinStep: 25, Version: poolregistry.VersionV2_2}
	p2 := poolregistry.PoolView{ID: 2, TokenX: tokenY, TokenY: tokenZ, BinStep: 10, Version: poolregistry.VersionV2_1}
	return route.Route{
		Path:     []common.Address{tokenX, tokenZ, tokenY},
		BinSteps: []uint16{25, 10},
		Hops: []route.Hop{
			{Pool: p1, TokenIn: tokenX, TokenOut: tokenZ, SwapForY: true},
			{Pool: p2, TokenIn: tokenZ, TokenOut: tokenY, SwapForY: false},
		},
	}
}

func TestSwapExactTokensForTokens(t *testing.T) {
	p := newPacker(t)

	data, err := p.SwapExactTokensForTokens(big.NewInt(1000), big.NewInt(990), twoHopRoute(), recipient, deadline)
	require.NoError(t, err)

	m, _ := p.Method("swapExactTokensForTokens")
	args, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 5)
	assert.Equal(t, int64(1000), args[0].(*big.Int).Int64())
	assert.Equal(t, int64(990), args[1].(*big.Int).Int64())

	path := *abi.ConvertType(args[2], new(route.RouterPath)).(*route.RouterPath)
	assert.Equal(t, []uint8{3, 2}, path.Versions)
	assert.Equal(t, []common.Address{tokenX, tokenZ, tokenY}, path.TokenPath)
	assert.Equal(t, int64(10), path.PairBinSteps[1].Int64())
	assert.Equal(t, recipient, args[3])

	_, err = p.SwapExactTokensForTokens(big.NewInt(1), nil, route.Route{}, recipient, deadline)
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestSwapTokensForExactTokens(t *testing.T) {
	p := newPacker(t)

	data, err := p.SwapTokensForExactTokens(big.NewInt(500), big.NewInt(600), twoHopRoute(), recipient, deadline)
	require.NoError(t, err)
	m, _ := p.Method("swapTokensForExactTokens")
	assert.Equal(t, m.ID, data[:4])

	_, err = p.SwapTokensForExactTokens(big.NewInt(1), big.NewInt(1), route.Route{}, recipient, deadline)
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestApprovals(t *testing.T) {
	p := newPacker(t)
	spender := common.HexToAddress("0xfeed")

	data, err := p.Approve(spender, big.NewInt(77))
	require.NoError(t, err)
	assert.Equal(t, selector("approve(address,uint256)"), data[:4])
	assert.Len(t, data, 4+64)

	data, err = p.ApproveForAll(spender, true)
	require.NoError(t, err)
	m, _ := p.Method("approveForAll")
	args, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, spender, args[0])
	assert.Equal(t, true, args[1])
}

func TestApplySlippage(t *testing.T) {
	assert.Equal(t, int64(9950), ApplySlippage(big.NewInt(10_000), 50).Int64())
	assert.Equal(t, int64(0), ApplySlippage(big.NewInt(10_000), 10_000).Int64())
	assert.Equal(t, int64(0), ApplySlippage(nil, 50).Int64())
	assert.Equal(t, int64(99), ApplySlippage(big.NewInt(100), 1).Int64(), "rounds down")
}

func sum(values []*big.Int) *big.Int {
	total := new(big.Int)
	for _, v := range values {
		total.Add(total, v)
	}
	return total
}
