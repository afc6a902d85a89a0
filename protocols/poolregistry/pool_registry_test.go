package poolregistry

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	tokenC = common.HexToAddress("0x000000000000000000000000000000000000000c")
)

func testPools() []PoolView {
	return []PoolView{
		{ID: 1, Address: common.HexToAddress("0x1001"), TokenX: tokenA, TokenY: tokenB, BinStep: 15, Version: VersionV2_2},
		{ID: 2, Address: common.HexToAddress("0x1002"), TokenX: tokenB, TokenY: tokenC, BinStep: 25, Version: VersionV2_2},
		{ID: 3, Address: common.HexToAddress("0x1003"), TokenX: tokenA, TokenY: tokenB, BinStep: 50, Version: VersionV2_1},
	}
}

func TestPairKey(t *testing.T) {
	t.Run("Canonical", func(t *testing.T) {
		assert.Equal(t, NewPairKey(tokenA, tokenB, 15), NewPairKey(tokenB, tokenA, 15))
		assert.NotEqual(t, NewPairKey(tokenA, tokenB, 15), NewPairKey(tokenA, tokenB, 25))
		assert.Equal(t, tokenA, NewPair(tokenB, tokenA)[0])
	})

	t.Run("StringRoundTrip", func(t *testing.T) {
		key := NewPairKey(tokenB, tokenA, 15)
		str := key.String()
		assert.True(t, strings.HasSuffix(str, "/15"))

		parsed, err := ParsePairKey(str)
		require.NoError(t, err)
		assert.Equal(t, key, parsed)
	})

	t.Run("JSON", func(t *testing.T) {
		key := NewPairKey(tokenA, tokenC, 100)
		data, err := key.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, `"`+key.String()+`"`, string(data))

		var decoded PairKey
		require.NoError(t, decoded.UnmarshalJSON(data))
		assert.Equal(t, key, decoded)
	})

	t.Run("ParseErrors", func(t *testing.T) {
		for _, in := range []string{
			"",
			tokenA.Hex() + "-" + tokenB.Hex(),
			tokenA.Hex() + tokenB.Hex() + "/15",
			"0xZZ-" + tokenB.Hex() + "/15",
			tokenA.Hex() + "-" + tokenB.Hex() + "/70000",
		} {
			_, err := ParsePairKey(in)
			assert.Error(t, err, "input %q", in)
		}

		var k PairKey
		assert.Error(t, k.UnmarshalJSON([]byte(`123`)))
	})
}

func TestPoolView(t *testing.T) {
	p := testPools()[0]

	forY, err := p.SwapForY(tokenA)
	require.NoError(t, err)
	assert.True(t, forY)

	forY, err = p.SwapForY(tokenB)
	require.NoError(t, err)
	assert.False(t, forY)

	_, err = p.SwapForY(tokenC)
	assert.Error(t, err)

	other, ok := p.Other(tokenB)
	require.True(t, ok)
	assert.Equal(t, tokenA, other)

	_, ok = p.Other(tokenC)
	assert.False(t, ok)
	assert.True(t, p.Has(tokenA))
	assert.False(t, p.Has(tokenC))
	assert.Equal(t, "v2.2", p.Version.String())
}

func TestIndexablePoolRegistry(t *testing.T) {
	reg := New().Index(testPools())

	t.Run("FindPoolRegistryOrder", func(t *testing.T) {
		p, ok := reg.FindPool(tokenB, tokenA)
		require.True(t, ok)
		assert.Equal(t, uint64(1), p.ID, "first registered pool wins")

		_, ok = reg.FindPool(tokenA, tokenC)
		assert.False(t, ok)

		pools := reg.PoolsForPair(tokenA, tokenB)
		require.Len(t, pools, 2)
		assert.Equal(t, uint64(3), pools[1].ID)
	})

	t.Run("Lookups", func(t *testing.T) {
		p, ok := reg.GetByAddress(common.HexToAddress("0x1002"))
		require.True(t, ok)
		assert.Equal(t, uint64(2), p.ID)

		p, ok = reg.GetByPairKey(NewPairKey(tokenB, tokenA, 50))
		require.True(t, ok)
		assert.Equal(t, uint64(3), p.ID)

		_, ok = reg.GetByID(42)
		assert.False(t, ok)
	})

	t.Run("PoolsForToken", func(t *testing.T) {
		ids := []uint64{}
		for _, p := range reg.PoolsForToken(tokenB) {
			ids = append(ids, p.ID)
		}
		assert.Equal(t, []uint64{1, 2, 3}, ids)
	})

	t.Run("AdjacencyFromGraph", func(t *testing.T) {
		assert.Equal(t, []common.Address{tokenA, tokenC}, reg.Neighbors(tokenB))
		assert.Nil(t, reg.Neighbors(common.HexToAddress("0xdead")))
		assert.Nil(t, reg.PoolsForToken(common.HexToAddress("0xdead")))
		assert.Equal(t, []uint64{1, 3, 2}, reg.Graph().PoolIDsForToken(tokenB))
	})

	t.Run("AllIsDefensiveCopy", func(t *testing.T) {
		all := reg.All()
		all[0].BinStep = 1
		assert.Equal(t, uint16(15), reg.All()[0].BinStep)
	})
}

func TestTokenPoolsRegistryView(t *testing.T) {
	v := NewTokenPoolsRegistryView(testPools())

	assert.Equal(t, []common.Address{tokenA, tokenB, tokenC}, v.Tokens)
	assert.Equal(t, []uint64{1, 2, 3}, v.Pools)

	assert.Equal(t, []uint64{1, 3}, v.PoolIDsForToken(tokenA))
	assert.Equal(t, []uint64{1, 3, 2}, v.PoolIDsForToken(tokenB))
	assert.Nil(t, v.PoolIDsForToken(common.HexToAddress("0xdead")))

	assert.Equal(t, []common.Address{tokenA, tokenC}, v.Neighbors(tokenB))
	assert.Equal(t, []common.Address{tokenB}, v.Neighbors(tokenC))

	t.Run("DecodedViewWithoutIndex", func(t *testing.T) {
		decoded := TokenPoolsRegistryView{
			Tokens:      v.Tokens,
			Pools:       v.Pools,
			Adjacency:   v.Adjacency,
			EdgeTargets: v.EdgeTargets,
			EdgePools:   v.EdgePools,
		}
		assert.Equal(t, []uint64{1, 3, 2}, decoded.PoolIDsForToken(tokenB))
		assert.Equal(t, []common.Address{tokenB}, decoded.Neighbors(tokenC))
	})
}
