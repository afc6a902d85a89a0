package distribution

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_ExactSums(t *testing.T) {
	for _, mode := range []Mode{Uniform, Curve} {
		for binRange := 1; binRange <= 60; binRange++ {
			w, err := Build(binRange, mode, Both)
			require.NoError(t, err)
			require.Equal(t, 2*binRange+1, w.Len())
			assert.Zero(t, w.SumX().Cmp(Unit), "mode=%s range=%d sumX=%s", mode, binRange, w.SumX())
			assert.Zero(t, w.SumY().Cmp(Unit), "mode=%s range=%d sumY=%s", mode, binRange, w.SumY())
			for i := range w.DistributionX {
				assert.GreaterOrEqual(t, w.DistributionX[i].Sign(), 0)
				assert.GreaterOrEqual(t, w.DistributionY[i].Sign(), 0)
			}
		}
	}
}

func TestBuild_Uniform(t *testing.T) {
	w, err := Build(3, Uniform, Both)
	require.NoError(t, err)

	assert.Equal(t, []int64{-3, -2, -1, 0, 1, 2, 3}, w.DeltaIDs)

	share := new(big.Int).Quo(Unit, big.NewInt(4))
	remainder := new(big.Int).Sub(Unit, new(big.Int).Mul(share, big.NewInt(4)))

	t.Run("XSide", func(t *testing.T) {
		for i, o := range w.DeltaIDs {
			switch {
			case o < 0:
				assert.Zero(t, w.DistributionX[i].Sign(), "offset %d", o)
			case o == 3:
				assert.Equal(t, new(big.Int).Add(share, remainder), w.DistributionX[i])
			default:
				assert.Equal(t, share, w.DistributionX[i], "offset %d", o)
			}
		}
	})

	t.Run("YSide", func(t *testing.T) {
		for i, o := range w.DeltaIDs {
			switch {
			case o > 0:
				assert.Zero(t, w.DistributionY[i].Sign(), "offset %d", o)
			case o == -3:
				assert.Equal(t, new(big.Int).Add(share, remainder), w.DistributionY[i])
			default:
				assert.Equal(t, share, w.DistributionY[i], "offset %d", o)
			}
		}
	})

	t.Run("ActiveBinGetsBoth", func(t *testing.T) {
		assert.Positive(t, w.DistributionX[3].Sign())
		assert.Positive(t, w.DistributionY[3].Sign())
	})
}

func TestBuild_UniformEqualShares(t *testing.T) {
	// 1e18 / 3 leaves a remainder of 1
	w, err := Build(2, Uniform, Both)
	require.NoError(t, err)

	third := new(big.Int).Quo(Unit, big.NewInt(3))
	assert.Equal(t, third, w.DistributionX[2])
	assert.Equal(t, third, w.DistributionX[3])
	assert.Equal(t, new(big.Int).Add(third, big.NewInt(1)), w.DistributionX[4])
}

func TestBuild_Curve(t *testing.T) {
	w, err := Build(2, Curve, Both)
	require.NoError(t, err)

	// raw X weights 3:2:1 at offsets 0,1,2 -> 1e18 * {3,2,1} / 6
	x0 := new(big.Int).Quo(new(big.Int).Mul(Unit, big.NewInt(3)), big.NewInt(6))
	x1 := new(big.Int).Quo(new(big.Int).Mul(Unit, big.NewInt(2)), big.NewInt(6))
	x2 := new(big.Int).Quo(Unit, big.NewInt(6))
	rem := new(big.Int).Sub(Unit, new(big.Int).Add(x0, new(big.Int).Add(x1, x2)))
	x2.Add(x2, rem)

	assert.Zero(t, w.DistributionX[0].Sign())
	assert.Zero(t, w.DistributionX[1].Sign())
	assert.Equal(t, x0, w.DistributionX[2])
	assert.Equal(t, x1, w.DistributionX[3])
	assert.Equal(t, x2, w.DistributionX[4])
	assert.Zero(t, w.SumX().Cmp(Unit))

	// Y side mirrors: 1:2:3 at offsets -2,-1,0, remainder on the active bin
	assert.Equal(t, new(big.Int).Quo(Unit, big.NewInt(6)), w.DistributionY[0])
	assert.Equal(t, x1, w.DistributionY[1])
	assert.Zero(t, w.DistributionY[3].Sign())
	assert.Zero(t, w.DistributionY[4].Sign())
	assert.Zero(t, w.SumY().Cmp(Unit))

	t.Run("DecreasingAwayFromActive", func(t *testing.T) {
		w, err := Build(10, Curve, Both)
		require.NoError(t, err)
		for i := 11; i < w.Len()-1; i++ {
			assert.Positive(t, w.DistributionX[i].Cmp(w.DistributionX[i+1]), "index %d", i)
		}
	})
}

func TestBuild_SingleSided(t *testing.T) {
	for _, mode := range []Mode{Uniform, Curve} {
		w, err := Build(4, mode, XOnly)
		require.NoError(t, err)
		assert.Zero(t, w.SumX().Cmp(Unit))
		assert.Zero(t, w.SumY().Sign())

		w, err = Build(4, mode, YOnly)
		require.NoError(t, err)
		assert.Zero(t, w.SumX().Sign())
		assert.Zero(t, w.SumY().Cmp(Unit))
	}
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(0, Uniform, Both)
	assert.ErrorIs(t, err, ErrInvalidBinRange)

	_, err = Build(-4, Curve, Both)
	assert.ErrorIs(t, err, ErrInvalidBinRange)

	_, err = Build(3, Mode(9), Both)
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = Build(3, Uniform, Side(7))
	assert.ErrorIs(t, err, ErrUnknownSide)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Curve ")
	require.NoError(t, err)
	assert.Equal(t, Curve, m)

	m, err = ParseMode("uniform")
	require.NoError(t, err)
	assert.Equal(t, Uniform, m)

	_, err = ParseMode("bid-ask")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestWeights_BinIDs(t *testing.T) {
	w, err := Build(1, Uniform, Both)
	require.NoError(t, err)
	assert.Equal(t, []uint32{99, 100, 101}, w.BinIDs(100))
	assert.Equal(t, []*big.Int{big.NewInt(-1), big.NewInt(0), big.NewInt(1)}, w.DeltaIDsBig())
}
