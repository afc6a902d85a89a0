// Package distribution builds the per-bin liquidity weight arrays passed to the
// liquidity-book router when adding liquidity around the active bin.
package distribution

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Unit is the fixed-point value (1e18) every non-empty side must sum to.
var Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

var (
	ErrInvalidBinRange = errors.New("distribution: bin range must be at least 1")
	ErrUnknownMode     = errors.New("distribution: unknown mode")
	ErrUnknownSide     = errors.New("distribution: unknown side")
)

// Mode selects the shape of the weights.
type Mode uint8

const (
	// Uniform gives every bin on a side the same share.
	Uniform Mode = iota + 1
	// Curve weights bins linearly, heaviest at the active bin.
	Curve
)

func (m Mode) String() string {
	switch m {
	case Uniform:
		return "uniform"
	case Curve:
		return "curve"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode converts "uniform" or "curve" (case-insensitive) into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uniform", "spot":
		return Uniform, nil
	case "curve":
		return Curve, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Side selects which token(s) are deposited.
type Side uint8

const (
	Both Side = iota
	XOnly
	YOnly
)

// Weights holds the distribution for offsets -range..+range around the active bin.
// DeltaIDs[i] is the offset of DistributionX[i] and DistributionY[i].
type Weights struct {
	DeltaIDs      []int64
	DistributionX []*big.Int
	DistributionY []*big.Int
}

// Len returns the number of bins covered.
func (w *Weights) Len() int {
	return len(w.DeltaIDs)
}

// SumX returns the sum of DistributionX.
func (w *Weights) SumX() *big.Int {
	return sum(w.DistributionX)
}

// SumY returns the sum of DistributionY.
func (w *Weights) SumY() *big.Int {
	return sum(w.DistributionY)
}

// BinIDs resolves the offsets against activeID.
func (w *Weights) BinIDs(activeID uint32) []uint32 {
	ids := make([]uint32, len(w.DeltaIDs))
	for i, d := range w.DeltaIDs {
		ids[i] = uint32(int64(activeID) + d)
	}
	return ids
}

// DeltaIDsBig returns the offsets as int256-compatible values for ABI packing.
func (w *Weights) DeltaIDsBig() []*big.Int {
	out := make([]*big.Int, len(w.DeltaIDs))
	for i, d := range w.DeltaIDs {
		out[i] = big.NewInt(d)
	}
	return out
}

// Build returns the weights for 2*binRange+1 bins centred on the active bin.
//
// X liquidity can only sit at or above the active bin and Y liquidity at or
// below it, so the X side covers offsets >= 0 and the Y side offsets <= 0;
// the active bin receives both. A side excluded by side is all zero. Every
// included side sums to exactly Unit: the integer-division remainder is added
// to one designated bin of that side.
func Build(binRange int, mode Mode, side Side) (*Weights, error) {
	if binRange < 1 {
		return nil, ErrInvalidBinRange
	}
	if mode != Uniform && mode != Curve {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	if side > YOnly {
		return nil, ErrUnknownSide
	}

	n := 2*binRange + 1
	w := &Weights{
		DeltaIDs:      make([]int64, n),
		DistributionX: zeros(n),
		DistributionY: zeros(n),
	}
	for i := range n {
		w.DeltaIDs[i] = int64(i - binRange)
	}

	// index of offset 0
	active := binRange

	if side != YOnly {
		raw := make([]*big.Int, n)
		for i := range n {
			o := i - binRange
			raw[i] = big.NewInt(0)
			if o < 0 {
				continue
			}
			if mode == Curve {
				raw[i].SetInt64(int64(binRange + 1 - o))
			} else {
				raw[i].SetInt64(1)
			}
		}
		// X edge is the last index in both modes
		fill(w.DistributionX, raw, n-1)
	}

	if side != XOnly {
		raw := make([]*big.Int, n)
		for i := range n {
			o := i - binRange
			raw[i] = big.NewInt(0)
			if o > 0 {
				continue
			}
			if mode == Curve {
				raw[i].SetInt64(int64(binRange + 1 + o))
			} else {
				raw[i].SetInt64(1)
			}
		}
		remainderAt := 0
		if mode == Curve {
			remainderAt = active
		}
		fill(w.DistributionY, raw, remainderAt)
	}

	return w, nil
}

// fill normalises raw into dst so that dst sums to Unit, adding the rounding
// remainder to dst[remainderAt].
func fill(dst, raw []*big.Int, remainderAt int) {
	total := sum(raw)
	if total.Sign() == 0 {
		return
	}
	assigned := big.NewInt(0)
	for i, r := range raw {
		v := new(big.Int).Mul(r, Unit)
		v.Quo(v, total)
		dst[i] = v
		assigned.Add(assigned, v)
	}
	remainder := new(big.Int).Sub(Unit, assigned)
	dst[remainderAt].Add(dst[remainderAt], remainder)
}

func zeros(n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = big.NewInt(0)
	}
	return out
}

func sum(xs []*big.Int) *big.Int {
	total := big.NewInt(0)
	for _, x := range xs {
		total.Add(total, x)
	}
	return total
}
