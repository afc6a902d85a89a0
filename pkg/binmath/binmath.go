package binmath

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// CenterBinID is the bin whose raw price ratio is exactly 1.
// It is fixed by the liquidity-book protocol (2^23).
const CenterBinID uint32 = 1 << 23

// MaxBinID is the largest id representable in the protocol's uint24 bin ids.
const MaxBinID uint32 = 1<<24 - 1

// basisPointMax is the bin step denominator.
const basisPointMax = 10_000

var (
	ErrZeroBinStep      = errors.New("binmath: bin step must be greater than 0")
	ErrNonPositivePrice = errors.New("binmath: price must be greater than 0")
	ErrBinOutOfRange    = errors.New("binmath: bin id out of range")
)

// PriceFromBin returns the display price of tokenX denominated in tokenY for a bin:
//
//	(1 + binStep/10000)^(binID - CenterBinID) * 10^(decimalsY - decimalsX)
//
// The result has float64 precision. It is meant for UI estimates and target-bin
// search only and must never be used to derive on-chain amounts.
func PriceFromBin(binID uint32, binStep uint16, decimalsX, decimalsY uint8) float64 {
	base := 1 + float64(binStep)/basisPointMax
	exp := float64(int64(binID) - int64(CenterBinID))
	return math.Pow(base, exp) * decimalsFactor(decimalsX, decimalsY)
}

// PriceDecimal is PriceFromBin rounded to the given number of significant
// digits, for display.
func PriceDecimal(binID uint32, binStep uint16, decimalsX, decimalsY uint8, significant int32) decimal.Decimal {
	p := decimal.NewFromFloat(PriceFromBin(binID, binStep, decimalsX, decimalsY))
	if p.IsZero() || significant <= 0 {
		return p
	}
	// shift so that `significant` digits sit left of the decimal point
	places := significant - int32(p.Abs().Exponent()+int32(p.NumDigits()))
	return p.Round(places)
}

// BinFromPriceDelta estimates the bin reached after moving the price by a
// relative amount (e.g. 0.05 for +5%). It is a linear approximation of the
// exponential price curve:
//
//	currentBinID + round(priceRatioDelta / (binStep/10000))
//
// It is accurate for small deltas and is used for limit-order bin targeting.
// It is not an exact inverse of PriceFromBin; use BinFromPrice for that.
func BinFromPriceDelta(currentBinID uint32, binStep uint16, priceRatioDelta float64) uint32 {
	if binStep == 0 {
		return currentBinID
	}
	shift := math.Round(priceRatioDelta / (float64(binStep) / basisPointMax))
	id := int64(currentBinID) + int64(shift)
	return clampBin(id)
}

// BinFromPrice returns the bin whose price is nearest to price. It inverts
// PriceFromBin through logarithms, so it inherits float64 precision.
func BinFromPrice(price float64, binStep uint16, decimalsX, decimalsY uint8) (uint32, error) {
	if binStep == 0 {
		return 0, ErrZeroBinStep
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, ErrNonPositivePrice
	}
	raw := price / decimalsFactor(decimalsX, decimalsY)
	if raw == 0 || math.IsInf(raw, 0) {
		return 0, ErrBinOutOfRange
	}
	offset := math.Round(math.Log(raw) / math.Log1p(float64(binStep)/basisPointMax))
	if math.Abs(offset) > float64(MaxBinID) {
		return 0, ErrBinOutOfRange
	}
	id := int64(CenterBinID) + int64(offset)
	if id < 0 || id > int64(MaxBinID) {
		return 0, ErrBinOutOfRange
	}
	return uint32(id), nil
}

// BinRange returns the ids from activeID-binRange to activeID+binRange inclusive.
func BinRange(activeID uint32, binRange int) ([]uint32, error) {
	if binRange < 0 {
		return nil, ErrBinOutOfRange
	}
	lo := int64(activeID) - int64(binRange)
	hi := int64(activeID) + int64(binRange)
	if lo < 0 || hi > int64(MaxBinID) {
		return nil, ErrBinOutOfRange
	}
	ids := make([]uint32, 0, 2*binRange+1)
	for id := lo; id <= hi; id++ {
		ids = append(ids, uint32(id))
	}
	return ids, nil
}

func decimalsFactor(decimalsX, decimalsY uint8) float64 {
	return math.Pow10(int(decimalsY) - int(decimalsX))
}

func clampBin(id int64) uint32 {
	if id < 0 {
		return 0
	}
	if id > int64(MaxBinID) {
		return MaxBinID
	}
	return uint32(id)
}
