package poolregistry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// --- Pair ---

// Pair is an unordered token pair stored in canonical (ascending address) order.
//
// Liquidity-book pair contracts order their tokens the same way, so for a
// canonical pair Tokens[0] is the pair's tokenX and Tokens[1] its tokenY
// unless the deployment says otherwise. Pool entries keep their own
// TokenX/TokenY; Pair is only used as a lookup key.
type Pair [2]common.Address

// NewPair returns the canonical pair for a and b.
func NewPair(a, b common.Address) Pair {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return Pair{a, b}
}

// Contains reports whether token is one side of the pair.
func (p Pair) Contains(token common.Address) bool {
	return p[0] == token || p[1] == token
}

// --- PairKey ---

// PairKey identifies a liquidity-book pool by its canonical pair and bin step.
// The factory deploys at most one pair per (tokenX, tokenY, binStep).
type PairKey struct {
	Pair    Pair
	BinStep uint16
}

// NewPairKey builds the key for tokens a and b at binStep, in either order.
func NewPairKey(a, b common.Address, binStep uint16) PairKey {
	return PairKey{Pair: NewPair(a, b), BinStep: binStep}
}

// String renders the key as "<token0>-<token1>/<binStep>".
func (k PairKey) String() string {
	return k.Pair[0].Hex() + "-" + k.Pair[1].Hex() + "/" + strconv.FormatUint(uint64(k.BinStep), 10)
}

// MarshalJSON serializes the key as its string form.
func (k PairKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses the string form produced by String.
// The tokens may appear in either order; the result is canonical.
func (k *PairKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePairKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParsePairKey parses "<tokenA>-<tokenB>/<binStep>".
func ParsePairKey(s string) (PairKey, error) {
	tokens, step, ok := strings.Cut(s, "/")
	if !ok {
		return PairKey{}, errors.New("pair key: missing bin step")
	}
	a, b, ok := strings.Cut(tokens, "-")
	if !ok {
		return PairKey{}, errors.New("pair key: missing token separator")
	}
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return PairKey{}, fmt.Errorf("pair key: invalid token address in %q", tokens)
	}
	binStep, err := strconv.ParseUint(step, 10, 16)
	if err != nil {
		return PairKey{}, fmt.Errorf("pair key: invalid bin step: %w", err)
	}
	return NewPairKey(common.HexToAddress(a), common.HexToAddress(b), uint16(binStep)), nil
}
