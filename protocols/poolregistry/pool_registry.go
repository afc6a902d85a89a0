package poolregistry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Version is the router's pair-version enum, passed per hop in swap paths.
type Version uint8

const (
	VersionV1 Version = iota
	VersionV2
	VersionV2_1
	VersionV2_2
)

func (v Version) String() string {
	switch v {
	case VersionV1:
		return "v1"
	case VersionV2:
		return "v2"
	case VersionV2_1:
		return "v2.1"
	case VersionV2_2:
		return "v2.2"
	default:
		return fmt.Sprintf("version(%d)", uint8(v))
	}
}

// PoolView represents a single liquidity-book pair from the static registry.
//
// TokenX/TokenY must match the deployed pair contract's getTokenX/getTokenY;
// swap direction (swapForY) is derived from it.
type PoolView struct {
	ID      uint64         `json:"id"`
	Address common.Address `json:"address"`
	TokenX  common.Address `json:"tokenX"`
	TokenY  common.Address `json:"tokenY"`
	BinStep uint16         `json:"binStep"`
	Version Version        `json:"version"`
}

// Key returns the pool's pair key.
func (p PoolView) Key() PairKey {
	return NewPairKey(p.TokenX, p.TokenY, p.BinStep)
}

// Has reports whether token is tokenX or tokenY of the pool.
func (p PoolView) Has(token common.Address) bool {
	return p.TokenX == token || p.TokenY == token
}

// Other returns the counterpart of token in the pool.
func (p PoolView) Other(token common.Address) (common.Address, bool) {
	switch token {
	case p.TokenX:
		return p.TokenY, true
	case p.TokenY:
		return p.TokenX, true
	default:
		return common.Address{}, false
	}
}

// SwapForY reports the swap direction when tokenIn is sold into the pool:
// true when tokenIn is the pool's tokenX.
func (p PoolView) SwapForY(tokenIn common.Address) (bool, error) {
	switch tokenIn {
	case p.TokenX:
		return true, nil
	case p.TokenY:
		return false, nil
	default:
		return false, fmt.Errorf("token %s is not in pool %s", tokenIn.Hex(), p.Address.Hex())
	}
}

// PoolRegistryView represents the complete state of the registry.
type PoolRegistryView struct {
	Pools []PoolView `json:"pools"`
}
