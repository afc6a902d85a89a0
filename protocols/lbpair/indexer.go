package lbpair

import (
	"math/big"
)

// PoolState is a point-in-time read of a liquidity-book pair.
type PoolState struct {
	PoolID      uint64   `json:"poolId"`
	ActiveID    uint32   `json:"activeId"`
	ReserveX    *big.Int `json:"reserveX"`
	ReserveY    *big.Int `json:"reserveY"`
	BlockNumber uint64   `json:"blockNumber"`
}

// Equal reports whether two snapshots describe the same pair state, ignoring
// the block they were read at.
func (s PoolState) Equal(o PoolState) bool {
	return s.PoolID == o.PoolID &&
		s.ActiveID == o.ActiveID &&
		cmpBig(s.ReserveX, o.ReserveX) == 0 &&
		cmpBig(s.ReserveY, o.ReserveY) == 0
}

func cmpBig(a, b *big.Int) int {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b)
}

// Indexer builds lookups over pair snapshots.
type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed pair system from a raw slice of snapshots.
func (i *Indexer) Index(pools []PoolState) *IndexablePairSystem {
	return NewIndexablePairSystem(pools)
}

// IndexablePairSystem provides indexed access to pair snapshots.
type IndexablePairSystem struct {
	byID map[uint64]PoolState
	all  []PoolState
}

// NewIndexablePairSystem creates a new indexed pair system. A later snapshot
// for the same pool replaces an earlier one.
func NewIndexablePairSystem(pools []PoolState) *IndexablePairSystem {
	byID := make(map[uint64]PoolState, len(pools))
	all := make([]PoolState, 0, len(pools))

	for _, p := range pools {
		if _, seen := byID[p.PoolID]; !seen {
			all = append(all, p)
		} else {
			for i := range all {
				if all[i].PoolID == p.PoolID {
					all[i] = p
				}
			}
		}
		byID[p.PoolID] = p
	}

	return &IndexablePairSystem{
		byID: byID,
		all:  all,
	}
}

// GetByID retrieves a pair snapshot by pool ID.
func (ips *IndexablePairSystem) GetByID(id uint64) (PoolState, bool) {
	p, ok := ips.byID[id]
	return p, ok
}

// All returns a defensive copy of the slice of all snapshots.
func (ips *IndexablePairSystem) All() []PoolState {
	allCopy := make([]PoolState, len(ips.all))
	copy(allCopy, ips.all)
	return allCopy
}
