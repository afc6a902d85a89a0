package poolregistry

import (
	"github.com/ethereum/go-ethereum/common"
)

type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed pool registry from a raw slice of pools.
func (i *Indexer) Index(pools []PoolView) *IndexablePoolRegistry {
	return NewIndexablePoolRegistry(pools)
}

// IndexablePoolRegistry provides fast, indexed access to pool registry data.
// Every multi-valued lookup preserves registry order.
type IndexablePoolRegistry struct {
	byID      map[uint64]PoolView
	byAddress map[common.Address]PoolView
	byKey     map[PairKey]PoolView
	byPair    map[Pair][]PoolView
	graph     *TokenPoolsRegistryView
	all       []PoolView
}

// NewIndexablePoolRegistry creates a new indexed pool registry from a raw slice.
// If two entries share a pair key the first one is kept for key lookups.
func NewIndexablePoolRegistry(pools []PoolView) *IndexablePoolRegistry {
	byID := make(map[uint64]PoolView, len(pools))
	byAddress := make(map[common.Address]PoolView, len(pools))
	byKey := make(map[PairKey]PoolView, len(pools))
	byPair := make(map[Pair][]PoolView, len(pools))

	for _, p := range pools {
		byID[p.ID] = p
		byAddress[p.Address] = p
		if _, taken := byKey[p.Key()]; !taken {
			byKey[p.Key()] = p
		}
		pair := NewPair(p.TokenX, p.TokenY)
		byPair[pair] = append(byPair[pair], p)
	}

	all := make([]PoolView, len(pools))
	copy(all, pools)

	return &IndexablePoolRegistry{
		byID:      byID,
		byAddress: byAddress,
		byKey:     byKey,
		byPair:    byPair,
		graph:     NewTokenPoolsRegistryView(all),
		all:       all,
	}
}

// GetByID retrieves a pool by its unique ID.
func (ipr *IndexablePoolRegistry) GetByID(id uint64) (PoolView, bool) {
	p, ok := ipr.byID[id]
	return p, ok
}

// GetByAddress retrieves a pool by its contract address.
func (ipr *IndexablePoolRegistry) GetByAddress(address common.Address) (PoolView, bool) {
	p, ok := ipr.byAddress[address]
	return p, ok
}

// GetByPairKey retrieves a pool by token pair and bin step.
func (ipr *IndexablePoolRegistry) GetByPairKey(key PairKey) (PoolView, bool) {
	p, ok := ipr.byKey[key]
	return p, ok
}

// FindPool returns the first pool, in registry order, trading a against b.
// The argument order does not matter.
func (ipr *IndexablePoolRegistry) FindPool(a, b common.Address) (PoolView, bool) {
	pools := ipr.byPair[NewPair(a, b)]
	if len(pools) == 0 {
		return PoolView{}, false
	}
	return pools[0], true
}

// PoolsForPair returns every pool trading a against b, in registry order.
func (ipr *IndexablePoolRegistry) PoolsForPair(a, b common.Address) []PoolView {
	pools := ipr.byPair[NewPair(a, b)]
	out := make([]PoolView, len(pools))
	copy(out, pools)
	return out
}

// PoolsForToken returns every pool holding token, in registry order.
func (ipr *IndexablePoolRegistry) PoolsForToken(token common.Address) []PoolView {
	ids := ipr.graph.PoolIDsForToken(token)
	if len(ids) == 0 {
		return nil
	}
	holds := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		holds[id] = struct{}{}
	}
	out := make([]PoolView, 0, len(ids))
	for _, p := range ipr.all {
		if _, ok := holds[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Neighbors returns the tokens sharing at least one pool with token.
func (ipr *IndexablePoolRegistry) Neighbors(token common.Address) []common.Address {
	return ipr.graph.Neighbors(token)
}

// Graph returns the registry's token/pool adjacency view.
func (ipr *IndexablePoolRegistry) Graph() *TokenPoolsRegistryView {
	return ipr.graph
}

// All returns a defensive copy of the slice of all pools in the system.
func (ipr *IndexablePoolRegistry) All() []PoolView {
	allCopy := make([]PoolView, len(ipr.all))
	copy(allCopy, ipr.all)
	return allCopy
}
