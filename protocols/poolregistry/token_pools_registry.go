package poolregistry

import (
	"github.com/ethereum/go-ethereum/common"
)

// TokenPoolsRegistryView is an adjacency snapshot of the token/pool graph built
// from the registry. IndexablePoolRegistry answers its token-level lookups
// from it, and Graph exposes it to consumers that traverse it themselves.
//
// Tokens[i] is a node. Adjacency[i] lists edge indices leaving node i;
// EdgeTargets[e] is the node an edge points to and EdgePools[e] the indices
// into Pools of the pools joining the two nodes.
type TokenPoolsRegistryView struct {
	Tokens      []common.Address `json:"tokens"`
	Pools       []uint64         `json:"pools"`
	Adjacency   [][]int          `json:"adjacency"`
	EdgeTargets []int            `json:"edgeTargets"`
	EdgePools   [][]int          `json:"edgePools"`

	index map[common.Address]int
}

// NewTokenPoolsRegistryView builds the adjacency view. Tokens are added in
// order of first appearance in pools.
func NewTokenPoolsRegistryView(pools []PoolView) *TokenPoolsRegistryView {
	v := &TokenPoolsRegistryView{index: make(map[common.Address]int)}
	// (from,to) -> edge index
	edgeIndex := make(map[[2]int]int)

	node := func(addr common.Address) int {
		if i, ok := v.index[addr]; ok {
			return i
		}
		i := len(v.Tokens)
		v.index[addr] = i
		v.Tokens = append(v.Tokens, addr)
		v.Adjacency = append(v.Adjacency, nil)
		return i
	}
	edge := func(from, to, poolIndex int) {
		e, ok := edgeIndex[[2]int{from, to}]
		if !ok {
			e = len(v.EdgeTargets)
			edgeIndex[[2]int{from, to}] = e
			v.EdgeTargets = append(v.EdgeTargets, to)
			v.EdgePools = append(v.EdgePools, nil)
			v.Adjacency[from] = append(v.Adjacency[from], e)
		}
		v.EdgePools[e] = append(v.EdgePools[e], poolIndex)
	}

	for _, p := range pools {
		pi := len(v.Pools)
		v.Pools = append(v.Pools, p.ID)
		x, y := node(p.TokenX), node(p.TokenY)
		edge(x, y, pi)
		edge(y, x, pi)
	}
	return v
}

// PoolIDsForToken walks the adjacency of token and returns the unique pool ids
// touching it, in edge order.
func (v *TokenPoolsRegistryView) PoolIDsForToken(token common.Address) []uint64 {
	tokenIndex, ok := v.node(token)
	if !ok {
		return nil
	}

	seen := make(map[uint64]struct{})
	var ids []uint64
	for _, e := range v.Adjacency[tokenIndex] {
		if e >= len(v.EdgePools) {
			continue
		}
		for _, pi := range v.EdgePools[e] {
			if pi >= len(v.Pools) {
				continue
			}
			id := v.Pools[pi]
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Neighbors returns the tokens directly tradable against token, in order of
// first appearance in the registry.
func (v *TokenPoolsRegistryView) Neighbors(token common.Address) []common.Address {
	i, ok := v.node(token)
	if !ok {
		return nil
	}
	out := make([]common.Address, 0, len(v.Adjacency[i]))
	for _, e := range v.Adjacency[i] {
		out = append(out, v.Tokens[v.EdgeTargets[e]])
	}
	return out
}

// node resolves token to its node index. Views decoded from JSON carry no
// index and fall back to a scan.
func (v *TokenPoolsRegistryView) node(token common.Address) (int, bool) {
	if v.index != nil {
		i, ok := v.index[token]
		return i, ok && i < len(v.Adjacency)
	}
	for i, t := range v.Tokens {
		if t == token {
			return i, i < len(v.Adjacency)
		}
	}
	return -1, false
}
