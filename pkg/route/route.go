// Package route discovers swap routes across the static pool registry.
//
// Only direct (one hop) and two-hop routes are considered. The preferred route
// is the one with the fewest hops; fee tier and liquidity depth are not
// compared.
package route

import (
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/HeliosFLR/helios-ui-sub000/protocols/poolregistry"
	"github.com/HeliosFLR/helios-ui-sub000/protocols/token"
)

// Hop is one pool traversal of a route.
type Hop struct {
	Pool     poolregistry.PoolView `json:"pool"`
	TokenIn  common.Address        `json:"tokenIn"`
	TokenOut common.Address        `json:"tokenOut"`
	// SwapForY is true when TokenIn is the pool's tokenX.
	SwapForY bool `json:"swapForY"`
}

// Route is an ordered token path with one pool per adjacent token pair.
type Route struct {
	Path     []common.Address `json:"path"`
	BinSteps []uint16         `json:"binSteps"`
	Hops     []Hop            `json:"hops"`
}

// Clone returns a copy of r that shares no backing arrays with it.
func (r Route) Clone() Route {
	return Route{
		Path:     slices.Clone(r.Path),
		BinSteps: slices.Clone(r.BinSteps),
		Hops:     slices.Clone(r.Hops),
	}
}

// HopCount returns the number of pools traversed.
func (r Route) HopCount() int {
	return len(r.Hops)
}

// IsDirect reports whether the route is a single pool.
func (r Route) IsDirect() bool {
	return len(r.Hops) == 1
}

// TokenInIsX reports whether the input token plays the X role in the first pool.
func (r Route) TokenInIsX() bool {
	return len(r.Hops) > 0 && r.Hops[0].SwapForY
}

// TotalBinStep sums the bin steps of every hop. Bin steps double as fee tiers,
// so TotalBinStep/100 is the aggregate base fee in percent.
func (r Route) TotalBinStep() uint32 {
	var total uint32
	for _, s := range r.BinSteps {
		total += uint32(s)
	}
	return total
}

// RouterPath is the router's swap path argument.
// Field names match the ABI tuple components (pairBinSteps, versions, tokenPath).
type RouterPath struct {
	PairBinSteps []*big.Int
	Versions     []uint8
	TokenPath    []common.Address
}

// RouterPath converts the route into the router's Path struct.
func (r Route) RouterPath() RouterPath {
	p := RouterPath{
		PairBinSteps: make([]*big.Int, len(r.Hops)),
		Versions:     make([]uint8, len(r.Hops)),
		TokenPath:    make([]common.Address, len(r.Path)),
	}
	copy(p.TokenPath, r.Path)
	for i, h := range r.Hops {
		p.PairBinSteps[i] = new(big.Int).SetUint64(uint64(h.Pool.BinStep))
		p.Versions[i] = uint8(h.Pool.Version)
	}
	return p
}

// PoolLookup answers pair and adjacency queries over the pool registry.
// *poolregistry.IndexablePoolRegistry satisfies it.
type PoolLookup interface {
	FindPool(a, b common.Address) (poolregistry.PoolView, bool)
	PoolsForPair(a, b common.Address) []poolregistry.PoolView
	Neighbors(token common.Address) []common.Address
}

// FindRoutes enumerates routes from tokenIn to tokenOut.
//
// Direct routes (one per pool trading the pair, in registry order) come first.
// Then, for every token adjacent to tokenIn, taken in token registry order,
// a two-hop route through it is added when a pool intermediate/tokenOut
// exists; each leg uses the first registered pool for its pair.
//
// An empty result means "no route" and is not an error.
func FindRoutes(tokenIn, tokenOut common.Address, pools PoolLookup, tokens []token.TokenView) []Route {
	if tokenIn == tokenOut {
		return nil
	}

	var routes []Route
	for _, p := range pools.PoolsForPair(tokenIn, tokenOut) {
		routes = append(routes, newRoute([]common.Address{tokenIn, tokenOut}, []poolregistry.PoolView{p}))
	}

	adjacent := make(map[common.Address]struct{})
	for _, n := range pools.Neighbors(tokenIn) {
		adjacent[n] = struct{}{}
	}
	for _, t := range tokens {
		mid := t.Address
		if mid == tokenIn || mid == tokenOut {
			continue
		}
		if _, ok := adjacent[mid]; !ok {
			continue
		}
		first, ok := pools.FindPool(tokenIn, mid)
		if !ok {
			continue
		}
		second, ok := pools.FindPool(mid, tokenOut)
		if !ok {
			continue
		}
		routes = append(routes, newRoute([]common.Address{tokenIn, mid, tokenOut}, []poolregistry.PoolView{first, second}))
	}
	return routes
}

// SelectBestRoute returns the route with the fewest hops; ties go to the
// earliest route in routes. The boolean is false when routes is empty.
func SelectBestRoute(routes []Route) (Route, bool) {
	if len(routes) == 0 {
		return Route{}, false
	}
	best := routes[0]
	for _, r := range routes[1:] {
		if r.HopCount() < best.HopCount() {
			best = r
		}
	}
	return best, true
}

// FindBestRoute is FindRoutes followed by SelectBestRoute.
func FindBestRoute(tokenIn, tokenOut common.Address, pools PoolLookup, tokens []token.TokenView) (Route, bool) {
	return SelectBestRoute(FindRoutes(tokenIn, tokenOut, pools, tokens))
}

func newRoute(path []common.Address, pools []poolregistry.PoolView) Route {
	r := Route{
		Path:     path,
		BinSteps: make([]uint16, len(pools)),
		Hops:     make([]Hop, len(pools)),
	}
	for i, p := range pools {
		r.BinSteps[i] = p.BinStep
		r.Hops[i] = Hop{
			Pool:     p,
			TokenIn:  path[i],
			TokenOut: path[i+1],
			SwapForY: p.TokenX == path[i],
		}
	}
	return r
}
