package token

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TokenView is the static description of an ERC-20 token known to the client.
//
// Decimals must match the token contract's decimals; bin prices and quote
// amounts are scaled with it and are silently wrong otherwise.
type TokenView struct {
	ID       uint64         `json:"id"`
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	Decimals uint8          `json:"decimals"`
}

// Indexer builds token lookups from the configured token list.
type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed token system from a raw slice of tokens.
func (i *Indexer) Index(tokens []TokenView) *IndexableTokenSystem {
	return NewIndexableTokenSystem(tokens)
}

// IndexableTokenSystem provides fast, indexed access to token data.
// Registry order is preserved by All and is significant for route discovery.
type IndexableTokenSystem struct {
	byID      map[uint64]TokenView
	byAddress map[common.Address]TokenView
	bySymbol  map[string]TokenView
	all       []TokenView
}

// NewIndexableTokenSystem creates a new indexed token system from a raw slice.
// When two tokens share a symbol the first one wins the symbol lookup.
func NewIndexableTokenSystem(tokens []TokenView) *IndexableTokenSystem {
	byID := make(map[uint64]TokenView, len(tokens))
	byAddress := make(map[common.Address]TokenView, len(tokens))
	bySymbol := make(map[string]TokenView, len(tokens))

	for _, t := range tokens {
		byID[t.ID] = t
		byAddress[t.Address] = t
		key := normalizeSymbol(t.Symbol)
		if _, taken := bySymbol[key]; !taken {
			bySymbol[key] = t
		}
	}

	all := make([]TokenView, len(tokens))
	copy(all, tokens)

	return &IndexableTokenSystem{
		byID:      byID,
		byAddress: byAddress,
		bySymbol:  bySymbol,
		all:       all,
	}
}

// GetByID retrieves a token by its unique ID.
func (its *IndexableTokenSystem) GetByID(id uint64) (TokenView, bool) {
	t, ok := its.byID[id]
	return t, ok
}

// GetByAddress retrieves a token by its contract address.
func (its *IndexableTokenSystem) GetByAddress(address common.Address) (TokenView, bool) {
	t, ok := its.byAddress[address]
	return t, ok
}

// GetBySymbol retrieves a token by symbol, ignoring case and surrounding spaces.
func (its *IndexableTokenSystem) GetBySymbol(symbol string) (TokenView, bool) {
	t, ok := its.bySymbol[normalizeSymbol(symbol)]
	return t, ok
}

// Resolve accepts either a hex address or a symbol.
func (its *IndexableTokenSystem) Resolve(ref string) (TokenView, bool) {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		return its.GetByAddress(common.HexToAddress(ref))
	}
	return its.GetBySymbol(ref)
}

// Len returns the number of registered tokens.
func (its *IndexableTokenSystem) Len() int {
	return len(its.all)
}

// All returns a defensive copy of the slice of all tokens in the system.
func (its *IndexableTokenSystem) All() []TokenView {
	allCopy := make([]TokenView, len(its.all))
	copy(allCopy, its.all)
	return allCopy
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
