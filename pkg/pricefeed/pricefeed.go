// Package pricefeed provides USD reference prices keyed by token symbol.
//
// The static table is the last line of fallback and never fails. A Cache can
// overlay fresher prices from a remote Source; it is constructed explicitly and
// injected wherever prices are needed.
package pricefeed

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceSource answers USD price lookups by symbol.
type PriceSource interface {
	USDPrice(symbol string) (decimal.Decimal, bool)
}

// Price is a single remote observation.
type Price struct {
	USD decimal.Decimal `json:"usd"`
	// Change24h is the percentage change over 24h. Zero when unknown.
	Change24h decimal.Decimal `json:"change24h"`
}

// Source fetches current prices for a set of symbols. Symbols missing from
// the result are simply unknown to the source.
type Source interface {
	Fetch(ctx context.Context, symbols []string) (map[string]Price, error)
}

// StaticTable is a fixed symbol to USD price table. Keys are upper case.
type StaticTable map[string]decimal.Decimal

// DefaultTable returns the built-in reference prices for the tokens the
// client ships with.
func DefaultTable() StaticTable {
	return StaticTable{
		"FLR":    decimal.RequireFromString("0.02"),
		"WFLR":   decimal.RequireFromString("0.02"),
		"SFLR":   decimal.RequireFromString("0.022"),
		"USDT":   decimal.NewFromInt(1),
		"USDT0":  decimal.NewFromInt(1),
		"USDC":   decimal.NewFromInt(1),
		"USDC.E": decimal.NewFromInt(1),
		"WETH":   decimal.NewFromInt(2500),
		"FXRP":   decimal.RequireFromString("2.2"),
		"HLS":    decimal.RequireFromString("0.05"),
	}
}

// USDPrice implements PriceSource. Lookup is case-insensitive.
func (t StaticTable) USDPrice(symbol string) (decimal.Decimal, bool) {
	p, ok := t[strings.ToUpper(symbol)]
	return p, ok
}

// Symbols returns the table's keys.
func (t StaticTable) Symbols() []string {
	out := make([]string, 0, len(t))
	for s := range t {
		out = append(out, s)
	}
	return out
}
