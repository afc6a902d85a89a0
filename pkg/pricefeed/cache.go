package pricefeed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Logger is the logging surface used by the cache.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type observation struct {
	price Price
	at    time.Time
}

// CacheConfig configures a Cache.
type CacheConfig struct {
	Source   Source
	Fallback StaticTable
	TTL      time.Duration
	Logger   Logger
	Now      func() time.Time
}

func (c *CacheConfig) validate() error {
	if c.Source == nil {
		return fmt.Errorf("source is required")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	return nil
}

// Cache overlays remote prices on a static table. Reads never block on the
// network: Refresh must be called to pull new prices, and stale entries are
// still served until replaced.
type Cache struct {
	source   Source
	fallback StaticTable
	ttl      time.Duration
	logger   Logger
	now      func() time.Time

	mu        sync.RWMutex
	latest    map[string]observation
	dayAgo    map[string]observation
	fetchedAt time.Time
}

var _ PriceSource = (*Cache)(nil)

// NewCache creates a Cache. A nil Fallback uses DefaultTable.
func NewCache(cfg CacheConfig) (*Cache, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid price cache config: %w", err)
	}
	if cfg.Fallback == nil {
		cfg.Fallback = DefaultTable()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		source:   cfg.Source,
		fallback: cfg.Fallback,
		ttl:      cfg.TTL,
		logger:   cfg.Logger,
		now:      cfg.Now,
		latest:   make(map[string]observation),
		dayAgo:   make(map[string]observation),
	}, nil
}

// Stale reports whether the last successful fetch is older than the TTL.
func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) >= c.ttl
}

// Refresh fetches prices for every fallback symbol when the cache is stale.
// A failed fetch is logged and leaves existing entries in place.
func (c *Cache) Refresh(ctx context.Context) error {
	if !c.Stale() {
		return nil
	}
	prices, err := c.source.Fetch(ctx, c.fallback.Symbols())
	if err != nil {
		c.logger.Warn("Price refresh failed, serving cached prices", "error", err)
		return err
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for sym, p := range prices {
		sym = strings.ToUpper(sym)
		obs := observation{price: p, at: now}
		c.latest[sym] = obs
		if prev, ok := c.dayAgo[sym]; !ok || now.Sub(prev.at) >= 24*time.Hour {
			c.dayAgo[sym] = obs
		}
	}
	c.fetchedAt = now
	c.logger.Debug("Prices refreshed", "count", len(prices))
	return nil
}

// USDPrice returns the cached remote price, falling back to the static table.
func (c *Cache) USDPrice(symbol string) (decimal.Decimal, bool) {
	sym := strings.ToUpper(symbol)
	c.mu.RLock()
	obs, ok := c.latest[sym]
	c.mu.RUnlock()
	if ok && obs.price.USD.IsPositive() {
		return obs.price.USD, true
	}
	return c.fallback.USDPrice(sym)
}

// Change24h returns the 24h percentage change for symbol. The source's own
// figure is preferred; otherwise it is derived from the daily snapshot.
func (c *Cache) Change24h(symbol string) (decimal.Decimal, bool) {
	sym := strings.ToUpper(symbol)
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur, ok := c.latest[sym]
	if !ok {
		return decimal.Zero, false
	}
	if !cur.price.Change24h.IsZero() {
		return cur.price.Change24h, true
	}
	prev, ok := c.dayAgo[sym]
	if !ok || prev.price.USD.IsZero() || prev.at.Equal(cur.at) {
		return decimal.Zero, false
	}
	return cur.price.USD.Sub(prev.price.USD).Div(prev.price.USD).Mul(decimal.NewFromInt(100)), true
}
